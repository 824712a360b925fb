package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opsync/internal/bus"
	"github.com/roach88/opsync/internal/model"
	"github.com/roach88/opsync/internal/remote"
	"github.com/roach88/opsync/internal/testutil"
	"github.com/roach88/opsync/internal/transition"
)

// stubClient scripts Mutate responses per entity id.
type stubClient struct {
	mutateFn func(id string, action model.Action) (model.Entity, error)
	listFn   func(filter model.Filter) (model.Page, error)
	calls    []model.Action
}

func (s *stubClient) List(_ context.Context, filter model.Filter) (model.Page, error) {
	if s.listFn != nil {
		return s.listFn(filter)
	}
	return model.Page{}, nil
}

func (s *stubClient) GetByID(_ context.Context, id string) (model.Entity, error) {
	return model.Entity{}, &remote.SemanticError{Code: remote.CodeNotFound, Reason: id}
}

func (s *stubClient) Mutate(_ context.Context, id string, action model.Action, _ map[string]string) (model.Entity, error) {
	s.calls = append(s.calls, action)
	return s.mutateFn(id, action)
}

func seedAlerts() []model.Entity {
	at := time.Date(2025, 12, 31, 9, 0, 0, 0, time.UTC)
	return []model.Entity{
		{ID: "alert-1", Kind: model.KindAlert, Status: model.StatusOpen, Severity: "high", LastUpdatedAt: at},
		{ID: "alert-2", Kind: model.KindAlert, Status: model.StatusOpen, Severity: "low", LastUpdatedAt: at},
		{ID: "alert-3", Kind: model.KindAlert, Status: model.StatusAcknowledged, LastUpdatedAt: at},
	}
}

func newAlertCoordinator(t *testing.T, client remote.Client, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithClock(testutil.NewDeterministicClock())}, opts...)
	c := New(model.KindAlert, client, transition.Default(), opts...)
	c.Seed(seedAlerts())
	return c
}

func TestApplyConfirmedAdoptsServerEntity(t *testing.T) {
	serverAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	client := &stubClient{mutateFn: func(id string, _ model.Action) (model.Entity, error) {
		return model.Entity{
			ID: id, Kind: model.KindAlert, Status: model.StatusAcknowledged,
			Severity: "high", Description: "server enriched", LastUpdatedAt: serverAt,
		}, nil
	}}
	c := newAlertCoordinator(t, client)

	got, err := c.Apply(context.Background(), "alert-1", model.ActionAcknowledge, nil)
	require.NoError(t, err)
	assert.Equal(t, "server enriched", got.Description)

	ent, ok := c.Get("alert-1")
	require.True(t, ok)
	// Server entity wholesale, not the optimistic one.
	assert.Equal(t, model.StatusAcknowledged, ent.Status)
	assert.Equal(t, "server enriched", ent.Description)
	assert.True(t, ent.LastUpdatedAt.Equal(serverAt))
	assert.False(t, c.InFlight("alert-1"))
}

func TestApplyRollbackRestoresSnapshotVerbatim(t *testing.T) {
	client := &stubClient{mutateFn: func(string, model.Action) (model.Entity, error) {
		return model.Entity{}, &remote.TransportError{Op: "POST", URL: "/api/v1/alerts/alert-1/actions", Err: errors.New("connection refused")}
	}}
	c := newAlertCoordinator(t, client)
	before, _ := c.Get("alert-1")

	_, err := c.Apply(context.Background(), "alert-1", model.ActionAcknowledge, nil)
	require.Error(t, err)
	assert.True(t, remote.IsTransport(err))

	after, ok := c.Get("alert-1")
	require.True(t, ok)
	// Field for field, timestamp included. A refreshed timestamp would
	// make the entity look newer than the backend's copy.
	assert.True(t, before.Equal(after))
	assert.False(t, c.InFlight("alert-1"))
}

func TestApplySemanticErrorAlsoRollsBack(t *testing.T) {
	client := &stubClient{mutateFn: func(string, model.Action) (model.Entity, error) {
		return model.Entity{}, &remote.SemanticError{Code: remote.CodeConflict, Reason: "already resolved"}
	}}
	c := newAlertCoordinator(t, client)
	before, _ := c.Get("alert-1")

	_, err := c.Apply(context.Background(), "alert-1", model.ActionDismiss, nil)
	require.Error(t, err)
	assert.True(t, remote.IsSemantic(err))

	after, _ := c.Get("alert-1")
	assert.True(t, before.Equal(after))
}

func TestApplyRemovesOnlyAfterConfirmation(t *testing.T) {
	confirmed := make(chan struct{})
	release := make(chan struct{})
	client := &stubClient{mutateFn: func(id string, _ model.Action) (model.Entity, error) {
		close(confirmed)
		<-release
		return model.Entity{ID: id, Kind: model.KindAlert, Status: model.StatusDismissed}, nil
	}}
	c := newAlertCoordinator(t, client)

	done := make(chan error, 1)
	go func() {
		_, err := c.Apply(context.Background(), "alert-1", model.ActionDismiss, nil)
		done <- err
	}()

	<-confirmed
	// Mid-flight: the entity shows the predicted status but stays in
	// the working set until the backend confirms.
	ent, ok := c.Get("alert-1")
	require.True(t, ok)
	assert.Equal(t, model.StatusDismissed, ent.Status)
	assert.Len(t, c.Entities(), 3)

	close(release)
	require.NoError(t, <-done)

	_, ok = c.Get("alert-1")
	assert.False(t, ok)
	assert.Len(t, c.Entities(), 2)
}

func TestApplyBusyRejectsSecondMutation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	client := &stubClient{mutateFn: func(id string, _ model.Action) (model.Entity, error) {
		once.Do(func() { close(started) })
		<-release
		return model.Entity{ID: id, Kind: model.KindAlert, Status: model.StatusAcknowledged}, nil
	}}
	c := newAlertCoordinator(t, client)

	done := make(chan error, 1)
	go func() {
		_, err := c.Apply(context.Background(), "alert-1", model.ActionAcknowledge, nil)
		done <- err
	}()
	<-started

	_, err := c.Apply(context.Background(), "alert-1", model.ActionDismiss, nil)
	require.Error(t, err)
	assert.True(t, IsBusy(err))
	var be *BusyError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, model.ActionAcknowledge, be.InFlight)

	// Other entities are not serialized against alert-1.
	assert.False(t, c.InFlight("alert-2"))

	close(release)
	require.NoError(t, <-done)

	// Settled: the retry goes through.
	_, err = c.Apply(context.Background(), "alert-1", model.ActionDismiss, nil)
	require.NoError(t, err)
}

func TestApplyUndefinedTransitionLeavesStateUntouched(t *testing.T) {
	client := &stubClient{mutateFn: func(string, model.Action) (model.Entity, error) {
		t.Fatal("backend must not be called for an undefined transition")
		return model.Entity{}, nil
	}}
	c := newAlertCoordinator(t, client)

	// acknowledge is only defined from open.
	_, err := c.Apply(context.Background(), "alert-3", model.ActionAcknowledge, nil)
	require.Error(t, err)
	assert.True(t, transition.IsUndefined(err))
	assert.Empty(t, client.calls)
}

func TestClearRemovesFinishedAlert(t *testing.T) {
	client := &stubClient{mutateFn: func(id string, _ model.Action) (model.Entity, error) {
		return model.Entity{ID: id, Kind: model.KindAlert, Status: model.StatusCleared}, nil
	}}
	c := New(model.KindAlert, client, transition.Default(),
		WithClock(testutil.NewDeterministicClock()))
	c.Seed([]model.Entity{
		{ID: "alert-1", Kind: model.KindAlert, Status: model.StatusResolved},
		{ID: "alert-2", Kind: model.KindAlert, Status: model.StatusOpen},
	})

	require.NoError(t, c.Clear(context.Background(), "alert-1"))
	_, ok := c.Get("alert-1")
	assert.False(t, ok)

	// Clearing an alert that never finished is undefined.
	err := c.Clear(context.Background(), "alert-2")
	assert.True(t, transition.IsUndefined(err))
}

func TestApplyUnknownEntity(t *testing.T) {
	c := newAlertCoordinator(t, &stubClient{})
	_, err := c.Apply(context.Background(), "alert-99", model.ActionDismiss, nil)
	assert.True(t, IsNotFound(err))
}

func seedTasks() []model.Entity {
	at := time.Date(2025, 12, 31, 9, 0, 0, 0, time.UTC)
	return []model.Entity{
		{ID: "task-1", Kind: model.KindApprovalTask, Status: model.StatusPending, Category: "refund", Amount: 12500, Currency: "USD", LastUpdatedAt: at},
		{ID: "task-2", Kind: model.KindApprovalTask, Status: model.StatusPending, Category: "refund", LastUpdatedAt: at},
		{ID: "task-3", Kind: model.KindApprovalTask, Status: model.StatusPending, Category: "payout", LastUpdatedAt: at},
	}
}

func newTaskCoordinator(t *testing.T, client remote.Client) (*Coordinator, *model.Summary) {
	t.Helper()
	summary := model.NewSummary()
	summary.Counters["refund"] = 2
	summary.Counters["payout"] = 1
	summary.ApprovedToday = 3
	c := New(model.KindApprovalTask, client, transition.Default(),
		WithClock(testutil.NewDeterministicClock()), WithSummary(summary))
	c.Seed(seedTasks())
	return c, summary
}

func TestApproveRemovesImmediatelyAndMovesCounters(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	client := &stubClient{mutateFn: func(id string, _ model.Action) (model.Entity, error) {
		close(started)
		<-release
		return model.Entity{ID: id, Kind: model.KindApprovalTask, Status: model.StatusApproved}, nil
	}}
	c, _ := newTaskCoordinator(t, client)

	done := make(chan error, 1)
	go func() {
		_, err := c.Apply(context.Background(), "task-1", model.ActionApprove, nil)
		done <- err
	}()
	<-started

	// Decision actions hide the task before the backend answers, and
	// the counters move in the same update.
	_, visible := c.Get("task-1")
	assert.True(t, visible) // still resolvable for reconciliation
	assert.Len(t, c.Entities(), 2)
	got := c.Summary()
	assert.Equal(t, 1, got.Counters["refund"])
	assert.Equal(t, 4, got.ApprovedToday)

	close(release)
	require.NoError(t, <-done)

	_, ok := c.Get("task-1")
	assert.False(t, ok)
	got = c.Summary()
	assert.Equal(t, 1, got.Counters["refund"])
	assert.Equal(t, 4, got.ApprovedToday)
}

func TestApproveRollbackRestoresTaskAndCounters(t *testing.T) {
	client := &stubClient{mutateFn: func(string, model.Action) (model.Entity, error) {
		return model.Entity{}, &remote.TransportError{Op: "POST", URL: "/api/v1/approval_tasks/task-2/actions", Err: errors.New("gateway timeout")}
	}}
	c, _ := newTaskCoordinator(t, client)
	before, _ := c.Get("task-2")

	_, err := c.Apply(context.Background(), "task-2", model.ActionApprove, nil)
	require.Error(t, err)

	after, ok := c.Get("task-2")
	require.True(t, ok)
	assert.True(t, before.Equal(after))

	// Restored at its original position, not appended.
	order := c.Entities()
	require.Len(t, order, 3)
	assert.Equal(t, "task-2", order[1].ID)

	got := c.Summary()
	assert.Equal(t, 2, got.Counters["refund"])
	assert.Equal(t, 1, got.Counters["payout"])
	assert.Equal(t, 3, got.ApprovedToday)
}

func TestRejectDecrementsCounterWithoutApprovedToday(t *testing.T) {
	client := &stubClient{mutateFn: func(id string, _ model.Action) (model.Entity, error) {
		return model.Entity{ID: id, Kind: model.KindApprovalTask, Status: model.StatusRejected}, nil
	}}
	c, _ := newTaskCoordinator(t, client)

	_, err := c.Apply(context.Background(), "task-3", model.ActionReject, nil)
	require.NoError(t, err)

	got := c.Summary()
	assert.Equal(t, 0, got.Counters["payout"])
	assert.Equal(t, 3, got.ApprovedToday)
}

func TestLoadReplacesWorkingSet(t *testing.T) {
	client := &stubClient{
		mutateFn: func(string, model.Action) (model.Entity, error) { return model.Entity{}, nil },
		listFn: func(filter model.Filter) (model.Page, error) {
			assert.Equal(t, model.KindAlert, filter.Kind)
			return model.Page{Items: []model.Entity{
				{ID: "alert-7", Kind: model.KindAlert, Status: model.StatusOpen},
			}, Total: 1}, nil
		},
	}
	c := newAlertCoordinator(t, client)

	require.NoError(t, c.Load(context.Background(), model.Filter{}))
	ents := c.Entities()
	require.Len(t, ents, 1)
	assert.Equal(t, "alert-7", ents[0].ID)
}

func TestBusNotifications(t *testing.T) {
	client := &stubClient{mutateFn: func(id string, _ model.Action) (model.Entity, error) {
		return model.Entity{ID: id, Kind: model.KindAlert, Status: model.StatusAcknowledged}, nil
	}}
	b := bus.New()
	var events []ChangeEvent
	b.Subscribe("alert:changed", func(payload any) {
		events = append(events, payload.(ChangeEvent))
	})
	c := newAlertCoordinator(t, client, WithBus(b))

	_, err := c.Apply(context.Background(), "alert-1", model.ActionAcknowledge, nil)
	require.NoError(t, err)

	// Seed publishes loaded; Apply publishes optimistic then confirmed.
	require.Len(t, events, 3)
	assert.Equal(t, ChangeLoaded, events[0].Type)
	assert.Equal(t, ChangeUpdated, events[1].Type)
	assert.Equal(t, ChangeUpdated, events[2].Type)
	assert.Equal(t, "alert-1", events[1].ID)
}

func TestAuxiliaryDegradesOnFailure(t *testing.T) {
	v, ok := Auxiliary(context.Background(), "order-details", func(context.Context) (string, error) {
		return "", errors.New("upstream 502")
	})
	assert.False(t, ok)
	assert.Empty(t, v)

	v, ok = Auxiliary(context.Background(), "order-details", func(context.Context) (string, error) {
		return "ord-1", nil
	})
	assert.True(t, ok)
	assert.Equal(t, "ord-1", v)
}
