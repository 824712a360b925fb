// Package harness runs YAML conformance scenarios against the real
// coordinator and feed window with deterministic helpers: a stepped
// clock, sequential synthetic ids, and a scripted backend. Every
// scenario produces a trace suitable for golden-file comparison.
package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/roach88/opsync/internal/compiler"
	"github.com/roach88/opsync/internal/coordinator"
	"github.com/roach88/opsync/internal/feed"
	"github.com/roach88/opsync/internal/model"
	"github.com/roach88/opsync/internal/remote"
	"github.com/roach88/opsync/internal/testutil"
	"github.com/roach88/opsync/internal/transition"
)

// scriptedClient serves the backend script of the apply step currently
// executing. The runner is single-threaded, so one slot suffices.
type scriptedClient struct {
	script *BackendScript
	base   model.Entity // pre-mutation entity, template for the server response
	clock  model.Clock
}

func (c *scriptedClient) List(context.Context, model.Filter) (model.Page, error) {
	return model.Page{}, nil
}

func (c *scriptedClient) GetByID(_ context.Context, id string) (model.Entity, error) {
	return model.Entity{}, &remote.SemanticError{Code: remote.CodeNotFound, Reason: id}
}

func (c *scriptedClient) Mutate(_ context.Context, id string, action model.Action, _ map[string]string) (model.Entity, error) {
	s := c.script
	if s == nil {
		return model.Entity{}, fmt.Errorf("no backend script for %s on %s", action, id)
	}
	switch s.Fail {
	case "transport":
		return model.Entity{}, &remote.TransportError{
			Op: "POST", URL: "scripted://" + id, Err: fmt.Errorf("%s", orDefault(s.Message, "connection refused")),
		}
	case "semantic":
		return model.Entity{}, &remote.SemanticError{
			Code: orDefault(s.Code, remote.CodeConflict), Reason: s.Message,
		}
	case "":
		server := c.base
		server.Status = model.Status(s.Status)
		server.LastUpdatedAt = c.clock.Now()
		return server, nil
	default:
		return model.Entity{}, fmt.Errorf("unknown backend fail mode %q", s.Fail)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Run executes one scenario and returns its result. Every run gets a
// fresh coordinator, window, clock and id sequence, so runs are
// independent and reproducible.
func Run(scenario *Scenario) (*Result, error) {
	table, err := scenarioTable(scenario)
	if err != nil {
		return nil, err
	}

	clock := testutil.NewDeterministicClockAt(
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	client := &scriptedClient{clock: clock}

	var opts []coordinator.Option
	opts = append(opts, coordinator.WithClock(clock))

	var summary *model.Summary
	if scenario.Summary != nil {
		summary = model.NewSummary()
		for k, v := range scenario.Summary.Counters {
			summary.Counters[k] = v
		}
		summary.ApprovedToday = scenario.Summary.ApprovedToday
		opts = append(opts, coordinator.WithSummary(summary))
	}

	coord := coordinator.New(scenario.Kind, client, table, opts...)

	seeds := make([]model.Entity, len(scenario.Entities))
	for i, s := range scenario.Entities {
		seeds[i] = s.Entity(scenario.Kind)
	}
	coord.Seed(seeds)

	window := feed.NewWindow(feed.DefaultCapacity, testutil.NewSeqIDGenerator("gen"))

	result := NewResult()
	ctx := context.Background()
	var seq int64

	for i, step := range scenario.Steps {
		seq++
		switch {
		case step.Apply != nil:
			runApply(ctx, coord, client, step.Apply, seq, result)
		case step.Poll != nil:
			items := make([]model.Entity, len(step.Poll.Items))
			for j, s := range step.Poll.Items {
				items[j] = s.Entity(model.KindLiveTransaction)
			}
			res := window.MergePoll(items)
			result.Trace = append(result.Trace, TraceEvent{
				Seq: seq, Type: "poll", Accepted: res.Accepted, Refreshed: res.Refreshed, Dropped: res.Dropped,
			})
		case step.PushCreated != nil:
			ev := remote.PaymentCreated{
				TxnID:       step.PushCreated.TxnID,
				OrderID:     step.PushCreated.OrderID,
				Amount:      step.PushCreated.Amount,
				Currency:    step.PushCreated.Currency,
				Status:      model.Status(step.PushCreated.Status),
				Description: step.PushCreated.Description,
			}
			ent, entered := window.ApplyCreated(ev, clock)
			result.Trace = append(result.Trace, TraceEvent{
				Seq: seq, Type: "push_created", ID: ent.ID, OrderID: ent.OrderID, Entered: entered,
			})
		case step.PushCancelled != nil:
			rewrote := window.ApplyCancelled(remote.OrderCancelled{OrderID: step.PushCancelled.OrderID})
			result.Trace = append(result.Trace, TraceEvent{
				Seq: seq, Type: "push_cancelled", OrderID: step.PushCancelled.OrderID, Rewrote: rewrote,
			})
		default:
			return nil, fmt.Errorf("step %d: empty step", i)
		}
	}

	result.Entities = coord.Entities()
	result.Feed = window.Snapshot()
	result.Summary = coord.Summary()
	checkExpectations(scenario, result)
	return result, nil
}

func runApply(ctx context.Context, coord *coordinator.Coordinator, client *scriptedClient, step *ApplyStep, seq int64, result *Result) {
	ev := TraceEvent{
		Seq: seq, Type: "mutation", ID: step.ID, Action: step.Action,
	}

	before, ok := coord.Get(step.ID)
	if ok {
		ev.From = string(before.Status)
		client.base = before
	}
	client.script = step.Backend
	defer func() { client.script = nil }()

	server, err := coord.Apply(ctx, step.ID, model.Action(step.Action), step.Metadata)
	switch {
	case err == nil:
		ev.Outcome = "confirmed"
		ev.Final = string(server.Status)
	case coordinator.IsNotFound(err) || transition.IsUndefined(err):
		ev.Outcome = "rejected"
		ev.Error = classify(err)
	default:
		ev.Outcome = "rolled_back"
		ev.Error = classify(err)
		if after, ok := coord.Get(step.ID); ok {
			ev.Final = string(after.Status)
		}
	}
	result.Trace = append(result.Trace, ev)

	if want := step.ExpectError; want != "" {
		if got := classify(err); got != want {
			result.AddError("step %d: expected %s error, got %s", seq, want, got)
		}
	} else if err != nil {
		result.AddError("step %d: unexpected error: %v", seq, err)
	}
}

// classify maps an error to its scenario-facing class name.
func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case remote.IsTransport(err):
		return "transport"
	case remote.IsSemantic(err):
		return "semantic"
	case coordinator.IsBusy(err):
		return "busy"
	case coordinator.IsNotFound(err):
		return "not_found"
	case transition.IsUndefined(err):
		return "undefined"
	default:
		return "unknown"
	}
}

func scenarioTable(scenario *Scenario) (*transition.Table, error) {
	if scenario.Table == "" {
		return transition.Default(), nil
	}
	path := scenario.Table
	if !filepath.IsAbs(path) {
		path = filepath.Join(scenario.dir, path)
	}
	return compiler.CompileTableFile(path)
}
