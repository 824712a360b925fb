package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opsync/internal/journal"
	"github.com/roach88/opsync/internal/model"
)

func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	at := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, j.RecordMutation(ctx, journal.MutationRecord{
		Kind: model.KindAlert, EntityID: "alert-1", Action: model.ActionDismiss,
		PrevStatus: model.StatusOpen, PredictedStatus: model.StatusDismissed,
		Outcome: journal.OutcomeConfirmed, FinalStatus: model.StatusDismissed, At: at,
	}))
	require.NoError(t, j.RecordMutation(ctx, journal.MutationRecord{
		Kind: model.KindApprovalTask, EntityID: "task-1", Action: model.ActionApprove,
		PrevStatus: model.StatusPending, PredictedStatus: model.StatusApproved,
		Outcome: journal.OutcomeRolledBack, FinalStatus: model.StatusPending,
		Error: "connection refused", At: at.Add(time.Second),
	}))
	require.NoError(t, j.RecordFeedEvent(ctx, journal.FeedRecord{
		Source: "push", Event: "accepted", TxnID: "t1", OrderID: "o1", At: at.Add(2 * time.Second),
	}))
	return path
}

func TestReplayPrintsJournal(t *testing.T) {
	path := seedJournal(t)

	out, err := execute(t, "replay", path)
	require.NoError(t, err)
	assert.Contains(t, out, "alert/alert-1")
	assert.Contains(t, out, "ROLLED BACK: connection refused")
	assert.Contains(t, out, "feed/push")
}

func TestReplayFilters(t *testing.T) {
	path := seedJournal(t)

	out, err := execute(t, "replay", "--mutations-only", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "feed/push")

	out, err = execute(t, "replay", "--feed-only", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "alert-1")
	assert.Contains(t, out, "feed/push")
}

func TestReplayJSON(t *testing.T) {
	path := seedJournal(t)

	out, err := execute(t, "--format", "json", "replay", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)
	assert.Contains(t, out, "task-1")
}

func TestReplayEmptyJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	out, err := execute(t, "replay", path)
	require.NoError(t, err)
	assert.Contains(t, out, "journal is empty")
}

func TestReplayMissingJournal(t *testing.T) {
	_, err := execute(t, "replay", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
