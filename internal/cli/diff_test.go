package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffMatchingTables(t *testing.T) {
	out, err := execute(t, "diff",
		"testdata/tables/alerts.cue", "testdata/exports/backend-match.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "tables match")
}

func TestDiffReportsDrift(t *testing.T) {
	out, err := execute(t, "diff",
		"testdata/tables/alerts.cue", "testdata/exports/backend-drift.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// The drifted export drops add_note, narrows resolve's from set and
	// clears its removes flag.
	assert.Contains(t, out, "add_note")
	assert.Contains(t, out, "resolve")
}

func TestDiffBadLocalTable(t *testing.T) {
	_, err := execute(t, "diff",
		"testdata/tables/bad-syntax.cue", "testdata/exports/backend-match.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDiffMissingExport(t *testing.T) {
	_, err := execute(t, "diff",
		"testdata/tables/alerts.cue", "testdata/exports/nope.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
