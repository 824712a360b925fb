package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatePassingScenario(t *testing.T) {
	out, err := execute(t, "simulate", "testdata/scenarios/smoke.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  smoke")
}

func TestSimulateFailingScenario(t *testing.T) {
	out, err := execute(t, "simulate", "testdata/scenarios/failing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL  failing")
	assert.Contains(t, out, "want status open")
}

func TestSimulateJSONTrace(t *testing.T) {
	out, err := execute(t, "--format", "json", "simulate", "testdata/scenarios/smoke.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, `"scenario_name":"smoke"`)
	assert.Contains(t, out, `"outcome":"confirmed"`)
}

func TestSimulateMixedBatch(t *testing.T) {
	_, err := execute(t, "simulate",
		"testdata/scenarios/smoke.yaml", "testdata/scenarios/failing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 scenarios failed")
}

func TestSimulateUnreadableScenario(t *testing.T) {
	_, err := execute(t, "simulate", "testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
