package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioCommandPasses(t *testing.T) {
	out, err := execute(t, "scenario", "testdata/scenarios/cli_smoke.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS cli_smoke")
	assert.Contains(t, out, "1/1 passed")
}

func TestScenarioCommandDirectory(t *testing.T) {
	out, err := execute(t, "scenario", "testdata/scenarios")
	require.Error(t, err, "directory contains a deliberately failing scenario")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL cli_failing")
	assert.Contains(t, out, "PASS cli_smoke")
	assert.Contains(t, out, "1/2 passed")
}

func TestScenarioCommandJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "scenario", "testdata/scenarios/cli_smoke.yaml")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["passed"])
}

func TestScenarioCommandMissingPath(t *testing.T) {
	_, err := execute(t, "scenario", "testdata/scenarios/absent.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
