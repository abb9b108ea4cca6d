package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")

func TestTest_HarnessScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir)
	require.NoError(t, err)

	assert.Equal(t, "✓ cyclic\n"+
		"✓ failing_continue\n"+
		"✓ pipeline_parallel\n"+
		"\n"+
		"Test Summary: 3 passed, 0 failed, 3 total\n"+
		"✓ All scenarios passed\n", out)
}

func TestTest_JSONFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), scenariosDir, "--filter", "pipeline_*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "pipeline_parallel", resp.Data.Scenarios[0].Name)
}

// writeScenario writes a scenario for the pipeline graph into dir/scenarios.
func writeScenario(t *testing.T, dir, body string) string {
	t.Helper()
	graph, err := filepath.Abs(graphPath("pipeline.cue"))
	require.NoError(t, err)

	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	content := "name: local\ndescription: local pipeline\ngraph: " + graph + "\nrun_token: local-run\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "local.yaml"), []byte(content), 0644))
	return scenarios
}

func TestTest_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	scenarios := writeScenario(t, dir, "assertions:\n  - type: task_count\n    status: succeeded\n    count: 4\n")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ local (golden updated)")

	golden := filepath.Join(dir, "golden", "local.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_token":"local-run"`)

	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenarios)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"local"}`), 0644))
	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_FailingAssertion(t *testing.T) {
	scenarios := writeScenario(t, t.TempDir(), "assertions:\n  - type: task_count\n    status: failed\n    count: 1\n")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTest_MissingDirectory(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTest_NoScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}
