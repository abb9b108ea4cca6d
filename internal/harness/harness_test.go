package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"pipeline_parallel", "failing_continue", "cyclic"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_PipelineResult(t *testing.T) {
	result, err := Run(loadScenario(t, "pipeline_parallel"))
	require.NoError(t, err)

	assert.Equal(t, "scenario-pipeline", result.RunID)
	assert.Equal(t, []string{"src", "offset", "triple", "total", "out"}, result.Order)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, "compiled", result.Trace[2].Kind)
	assert.Equal(t, int64(3), result.Trace[2].Seq)
}

func TestRun_CycleStopsBeforeExecution(t *testing.T) {
	result, err := Run(loadScenario(t, "cyclic"))
	require.NoError(t, err)

	assert.Empty(t, result.Order)
	assert.Empty(t, result.Trace)
	assert.Empty(t, result.RunID)
}

func TestRun_UnexpectedError(t *testing.T) {
	s := loadScenario(t, "failing_continue")
	s.ExpectError = ""

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "unexpected error")
}

func TestRun_WrongExpectedError(t *testing.T) {
	s := loadScenario(t, "failing_continue")
	s.ExpectError = "SUBGRAPH_EXECUTION"

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected error SUBGRAPH_EXECUTION")
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	s := loadScenario(t, "pipeline_parallel")
	s.ExpectError = "NODE_EXECUTION"

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "got success")
}

func TestRun_FailingAssertionIsReported(t *testing.T) {
	s := loadScenario(t, "pipeline_parallel")
	s.Assertions = []Assertion{{Type: AssertValue, Port: "out.value", Expect: 17}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "out.value = 17")
}

func TestRun_AbortPolicyRecordsSkips(t *testing.T) {
	s := loadScenario(t, "failing_continue")
	s.Policy = "abort"
	s.Assertions = []Assertion{
		{Type: AssertTaskStatus, Task: "right", Status: "skipped"},
		{Type: AssertTaskCount, Status: "skipped", Count: 2},
		{Type: AssertRecorded, Task: "right", Status: "skipped"},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MissingGraphIsInfrastructureError(t *testing.T) {
	s := loadScenario(t, "cyclic")
	s.Graph = filepath.Join(t.TempDir(), "gone.yaml")

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load graph")
}
