package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabledriver/internal/driver"
)

func TestRunWithGolden_StepFlow(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/step_flow.yaml")
	require.NoError(t, err)

	// First run with -update to create golden file:
	//   go test ./internal/harness -run TestRunWithGolden_StepFlow -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_SuiteNesting(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/suite_nesting.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/step_flow.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	AssertGolden(t, "step_flow", result)
}

func TestTraceSnapshot_Render(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "render",
		Status:       driver.StatusCounter{GeneralPasses: 1},
		Trace: []TraceEvent{
			{Seq: 1, Table: "Main", Line: 1, RecordType: "C", Command: "LogMessage", Outcome: "NO_SCRIPT_FAILURE"},
		},
	}

	want := "scenario: render\n" +
		"status: tests: 0 passed, 0 failed, 0 warnings, 0 io failures; general: 1 passed, 0 failed, 0 warnings, 0 io failures; 0 skipped\n" +
		"shutdown: false\n" +
		"trace:\n" +
		"  [1] Main:1 C LogMessage NO_SCRIPT_FAILURE\n"
	assert.Equal(t, want, string(snapshot.Render()))
	assert.Equal(t, snapshot.Render(), snapshot.Render())
}
