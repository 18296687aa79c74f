package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tabledriver/internal/driver"
)

// TraceSnapshot captures what a golden file pins for a scenario run.
type TraceSnapshot struct {
	ScenarioName string
	Status       driver.StatusCounter
	Shutdown     bool
	Trace        []TraceEvent
}

// Snapshot captures result under name.
func Snapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Status:       result.Status,
		Shutdown:     result.Shutdown,
		Trace:        result.Trace,
	}
}

// Render formats the snapshot as stable, line-oriented text.
func (s *TraceSnapshot) Render() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", s.ScenarioName)
	fmt.Fprintf(&buf, "status: %s\n", driver.FormatStatus(s.Status))
	fmt.Fprintf(&buf, "shutdown: %t\n", s.Shutdown)
	fmt.Fprintf(&buf, "trace:\n")
	for _, event := range s.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, formatEvent(event))
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	snapshot := Snapshot(scenarioName, result)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot.Render())
}
