package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/tabledriver/internal/record"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, formatEvent(event))
		}
	}
	return buf.String()
}

// assertTraceContains checks that a record with the command was executed,
// optionally with the given outcome and in the given table.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if !strings.EqualFold(event.Command, assertion.Command) {
			continue
		}
		if assertion.Outcome != "" && event.Outcome != outcomeName(assertion.Outcome) {
			continue
		}
		if assertion.Table != "" && !strings.EqualFold(event.Table, assertion.Table) {
			continue
		}
		return nil
	}

	expected := "command " + assertion.Command
	if assertion.Outcome != "" {
		expected += " with outcome " + outcomeName(assertion.Outcome)
	}
	if assertion.Table != "" {
		expected += " in table " + assertion.Table
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that commands first appear in the specified
// order. Intervening records are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make([]int, len(assertion.Commands))
	for i, command := range assertion.Commands {
		positions[i] = -1
		for j, event := range trace {
			if strings.EqualFold(event.Command, command) {
				positions[i] = j
				break
			}
		}
		if positions[i] < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("commands in order %v", assertion.Commands),
				Actual:   fmt.Sprintf("command %s not found in trace", command),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(positions); i++ {
		if positions[i] < positions[i-1] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("commands in order %v", assertion.Commands),
				Actual: fmt.Sprintf("%s (seq %d) executed before %s (seq %d)",
					assertion.Commands[i], trace[positions[i]].Seq,
					assertion.Commands[i-1], trace[positions[i-1]].Seq),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that a command was executed exactly N times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if strings.EqualFold(event.Command, assertion.Command) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("command %s executed %d times", assertion.Command, assertion.Count),
			Actual:   fmt.Sprintf("executed %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalVar checks a shared variable captured after the run.
func assertFinalVar(result *Result, assertion Assertion) error {
	got, ok := result.Vars[assertion.Name]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalVar,
			Expected: fmt.Sprintf("%s = %q", assertion.Name, assertion.Value),
			Actual:   "variable not captured",
		}
	}
	if got != assertion.Value {
		return &AssertionError{
			Type:     AssertFinalVar,
			Expected: fmt.Sprintf("%s = %q", assertion.Name, assertion.Value),
			Actual:   fmt.Sprintf("%s = %q", assertion.Name, got),
		}
	}
	return nil
}

// assertMessageContains checks the test log for a message whose text or
// detail contains the assertion text.
func assertMessageContains(result *Result, assertion Assertion) error {
	for _, m := range result.Messages {
		if assertion.MessageType != "" && !strings.EqualFold(string(m.Type), assertion.MessageType) {
			continue
		}
		if strings.Contains(m.Message, assertion.Text) || strings.Contains(m.Detail, assertion.Text) {
			return nil
		}
	}

	expected := fmt.Sprintf("message containing %q", assertion.Text)
	if assertion.MessageType != "" {
		expected += " of type " + assertion.MessageType
	}
	return &AssertionError{
		Type:     AssertMessageContains,
		Expected: expected,
		Actual:   fmt.Sprintf("not found in %d messages", len(result.Messages)),
	}
}

// EvaluateAssertions runs all assertions and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalVar:
			err = assertFinalVar(result, assertion)
		case AssertMessageContains:
			err = assertMessageContains(result, assertion)
		default:
			err = fmt.Errorf("unknown assertion type: %s", assertion.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// formatEvent renders one trace line: table:line type command outcome.
func formatEvent(ev TraceEvent) string {
	command := ev.Command
	if command == "" {
		command = "-"
	}
	line := fmt.Sprintf("%s:%d %s %s %s", ev.Table, ev.Line, ev.RecordType, command, ev.Outcome)
	if ev.StatusInfo != "" && ev.StatusInfo != record.ShutdownMarker {
		line += " (" + ev.StatusInfo + ")"
	}
	return line
}
