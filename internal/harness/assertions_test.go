package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabledriver/internal/record"
	"github.com/roach88/tabledriver/internal/store"
)

func sampleTrace() []TraceEvent {
	result := NewResult()
	result.AddRecordTrace(TraceEvent{Table: "Login", Line: 1, RecordType: "C", Command: "SetGeneralScriptFailureBlock", Outcome: "NO_SCRIPT_FAILURE"})
	result.AddRecordTrace(TraceEvent{Table: "Login", Line: 2, RecordType: "T", Command: "Click", Outcome: "GENERAL_SCRIPT_FAILURE"})
	result.AddRecordTrace(TraceEvent{Table: "Login", Line: 6, RecordType: "C", Command: "LogMessage", Outcome: "NO_SCRIPT_FAILURE"})
	result.AddRecordTrace(TraceEvent{Table: "Smoke", Line: 1, RecordType: "T", Outcome: "NO_SCRIPT_FAILURE"})
	result.AddRecordTrace(TraceEvent{Table: "Smoke", Line: 2, RecordType: "C", Command: "LogMessage", Outcome: "NO_SCRIPT_FAILURE"})
	return result.Trace
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   bool
	}{
		{"command only", Assertion{Command: "Click"}, false},
		{"case-insensitive command", Assertion{Command: "click"}, false},
		{"matching outcome", Assertion{Command: "Click", Outcome: "GENERAL_SCRIPT_FAILURE"}, false},
		{"outcome alias", Assertion{Command: "Click", Outcome: "fail"}, false},
		{"wrong outcome", Assertion{Command: "Click", Outcome: "PASS"}, true},
		{"matching table", Assertion{Command: "LogMessage", Table: "smoke"}, false},
		{"wrong table", Assertion{Command: "Click", Table: "Smoke"}, true},
		{"absent command", Assertion{Command: "Type"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertTraceContains
			err := assertTraceContains(trace, tt.assertion)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var aerr *AssertionError
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, AssertTraceContains, aerr.Type)
			assert.Equal(t, "not found in trace", aerr.Actual)
		})
	}
}

func TestAssertTraceOrder_Correct(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type:     AssertTraceOrder,
		Commands: []string{"SetGeneralScriptFailureBlock", "LogMessage"},
	})
	assert.NoError(t, err, "intervening records are allowed")
}

func TestAssertTraceOrder_WrongOrder(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type:     AssertTraceOrder,
		Commands: []string{"LogMessage", "Click"},
	})

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Actual, "Click (seq 2) executed before LogMessage (seq 3)")
}

func TestAssertTraceOrder_MissingCommand(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type:     AssertTraceOrder,
		Commands: []string{"Click", "Type"},
	})

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "command Type not found in trace", aerr.Actual)
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Command: "LogMessage", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Command: "Type", Count: 0}))

	err := assertTraceCount(trace, Assertion{Command: "Click", Count: 2})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "executed 1 times", aerr.Actual)
}

func TestAssertFinalVar(t *testing.T) {
	result := NewResult()
	result.Vars["LoginResult"] = "done"

	assert.NoError(t, assertFinalVar(result, Assertion{Name: "LoginResult", Value: "done"}))

	err := assertFinalVar(result, Assertion{Name: "LoginResult", Value: "pending"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `LoginResult = "done"`)

	err = assertFinalVar(result, Assertion{Name: "Other", Value: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable not captured")
}

func TestAssertMessageContains(t *testing.T) {
	result := NewResult()
	result.Messages = []store.Message{
		{Seq: 1, Type: record.MessageGeneric, Message: "STEP TABLE: Login started"},
		{Seq: 2, Type: record.MessageFailed, Message: "Click failed", Detail: "Login at line 2"},
	}

	assert.NoError(t, assertMessageContains(result, Assertion{Text: "started"}))
	assert.NoError(t, assertMessageContains(result, Assertion{Text: "line 2"}), "detail is searched")
	assert.NoError(t, assertMessageContains(result, Assertion{Text: "Click", MessageType: "failed"}))

	err := assertMessageContains(result, Assertion{Text: "started", MessageType: "FAILED"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in 2 messages")
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Command: "Click"},
		{Type: AssertTraceCount, Command: "Click", Count: 1},
		{Type: AssertTraceOrder, Commands: []string{"Click", "LogMessage"}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Command: "Click"},
		{Type: AssertTraceContains, Command: "Type"},
		{Type: AssertTraceCount, Command: "Click", Count: 3},
	})
	assert.Len(t, errs, 2)
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "final_state"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "unknown assertion type")
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceContains,
		Expected: "command Type",
		Actual:   "not found in trace",
		Trace:    sampleTrace()[:2],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_contains")
	assert.Contains(t, msg, "Expected: command Type")
	assert.Contains(t, msg, "Actual: not found in trace")
	assert.Contains(t, msg, "[2] Login:2 T Click GENERAL_SCRIPT_FAILURE")
}

func TestFormatEvent(t *testing.T) {
	assert.Equal(t, "Smoke:1 T - NO_SCRIPT_FAILURE",
		formatEvent(TraceEvent{Table: "Smoke", Line: 1, RecordType: "T", Outcome: "NO_SCRIPT_FAILURE"}))
	assert.Equal(t, "Main:4 C Branch BRANCH_TO_BLOCKID (Retry)",
		formatEvent(TraceEvent{Table: "Main", Line: 4, RecordType: "C", Command: "Branch", Outcome: "BRANCH_TO_BLOCKID", StatusInfo: "Retry"}))
	assert.Equal(t, "Main:2 T - SCRIPT_NOT_EXECUTED",
		formatEvent(TraceEvent{Table: "Main", Line: 2, RecordType: "T", Outcome: "SCRIPT_NOT_EXECUTED", StatusInfo: record.ShutdownMarker}))
}
