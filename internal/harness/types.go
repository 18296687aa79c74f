package harness

import (
	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/store"
)

// TraceEvent is one executed record, in execution order.
//
// Records of a nested table precede the record that invoked it, because a
// record is traced once its outcome is known.
type TraceEvent struct {
	Seq        int    `json:"seq"`
	Table      string `json:"table"`
	Level      string `json:"level"`
	Line       int    `json:"line"`
	RecordType string `json:"record_type"`
	Command    string `json:"command,omitempty"`
	Outcome    string `json:"outcome"`
	StatusInfo string `json:"status_info,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success: the expected status matched
	// and every assertion held.
	Pass bool `json:"pass"`

	// Trace holds the executed records in order.
	Trace []TraceEvent `json:"trace"`

	// Messages is the test log written during the run.
	Messages []store.Message `json:"messages"`

	// Status is the run's final counter.
	Status driver.StatusCounter `json:"status"`

	// Shutdown reports whether the run ended on a shutdown request.
	Shutdown bool `json:"shutdown"`

	// Vars holds the final value of every variable named by a final_var
	// assertion.
	Vars map[string]string `json:"vars,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Messages: []store.Message{},
		Vars:     make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddRecordTrace appends ev with the next sequence number.
func (r *Result) AddRecordTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
