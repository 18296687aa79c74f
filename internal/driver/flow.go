package driver

import (
	"github.com/roach88/tabledriver/internal/record"
)

// FlowCategory keys a branch target by outcome category.
type FlowCategory int

const (
	FlowNotExecuted FlowCategory = iota
	FlowExitTable
	FlowNoFailure
	FlowFailure
	FlowWarning
	FlowIOFailure
	flowCategoryCount
)

var flowCategoryNames = [flowCategoryCount]string{
	FlowNotExecuted: "NOT_EXECUTED",
	FlowExitTable:   "EXIT_TABLE",
	FlowNoFailure:   "NO_FAILURE",
	FlowFailure:     "FAILURE",
	FlowWarning:     "WARNING",
	FlowIOFailure:   "IO_FAILURE",
}

func (c FlowCategory) String() string {
	if c >= 0 && c < flowCategoryCount {
		return flowCategoryNames[c]
	}
	return "UNKNOWN"
}

// FlowCategoryFor returns the category consulted after an outcome, if any.
func FlowCategoryFor(outcome record.Outcome) (FlowCategory, bool) {
	switch outcome {
	case record.ScriptNotExecuted:
		return FlowNotExecuted, true
	case record.ExitTableCommand:
		return FlowExitTable, true
	case record.NoScriptFailure:
		return FlowNoFailure, true
	case record.GeneralScriptFailure:
		return FlowFailure, true
	case record.ScriptWarning:
		return FlowWarning, true
	case record.InvalidFileIO:
		return FlowIOFailure, true
	}
	return 0, false
}

// FlowControl holds the branch targets of one scope. An empty target is
// invalid. The NO_FAILURE target is one-shot: Consult clears it.
type FlowControl struct {
	targets [flowCategoryCount]string
}

// NewFlowControl returns a policy with every target empty.
func NewFlowControl() *FlowControl {
	return &FlowControl{}
}

// Set stores label as the target for c. An empty label clears it.
func (f *FlowControl) Set(c FlowCategory, label string) {
	if c < 0 || c >= flowCategoryCount {
		return
	}
	f.targets[c] = label
}

// Target returns the target for c without consuming it.
func (f *FlowControl) Target(c FlowCategory) string {
	if c < 0 || c >= flowCategoryCount {
		return ""
	}
	return f.targets[c]
}

// Valid reports whether c has a non-empty target.
func (f *FlowControl) Valid(c FlowCategory) bool {
	return f.Target(c) != ""
}

// Consult returns the target for c and whether it is valid. Consulting
// FlowNoFailure always clears it first, whether or not it was set.
func (f *FlowControl) Consult(c FlowCategory) (string, bool) {
	label := f.Target(c)
	if c == FlowNoFailure {
		f.targets[c] = ""
	}
	return label, label != ""
}

// Reset clears every target.
func (f *FlowControl) Reset() {
	f.targets = [flowCategoryCount]string{}
}

// flowScopes holds one shared policy per test level.
type flowScopes map[record.TestLevel]*FlowControl

func newFlowScopes() flowScopes {
	return flowScopes{
		record.Cycle: NewFlowControl(),
		record.Suite: NewFlowControl(),
		record.Step:  NewFlowControl(),
	}
}

func (s flowScopes) get(level record.TestLevel) *FlowControl {
	fc, ok := s[level]
	if !ok {
		fc = NewFlowControl()
		s[level] = fc
	}
	return fc
}
