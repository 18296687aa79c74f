package driver

import (
	"context"
	"log/slog"

	"github.com/roach88/tabledriver/internal/record"
)

// StatusCounter holds the tallies of one table context or of a whole run.
//
// Tallies only grow during a table's lifetime. Merge is per-field addition,
// so merging children in any order yields the same totals.
type StatusCounter struct {
	GeneralPasses     int `json:"general_passes" yaml:"general_passes"`
	GeneralFailures   int `json:"general_failures" yaml:"general_failures"`
	GeneralWarnings   int `json:"general_warnings" yaml:"general_warnings"`
	GeneralIOFailures int `json:"general_io_failures" yaml:"general_io_failures"`
	TestPasses        int `json:"test_passes" yaml:"test_passes"`
	TestFailures      int `json:"test_failures" yaml:"test_failures"`
	TestWarnings      int `json:"test_warnings" yaml:"test_warnings"`
	TestIOFailures    int `json:"test_io_failures" yaml:"test_io_failures"`
	Skipped           int `json:"skipped" yaml:"skipped"`
}

// Add increments the tally for kind.
func (c *StatusCounter) Add(kind record.StatusKind) {
	if p := c.field(kind); p != nil {
		*p++
	}
}

// Count returns the tally for kind.
func (c *StatusCounter) Count(kind record.StatusKind) int {
	if p := c.field(kind); p != nil {
		return *p
	}
	return 0
}

// Merge adds every tally of other into c.
func (c *StatusCounter) Merge(other StatusCounter) {
	for _, kind := range record.StatusKinds() {
		*c.field(kind) += other.Count(kind)
	}
}

// Total is the number of counted records.
func (c *StatusCounter) Total() int {
	n := 0
	for _, kind := range record.StatusKinds() {
		n += c.Count(kind)
	}
	return n
}

// Failed reports whether any failure of either family was counted.
func (c *StatusCounter) Failed() bool {
	return c.GeneralFailures+c.GeneralIOFailures+c.TestFailures+c.TestIOFailures > 0
}

func (c *StatusCounter) field(kind record.StatusKind) *int {
	switch kind {
	case record.GeneralPass:
		return &c.GeneralPasses
	case record.GeneralFailure:
		return &c.GeneralFailures
	case record.GeneralWarning:
		return &c.GeneralWarnings
	case record.GeneralIOFailure:
		return &c.GeneralIOFailures
	case record.TestPass:
		return &c.TestPasses
	case record.TestFailure:
		return &c.TestFailures
	case record.TestWarning:
		return &c.TestWarnings
	case record.TestIOFailure:
		return &c.TestIOFailures
	case record.SkippedRecord:
		return &c.Skipped
	}
	return nil
}

// RecordClass selects the counter family for an outcome.
type RecordClass int

const (
	ClassGeneral RecordClass = iota
	ClassTest
	ClassSkipped
)

// ClassOf returns the counter family for a record type.
func ClassOf(t record.RecordType) RecordClass {
	switch {
	case t.IsTest():
		return ClassTest
	case t == record.Skipped:
		return ClassSkipped
	}
	return ClassGeneral
}

// Aggregator counts outcomes for one table context and forwards each
// increment to the shared CountersService.
type Aggregator struct {
	counter  StatusCounter
	counters CountersService
	info     CounterInfo
}

// NewAggregator creates an aggregator for the scope described by info.
// counters may be nil.
func NewAggregator(counters CountersService, info CounterInfo) *Aggregator {
	return &Aggregator{counters: counters, info: info}
}

// Status returns a copy of the current tallies.
func (a *Aggregator) Status() StatusCounter {
	return a.counter
}

// Count increments kind locally and in the CountersService.
func (a *Aggregator) Count(ctx context.Context, kind record.StatusKind) {
	a.counter.Add(kind)
	if a.counters == nil {
		return
	}
	if err := a.counters.IncrementAllCounters(ctx, a.info, kind); err != nil {
		slog.Warn("counter increment failed",
			"table", a.info.Table,
			"kind", kind.String(),
			"error", err,
		)
	}
}

// RecordOutcome increments exactly one counter for outcome and reports
// whether anything was counted. Pre-logged test outcomes count in the test
// family whatever the record class. Outcomes with no counter mapping, such
// as BranchToBlockID or IgnoreReturnCode, count nothing.
func (a *Aggregator) RecordOutcome(ctx context.Context, class RecordClass, outcome record.Outcome) bool {
	kind, ok := StatusKindFor(class, outcome)
	if !ok {
		return false
	}
	a.Count(ctx, kind)
	return true
}

// Merge adds a completed child context's tallies.
func (a *Aggregator) Merge(child StatusCounter) {
	a.counter.Merge(child)
}

// StatusKindFor maps a record class and outcome to its counter.
func StatusKindFor(class RecordClass, outcome record.Outcome) (record.StatusKind, bool) {
	switch outcome {
	case record.TestSuccessLogged:
		return record.TestPass, true
	case record.TestFailureLogged:
		return record.TestFailure, true
	case record.TestWarningLogged:
		return record.TestWarning, true
	}

	switch class {
	case ClassSkipped:
		return record.SkippedRecord, true
	case ClassTest:
		switch outcome {
		case record.NoScriptFailure:
			return record.TestPass, true
		case record.ScriptWarning:
			return record.TestWarning, true
		case record.GeneralScriptFailure:
			return record.TestFailure, true
		case record.InvalidFileIO:
			return record.TestIOFailure, true
		}
	default:
		switch outcome {
		case record.NoScriptFailure:
			return record.GeneralPass, true
		case record.ScriptWarning:
			return record.GeneralWarning, true
		case record.GeneralScriptFailure:
			return record.GeneralFailure, true
		case record.InvalidFileIO:
			return record.GeneralIOFailure, true
		}
	}
	return 0, false
}

// GeneralOutcome converts a pre-logged test outcome to the general outcome
// used for flow control.
func GeneralOutcome(outcome record.Outcome) record.Outcome {
	switch outcome {
	case record.TestSuccessLogged:
		return record.NoScriptFailure
	case record.TestFailureLogged:
		return record.GeneralScriptFailure
	case record.TestWarningLogged:
		return record.ScriptWarning
	}
	return outcome
}
