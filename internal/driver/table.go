package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/tabledriver/internal/record"
)

// tableContext is the state of one executing table.
type tableContext struct {
	src    record.Source
	reader TableReader
	agg    *Aggregator
	local  *FlowControl
	logID  string
}

// lineResult is what the loop needs to know about one processed line.
type lineResult struct {
	rec      *record.TestRecord
	result   record.Outcome
	exit     bool
	shutdown bool
	pause    bool
	delayed  bool
}

// runTable opens src and executes it to completion.
func (d *Driver) runTable(ctx context.Context, src record.Source, logID string) (StatusCounter, bool, error) {
	if src.Separator == "" {
		src.Separator = ","
	}
	reader, err := d.source.Open(ctx, src)
	if err != nil {
		return StatusCounter{}, false, NewTableOpenError(src.Name, string(src.Level), err)
	}

	tc := &tableContext{
		src:    src,
		reader: reader,
		agg:    NewAggregator(d.counters, CounterInfo{Table: src.Name, Level: src.Level, LogID: logID}),
		local:  NewFlowControl(),
		logID:  logID,
	}

	d.stack.Push(src.Name)
	defer d.stack.Pop()
	parent := d.current
	d.current = tc
	defer func() { d.current = parent }()

	shutdown := d.processTable(ctx, tc)
	return tc.agg.Status(), shutdown, nil
}

// processTable is the record loop. It reports whether a shutdown was
// requested.
func (d *Driver) processTable(ctx context.Context, tc *tableContext) (shutdown bool) {
	d.logMessage(ctx, tc.logID, d.msgs.Text(msgTableStart, tc.src.Level, tc.src.Name), "", record.MessageStartDatatable)
	defer d.endTable(ctx, tc)

	line, err := tc.reader.Next(ctx)
	raw := line.Text
	for err == nil && line.Valid() {
		res := d.processLine(ctx, tc, raw, line.Number)
		if res.shutdown {
			return true
		}
		if res.exit {
			return false
		}
		if res.pause {
			if err := d.controller.Set(ctx, StatePause); err != nil {
				slog.Warn("control state write failed", "error", err)
			}
		}
		if err := d.controller.Delay(ctx, d.opts.DelayBetweenRecords); err != nil {
			d.logMessage(ctx, tc.logID, d.msgs.Text(msgUserAbort), "", record.MessageWarning)
			return true
		}

		switch d.controller.Poll(ctx) {
		case ActionShutdown:
			d.logMessage(ctx, tc.logID, d.msgs.Text(msgUserAbort), "", record.MessageWarning)
			return true
		case ActionRetry:
			if res.rec != nil {
				raw = d.retryLine(ctx, tc, res.rec, raw)
				continue
			}
		}
		if res.delayed {
			d.handleFlowControl(ctx, tc, res.rec, res.result)
		}

		line, err = tc.reader.Next(ctx)
		raw = line.Text
	}
	if err != nil {
		slog.Error("table read failed", "table", tc.src.Name, "error", err)
		d.logMessage(ctx, tc.logID, d.msgs.Text(msgTableOpen, tc.src.Level, tc.src.Name), err.Error(), record.MessageFailed)
		tc.agg.Count(ctx, record.GeneralIOFailure)
	}
	return false
}

func (d *Driver) endTable(ctx context.Context, tc *tableContext) {
	d.logMessage(ctx, tc.logID, d.msgs.Text(msgTableEnd, tc.src.Level, tc.src.Name), "", record.MessageEndDatatable)
	if err := tc.reader.Close(); err != nil {
		slog.Warn("table close failed", "table", tc.src.Name, "error", err)
	}
	if tc.src.Level != record.Step {
		status := tc.agg.Status()
		d.logMessage(ctx, tc.logID,
			fmt.Sprintf("%s TABLE: %s status", tc.src.Level, tc.src.Name),
			FormatStatus(status), record.MessageStatus)
	}
}

// FormatStatus renders a counter as a single summary line.
func FormatStatus(s StatusCounter) string {
	return fmt.Sprintf(
		"tests: %d passed, %d failed, %d warnings, %d io failures; general: %d passed, %d failed, %d warnings, %d io failures; %d skipped",
		s.TestPasses, s.TestFailures, s.TestWarnings, s.TestIOFailures,
		s.GeneralPasses, s.GeneralFailures, s.GeneralWarnings, s.GeneralIOFailures,
		s.Skipped,
	)
}

// processLine classifies, dispatches, counts and publishes one line.
func (d *Driver) processLine(ctx context.Context, tc *tableContext, raw string, number int) lineResult {
	rec := d.classify(ctx, tc, raw, number)
	if rec == nil {
		return lineResult{}
	}

	if rec.Type == record.Breakpoint {
		if !d.opts.Breakpoints {
			return lineResult{rec: rec, result: record.NoScriptFailure}
		}
		d.logMessage(ctx, tc.logID, d.msgs.Text(msgBreakpoint, rec.LineNumber, rec.Filename), rec.Line, record.MessageGeneric)
		return lineResult{rec: rec, result: record.NoScriptFailure, pause: true}
	}

	result, class := d.dispatch(ctx, tc, rec)
	res := d.evaluate(ctx, tc, rec, result, class)
	d.publish(ctx, rec, raw)
	if d.recorder != nil {
		if err := d.recorder.Record(ctx, rec); err != nil {
			slog.Warn("record observer failed", "table", rec.Filename, "line", rec.LineNumber, "error", err)
		}
	}
	return res
}

// dispatch routes rec by its type and returns the outcome together with the
// counter family it is charged to.
func (d *Driver) dispatch(ctx context.Context, tc *tableContext, rec *record.TestRecord) (record.Outcome, RecordClass) {
	var result record.Outcome
	class := ClassGeneral

	switch {
	case rec.Type.IsDriverCommand():
		result = d.router.Route(ctx, rec, ModeDriverCommand)
	case rec.Type == record.EngineCommand:
		result = d.router.Route(ctx, rec, ModeEngineCommand)
	case rec.Type.IsTest() && tc.src.Level == record.Step:
		result = d.router.Route(ctx, rec, ModeComponentFunction)
		class = ClassTest
	case rec.Type.IsTest():
		result = d.invokeTable(ctx, rec, rec.Field(1), rec.Field(2), tc.src.Level.Child())
	case rec.Type == record.Skipped:
		d.logMessage(ctx, tc.logID, rec.Field(1), rec.Line, record.MessageSkipped)
		result = record.NoScriptFailure
		class = ClassSkipped
	case rec.Type == record.BlockID:
		d.logMessage(ctx, tc.logID, d.msgs.Text(msgBeginBlock, rec.Field(1)), "", record.MessageGeneric)
		result = record.NoScriptFailure
	default:
		result = d.router.Route(ctx, rec, ModeImpliedCall)
	}
	rec.Status = result
	return result, class
}

// evaluate applies exit requests, counting and flow control to a
// dispatched record.
func (d *Driver) evaluate(ctx context.Context, tc *tableContext, rec *record.TestRecord, result record.Outcome, class RecordClass) lineResult {
	res := lineResult{rec: rec}
	if result == record.ScriptNotExecuted && rec.StatusInfo == record.ShutdownMarker {
		res.result = result
		res.shutdown = true
		return res
	}

	if d.exitSuite || d.exitCycle {
		result = record.ExitTableCommand
		tc.agg.Count(ctx, record.GeneralWarning)
		d.logMessage(ctx, tc.logID, d.msgs.Text(msgTerminatingEarly, tc.src.Level), rec.Line, record.MessageWarning)
		if tc.src.Level == record.Suite {
			d.exitSuite = false
		}
		if tc.src.Level == record.Cycle {
			d.exitCycle = false
		}
	}

	// the record keeps its own outcome; branching only changes the result
	// the loop continues with
	rec.Status = result

	fc := d.flow()
	switch result {
	case record.ScriptNotExecuted:
		tc.agg.Count(ctx, record.GeneralFailure)
		if label, ok := fc.Consult(FlowNotExecuted); ok {
			result = d.locate(ctx, tc, rec, label)
		}

	case record.ExitTableCommand:
		tc.agg.Count(ctx, record.GeneralPass)
		label, ok := fc.Consult(FlowExitTable)
		if !ok {
			res.exit = true
			break
		}
		result = d.locate(ctx, tc, rec, label)

	case record.BranchToBlockID:
		label := strings.TrimSpace(rec.StatusInfo)
		if label == "" {
			slog.Error("branch requested without a block label", "table", rec.Filename, "line", rec.LineNumber)
			tc.agg.Count(ctx, record.GeneralFailure)
			result = record.GeneralScriptFailure
			break
		}
		result = d.locate(ctx, tc, rec, label)
		if result == record.NoScriptFailure {
			tc.agg.Count(ctx, record.GeneralPass)
		}

	default:
		tc.agg.RecordOutcome(ctx, class, result)
		result = GeneralOutcome(result)
		if d.controller.PauseOn(ctx, result) {
			res.pause = true
			res.delayed = true
			break
		}
		result = d.handleFlowControl(ctx, tc, rec, result)
	}

	// a branch that could not be taken is a failure in its own right
	if !res.pause && d.controller.PauseOn(ctx, result) {
		res.pause = true
	}
	res.result = result
	return res
}

// handleFlowControl consults the active policy for result and branches
// when a target is set.
func (d *Driver) handleFlowControl(ctx context.Context, tc *tableContext, rec *record.TestRecord, result record.Outcome) record.Outcome {
	cat, ok := FlowCategoryFor(result)
	if !ok || cat == FlowNotExecuted || cat == FlowExitTable {
		return result
	}
	label, ok := d.flow().Consult(cat)
	if !ok {
		return result
	}
	return d.locate(ctx, tc, rec, label)
}

// locate positions the reader after block label. A missing block is a
// counted general failure.
func (d *Driver) locate(ctx context.Context, tc *tableContext, rec *record.TestRecord, label string) record.Outcome {
	line, err := tc.reader.Goto(ctx, label)
	if err == nil && line.Valid() {
		d.logMessage(ctx, tc.logID, d.msgs.Text(msgBranching, label, tc.src.Name), "", record.MessageGeneric)
		return record.NoScriptFailure
	}
	if err != nil {
		slog.Debug("block lookup failed", "table", tc.src.Name, "block", label, "error", err)
	}
	d.logMessage(ctx, tc.logID,
		d.msgs.Text(msgBranchFailed, tc.src.Name, rec.LineNumber),
		d.msgs.Text(msgBlockNotFound, label), record.MessageFailed)
	tc.agg.Count(ctx, record.GeneralFailure)
	return record.GeneralScriptFailure
}

// publish writes the monitor variables for the processed record.
func (d *Driver) publish(ctx context.Context, rec *record.TestRecord, raw string) {
	d.setVar(ctx, InputRecordVariable, raw)
	d.setVar(ctx, FilenameVariable, rec.Filename)
	d.setVar(ctx, LineNumberVariable, strconv.Itoa(rec.LineNumber))
	d.setVar(ctx, StatusCodeVariable, strconv.Itoa(int(rec.Status)))
	d.setVar(ctx, StatusInfoVariable, rec.StatusInfo)
}

// retryLine returns the line to re-execute. A monitor may have replaced it
// through InputRecordVariable. Test records also invalidate every engine's
// cached application map first.
func (d *Driver) retryLine(ctx context.Context, tc *tableContext, rec *record.TestRecord, raw string) string {
	next, err := d.vars.Value(ctx, InputRecordVariable)
	if err != nil || strings.TrimSpace(next) == "" {
		next = raw
	}
	if rec.Type.IsTest() {
		clear := record.New(string(record.DriverCommand)+rec.Separator+CmdClearAppMapCache, rec.Separator)
		clear.Filename = rec.Filename
		clear.FileID = rec.FileID
		clear.LineNumber = rec.LineNumber
		clear.Level = rec.Level
		clear.LogID = rec.LogID
		clear.Command = CmdClearAppMapCache
		d.router.Broadcast(ctx, clear)
	}
	d.logMessage(ctx, tc.logID, d.msgs.Text(msgRetry, rec.LineNumber, rec.Filename), next, record.MessageGeneric)
	return next
}
