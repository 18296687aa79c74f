package driver

import (
	"context"
	"log/slog"

	"github.com/roach88/tabledriver/internal/record"
)

// invokeTable runs the table name at level as a child of the current table
// and merges its tallies into the caller's context.
//
// A child that requested shutdown marks rec so every enclosing loop
// terminates too.
func (d *Driver) invokeTable(ctx context.Context, rec *record.TestRecord, name, separator string, level record.TestLevel) record.Outcome {
	parent := d.current
	if name == "" {
		d.logMessage(ctx, rec.LogID,
			d.msgs.Text(msgMissingParameter, "ACTION/TESTNAME", rec.Filename, rec.LineNumber),
			rec.Line, record.MessageFailed)
		return record.ScriptNotExecuted
	}
	if separator == "" {
		separator = rec.Separator
	}

	if !d.opts.AllowRecursiveTables && d.stack.WouldCycle(name) {
		err := NewTableCycleError(name, d.stack.Tables())
		slog.Warn("nested table rejected", "error", err)
		d.logMessage(ctx, rec.LogID, d.msgs.Text(msgTableCycle, level, name), rec.Line, record.MessageFailed)
		return record.GeneralScriptFailure
	}
	if limit := d.opts.MaxTableDepth; limit > 0 && d.stack.Depth() >= limit {
		err := NewDepthExceededError(name, d.stack.Depth()+1, limit)
		slog.Warn("nested table rejected", "error", err)
		d.logMessage(ctx, rec.LogID, d.msgs.Text(msgTableDepth, level, name, limit), rec.Line, record.MessageFailed)
		return record.GeneralScriptFailure
	}

	child := record.Source{Name: name, Level: level, Separator: separator}
	status, shutdown, err := d.runTable(ctx, child, rec.LogID)
	if err != nil {
		slog.Error("nested table failed to open", "table", name, "level", level, "error", err)
		d.logMessage(ctx, rec.LogID, d.msgs.Text(msgTableOpen, level, name), err.Error(), record.MessageFailed)
		return record.InvalidFileIO
	}

	if parent != nil {
		parent.agg.Merge(status)
	}
	if shutdown {
		rec.MarkShutdown()
		return record.ScriptNotExecuted
	}
	return record.NoScriptFailure
}
