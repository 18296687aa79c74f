package driver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/tabledriver/internal/record"
)

// Resolver resolves variable expressions in a line.
type Resolver func(ctx context.Context, text, separator string) (string, error)

// Classify turns a raw table line into a TestRecord. It returns nil for
// blank lines, comment lines and lines with an empty record type.
//
// Unless resolveSkipped is false and the line is an S record, the line is
// passed through resolve first. Resolution failures leave the line as is.
func Classify(ctx context.Context, raw, separator string, resolve Resolver, resolveSkipped bool) *record.TestRecord {
	if record.IsComment(raw) {
		return nil
	}
	line := strings.TrimLeft(raw, " ")

	doResolve := resolve != nil
	if doResolve && !resolveSkipped {
		tokens := record.Tokenize(line, separator)
		if len(tokens) > 0 && strings.EqualFold(record.Unquote(tokens[0]), string(record.Skipped)) {
			doResolve = false
		}
	}
	if doResolve {
		resolved, err := resolve(ctx, line, separator)
		if err != nil {
			slog.Debug("expression resolution failed, using line as is", "line", line, "error", err)
		} else {
			line = resolved
		}
	}

	rec := record.New(line, separator)
	if rec.Type == "" {
		return nil
	}
	rec.Raw = raw
	return rec
}

// classify builds the record for one table line and publishes the active
// table and separator variables.
func (d *Driver) classify(ctx context.Context, tc *tableContext, raw string, number int) *record.TestRecord {
	rec := Classify(ctx, raw, tc.src.Separator, d.vars.ResolveExpressions, d.opts.ResolveSkippedRecords)
	if rec == nil {
		return nil
	}
	rec.Filename = tc.src.Name
	rec.FileID = tc.src.String()
	rec.LineNumber = number
	rec.Level = tc.src.Level
	rec.LogID = tc.logID

	d.setVar(ctx, tc.src.Level.ActiveTableVariable(), tc.src.Name)
	d.setVar(ctx, SeparatorVariable, rec.Separator)
	return rec
}
