package driver

import (
	"context"

	"github.com/roach88/tabledriver/internal/record"
)

// Line is one raw line read from a table. Number is 1-based; a zero Line
// means the table has no more lines.
type Line struct {
	Text   string
	Number int
}

// Valid reports whether the line came from the table.
func (l Line) Valid() bool {
	return l.Number > 0
}

// RecordSource opens tables by name.
type RecordSource interface {
	Open(ctx context.Context, src record.Source) (TableReader, error)
}

// TableReader reads one opened table.
type TableReader interface {
	// Next returns the next line, or an invalid Line at end of table.
	Next(ctx context.Context) (Line, error)

	// Goto positions the reader on the BlockID record named label so that
	// the following Next returns the line after it. It returns the block
	// line, or an invalid Line when no such block exists.
	Goto(ctx context.Context, label string) (Line, error)

	Close() error
}

// VariableService resolves expressions and stores shared variables.
type VariableService interface {
	ResolveExpressions(ctx context.Context, text, separator string) (string, error)
	Value(ctx context.Context, name string) (string, error)
	SetValue(ctx context.Context, name, value string) error
}

// Handler claims and processes records. Returning ScriptNotExecuted means
// the record was not claimed.
type Handler interface {
	ProcessRecord(ctx context.Context, rec *record.TestRecord) record.Outcome
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rec *record.TestRecord) record.Outcome

// ProcessRecord calls f.
func (f HandlerFunc) ProcessRecord(ctx context.Context, rec *record.TestRecord) record.Outcome {
	return f(ctx, rec)
}

// Engine is a pluggable execution back end.
type Engine interface {
	Handler
	Name() string
	Shutdown() error
}

// LogService receives test-log messages.
type LogService interface {
	LogMessage(ctx context.Context, logID, message, detail string, kind record.MessageType) error
}

// CounterInfo names the scope a counter increment belongs to.
type CounterInfo struct {
	Table string
	Level record.TestLevel
	LogID string
}

// CountersService receives every status increment the driver counts.
type CountersService interface {
	IncrementAllCounters(ctx context.Context, info CounterInfo, kind record.StatusKind) error
}

// Recorder observes each record after its outcome is final.
type Recorder interface {
	Record(ctx context.Context, rec *record.TestRecord) error
}
