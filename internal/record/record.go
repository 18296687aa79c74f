package record

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TestRecord is the per-line snapshot the driver passes through
// classification, routing and result annotation.
//
// A TestRecord is created fresh for each line and discarded once the line's
// outcome has been counted and logged. Engines may read every field; they
// report results through their return value and may set StatusInfo.
type TestRecord struct {
	// Raw is the line as read from the table.
	Raw string

	// Line is the trimmed line after variable resolution.
	Line string

	// Type is the upper-cased tag from field 0.
	Type RecordType

	// Separator is the field delimiter of the owning table.
	Separator string

	// Filename is the table name; FileID is its open-table identity.
	Filename string
	FileID   string

	// LineNumber is 1-based.
	LineNumber int

	// Level is the test level of the owning table.
	Level TestLevel

	// LogID names the log the record's messages go to.
	LogID string

	// Command is the command token chosen by the router for the current mode.
	Command string

	// Status is the current outcome. It starts as ScriptNotExecuted.
	Status Outcome

	// StatusInfo carries outcome detail, e.g. a block label for
	// BranchToBlockID or the shutdown marker for ScriptNotExecuted.
	StatusInfo string

	// MoreEngines is set while other engines remain that could still claim
	// this record. An engine that only partly supports a command can decline
	// it when MoreEngines is true.
	MoreEngines bool

	fields []string
}

// ShutdownMarker in StatusInfo together with ScriptNotExecuted requests that
// every table loop on the call stack terminates.
const ShutdownMarker = "SHUTDOWN_HOOK"

// New builds a record for line, splitting it on sep. The line is expected to
// be already resolved; it is NFC normalized and trimmed.
func New(line, sep string) *TestRecord {
	line = strings.TrimSpace(norm.NFC.String(line))
	rec := &TestRecord{
		Raw:       line,
		Line:      line,
		Separator: sep,
		Status:    ScriptNotExecuted,
	}
	rec.SetLine(line)
	return rec
}

// SetLine replaces the resolved line and re-tokenizes it.
func (r *TestRecord) SetLine(line string) {
	r.Line = strings.TrimSpace(norm.NFC.String(line))
	r.fields = Tokenize(r.Line, r.Separator)
	r.Type = RecordType(strings.ToUpper(r.Field(0)))
}

// Field returns the trimmed, unquoted field at index i or "" if absent.
func (r *TestRecord) Field(i int) string {
	if i < 0 || i >= len(r.fields) {
		return ""
	}
	return Unquote(r.fields[i])
}

// Fields returns a copy of the raw tokens.
func (r *TestRecord) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// FieldCount returns the number of tokens including the record type.
func (r *TestRecord) FieldCount() int {
	return len(r.fields)
}

// IsShutdown reports whether the record carries the shutdown request.
func (r *TestRecord) IsShutdown() bool {
	return r.Status == ScriptNotExecuted && r.StatusInfo == ShutdownMarker
}

// MarkShutdown sets the shutdown outcome/marker pair.
func (r *TestRecord) MarkShutdown() {
	r.Status = ScriptNotExecuted
	r.StatusInfo = ShutdownMarker
}

// Tokenize splits line on sep. Separators inside double-quoted sections do
// not split. An empty separator yields the whole line as a single token.
func Tokenize(line, sep string) []string {
	if line == "" {
		return nil
	}
	if sep == "" {
		return []string{line}
	}
	var (
		tokens  []string
		start   int
		inQuote bool
	)
	for i := 0; i < len(line); {
		if line[i] == '"' {
			inQuote = !inQuote
			i++
			continue
		}
		if !inQuote && strings.HasPrefix(line[i:], sep) {
			tokens = append(tokens, line[start:i])
			i += len(sep)
			start = i
			continue
		}
		i++
	}
	return append(tokens, line[start:])
}

// Unquote trims whitespace and one pair of surrounding double quotes.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// IsComment reports lines the driver never classifies: blank lines and
// lines starting with ' or ; after leading spaces.
func IsComment(line string) bool {
	t := strings.TrimLeft(line, " ")
	if strings.TrimSpace(t) == "" {
		return true
	}
	return t[0] == '\'' || t[0] == ';'
}
