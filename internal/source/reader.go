package source

import (
	"context"
	"strings"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/record"
)

// lineReader serves the lines of one opened table.
type lineReader struct {
	name      string
	separator string
	lines     []string
	pos       int
	closed    bool
}

func newLineReader(name, separator string, lines []string) *lineReader {
	return &lineReader{name: name, separator: separator, lines: lines}
}

// Next returns the next line or an invalid Line at end of table.
func (r *lineReader) Next(ctx context.Context) (driver.Line, error) {
	if err := ctx.Err(); err != nil {
		return driver.Line{}, err
	}
	if r.closed || r.pos >= len(r.lines) {
		return driver.Line{}, nil
	}
	r.pos++
	return driver.Line{Text: r.lines[r.pos-1], Number: r.pos}, nil
}

// Goto searches the whole table for "B<sep>label" and positions the reader
// after it. Labels match case-insensitively.
func (r *lineReader) Goto(ctx context.Context, label string) (driver.Line, error) {
	if err := ctx.Err(); err != nil {
		return driver.Line{}, err
	}
	label = strings.TrimSpace(label)
	if r.closed || label == "" {
		return driver.Line{}, nil
	}
	for i, text := range r.lines {
		if record.IsComment(text) {
			continue
		}
		fields := record.Tokenize(strings.TrimSpace(text), r.separator)
		if len(fields) < 2 {
			continue
		}
		if !strings.EqualFold(record.Unquote(fields[0]), string(record.BlockID)) {
			continue
		}
		if strings.EqualFold(record.Unquote(fields[1]), label) {
			r.pos = i + 1
			return driver.Line{Text: text, Number: i + 1}, nil
		}
	}
	return driver.Line{}, nil
}

// Close releases the table. Further reads return end of table.
func (r *lineReader) Close() error {
	r.closed = true
	r.lines = nil
	return nil
}
