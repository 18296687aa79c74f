package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/record"
)

// Memory holds tables in memory. Names match case-insensitively.
//
// Thread-safety: Add and Open are safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]string
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]string)}
}

// Add stores a table, replacing any table of the same name.
func (m *Memory) Add(name string, lines ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tables[strings.ToUpper(name)] = append([]string(nil), lines...)
}

// AddText stores a table given as newline-separated text.
func (m *Memory) AddText(name, text string) {
	m.Add(name, splitLines(text)...)
}

// Open returns a reader over a copy of the named table.
func (m *Memory) Open(ctx context.Context, src record.Source) (driver.TableReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	lines, ok := m.tables[strings.ToUpper(src.Name)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("table %q: %w", src.Name, ErrTableNotFound)
	}
	return newLineReader(src.Name, src.Separator, append([]string(nil), lines...)), nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
