package driver

import (
	"strings"
	"sync"
)

// TableStack tracks the tables currently executing, outermost first.
//
// A table that is already on the stack would invoke itself directly or
// through its descendants. Record sources have no cycle detection of their
// own, so the driver checks the stack before every nested invocation.
//
// Thread-safety: the record loop is the only writer, but monitors may read
// the stack from other goroutines.
type TableStack struct {
	mu     sync.Mutex
	tables []string
}

// NewTableStack creates an empty stack.
func NewTableStack() *TableStack {
	return &TableStack{}
}

// WouldCycle reports whether name, compared case-insensitively, is already
// executing.
func (s *TableStack) WouldCycle(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tables {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// Push records that name started executing.
func (s *TableStack) Push(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables = append(s.tables, name)
}

// Pop removes the innermost table.
func (s *TableStack) Pop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tables) > 0 {
		s.tables = s.tables[:len(s.tables)-1]
	}
}

// Depth returns the number of executing tables.
func (s *TableStack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tables)
}

// Tables returns a copy of the stack, outermost first.
func (s *TableStack) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.tables...)
}
