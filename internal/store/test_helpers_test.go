package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tabledriver/internal/record"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testStart is the fixed start time of runs created by beginTestRun.
var testStart = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// beginTestRun begins a CYCLE run of table "Regression".
func beginTestRun(t *testing.T, s *Store, id string, offset time.Duration) *RunLog {
	t.Helper()
	src := record.Source{Name: "Regression", Level: record.Cycle}
	if err := s.BeginRun(context.Background(), id, src, testStart.Add(offset)); err != nil {
		t.Fatalf("BeginRun(%s) failed: %v", id, err)
	}
	return s.RunLog(id)
}
