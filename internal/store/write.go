package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/record"
)

// timeLayout keeps fixed-width fractions so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one top-level table execution.
type Run struct {
	ID         string                `json:"id"`
	Table      string                `json:"table"`
	Level      record.TestLevel      `json:"level"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	Shutdown   bool                  `json:"shutdown"`
	Status     *driver.StatusCounter `json:"status,omitempty"`
}

// BeginRun records the start of a run. Beginning the same run twice is a
// no-op.
func (s *Store) BeginRun(ctx context.Context, id string, src record.Source, startedAt time.Time) error {
	_, err := s.exec(ctx, "insert run "+id, `
		INSERT INTO runs (id, table_name, level, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, src.Name, string(src.Level), startedAt.UTC().Format(timeLayout))
	return err
}

// FinishRun stores the final status of a run.
func (s *Store) FinishRun(ctx context.Context, result *driver.RunResult, finishedAt time.Time) error {
	status, err := json.Marshal(result.Status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	n, err := s.exec(ctx, "update run "+result.RunID, `
		UPDATE runs SET finished_at = ?, shutdown = ?, status = ?
		WHERE id = ?
	`, finishedAt.UTC().Format(timeLayout), boolToInt(result.Shutdown), string(status), result.RunID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", result.RunID, ErrRunNotFound)
	}
	return nil
}

// RunLog writes the test log and counters of one run.
//
// Thread-safety: RunLog serializes seq assignment and is safe for
// concurrent use.
type RunLog struct {
	store *Store
	runID string

	mu  sync.Mutex
	seq int64
}

// RunLog returns the sink for runID. The run must have been begun.
func (s *Store) RunLog(runID string) *RunLog {
	return &RunLog{store: s, runID: runID}
}

// RunID returns the bound run.
func (l *RunLog) RunID() string {
	return l.runID
}

// LogMessage appends a message to the run's test log.
func (l *RunLog) LogMessage(ctx context.Context, logID, message, detail string, kind record.MessageType) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.store.exec(ctx, "insert message", `
		INSERT INTO messages (run_id, seq, log_id, type, message, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.runID, l.seq+1, logID, string(kind), message, detail)
	if err != nil {
		return err
	}
	l.seq++
	return nil
}

// IncrementAllCounters adds one to the counter for kind on the table named
// by info.
func (l *RunLog) IncrementAllCounters(ctx context.Context, info driver.CounterInfo, kind record.StatusKind) error {
	_, err := l.store.exec(ctx, fmt.Sprintf("increment %s for %s", kind, info.Table), `
		INSERT INTO counters (run_id, table_name, level, kind, count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(run_id, table_name, level, kind) DO UPDATE SET count = count + 1
	`, l.runID, info.Table, string(info.Level), kind.String())
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
