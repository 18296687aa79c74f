package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/record"
)

// ErrRunNotFound is returned when a run ID has no stored row.
var ErrRunNotFound = errors.New("run not found")

// TableCounters is the stored tally for one table of a run.
type TableCounters struct {
	Table  string               `json:"table"`
	Level  record.TestLevel     `json:"level"`
	Status driver.StatusCounter `json:"status"`
}

// Message is one stored test-log entry.
type Message struct {
	Seq     int64              `json:"seq"`
	LogID   string             `json:"log_id"`
	Type    record.MessageType `json:"type"`
	Message string             `json:"message"`
	Detail  string             `json:"detail,omitempty"`
}

// ReadRun returns the run with the given ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, table_name, level, started_at, finished_at, shutdown, status
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first, at most limit of them.
// A limit of 0 returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, table_name, level, started_at, finished_at, shutdown, status
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadCounters returns the per-table tallies of a run, ordered by table
// name.
func (s *Store) ReadCounters(ctx context.Context, runID string) ([]TableCounters, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, level, kind, count
		FROM counters
		WHERE run_id = ?
		ORDER BY table_name COLLATE BINARY ASC, level ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	result := []TableCounters{}
	index := make(map[string]int)
	for rows.Next() {
		var table, level, kindName string
		var count int
		if err := rows.Scan(&table, &level, &kindName, &count); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		kind, ok := record.ParseStatusKind(kindName)
		if !ok {
			return nil, fmt.Errorf("unknown counter kind %q", kindName)
		}

		key := level + ":" + table
		i, seen := index[key]
		if !seen {
			i = len(result)
			index[key] = i
			result = append(result, TableCounters{Table: table, Level: record.TestLevel(level)})
		}
		for ; count > 0; count-- {
			result[i].Status.Add(kind)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counters: %w", err)
	}
	return result, nil
}

// ReadMessages returns the test log of a run in write order.
func (s *Store) ReadMessages(ctx context.Context, runID string) ([]Message, error) {
	return s.queryMessages(ctx, `
		SELECT seq, log_id, type, message, detail
		FROM messages
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// MessagesOfType returns the messages of one type in write order.
func (s *Store) MessagesOfType(ctx context.Context, runID string, kind record.MessageType) ([]Message, error) {
	return s.queryMessages(ctx, `
		SELECT seq, log_id, type, message, detail
		FROM messages
		WHERE run_id = ? AND type = ?
		ORDER BY seq ASC
	`, runID, string(kind))
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		var kind string
		if err := rows.Scan(&m.Seq, &m.LogID, &kind, &m.Message, &m.Detail); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Type = record.MessageType(kind)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		level      string
		startedAt  string
		finishedAt sql.NullString
		shutdown   int
		status     sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Table, &level, &startedAt, &finishedAt, &shutdown, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Level = record.TestLevel(level)
	run.Shutdown = shutdown != 0

	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at of %s: %w", run.ID, err)
	}
	run.StartedAt = t

	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at of %s: %w", run.ID, err)
		}
		run.FinishedAt = &t
	}
	if status.Valid {
		var sc driver.StatusCounter
		if err := json.Unmarshal([]byte(status.String), &sc); err != nil {
			return Run{}, fmt.Errorf("unmarshal status of %s: %w", run.ID, err)
		}
		run.Status = &sc
	}
	return run, nil
}
