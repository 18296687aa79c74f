// Package journal keeps an append-only write-ahead log of record outcomes.
//
// Every record the driver finishes is appended as one entry, so a run can
// be replayed line by line after the fact or after a crash. Entries are
// protobuf Structs; no generated code is needed to read them back.
package journal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tidwall/wal"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/roach88/tabledriver/internal/record"
)

// Entry is one journaled record outcome.
type Entry struct {
	Index      uint64            `json:"index"`
	RunID      string            `json:"run_id"`
	Table      string            `json:"table"`
	Level      record.TestLevel  `json:"level"`
	LineNumber int               `json:"line_number"`
	Type       record.RecordType `json:"type"`
	Command    string            `json:"command,omitempty"`
	Line       string            `json:"line"`
	Outcome    record.Outcome    `json:"outcome"`
	StatusInfo string            `json:"status_info,omitempty"`
}

// Journal is a write-ahead log of Entries.
//
// Thread-safety: all methods are safe for concurrent use.
type Journal struct {
	mutex sync.Mutex
	log   *wal.Log

	// Index of the next entry to append. The underlying log counts from 1.
	idx uint64
}

// Options tune the underlying log.
type Options struct {
	// Sync fsyncs after every append.
	Sync bool
}

// Open opens or creates the journal in directory path.
func Open(path string, opts Options) (*Journal, error) {
	log, err := wal.Open(path, &wal.Options{
		NoSync: !opts.Sync,
		NoCopy: true,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "could not open journal")
	}

	idx, err := log.LastIndex()
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed obtaining last journal index: %w", err)
	}

	return &Journal{
		log: log,
		idx: idx,
	}, nil
}

// IsEmpty reports whether the journal holds no entries.
func (j *Journal) IsEmpty() (bool, error) {
	firstIndex, err := j.log.FirstIndex()
	if err != nil {
		return false, errors.WithMessage(err, "could not read first index")
	}
	return firstIndex == 0, nil
}

// Append writes e and returns the index it was stored at. e.Index is
// ignored.
func (j *Journal) Append(e Entry) (uint64, error) {
	st, err := structpb.NewStruct(map[string]interface{}{
		"run_id":      text(e.RunID),
		"table":       text(e.Table),
		"level":       text(string(e.Level)),
		"line_number": e.LineNumber,
		"type":        text(string(e.Type)),
		"command":     text(e.Command),
		"line":        text(e.Line),
		"outcome":     int(e.Outcome),
		"status_info": text(e.StatusInfo),
	})
	if err != nil {
		return 0, errors.WithMessage(err, "could not build entry")
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return 0, errors.WithMessage(err, "could not marshal")
	}

	j.mutex.Lock()
	defer j.mutex.Unlock()

	if err := j.log.Write(j.idx+1, data); err != nil {
		return 0, errors.WithMessagef(err, "could not write index %d", j.idx+1)
	}
	j.idx++
	return j.idx, nil
}

// text replaces invalid UTF-8 so that protobuf accepts the string.
func text(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// LoadAll calls forEach for every entry in index order, stopping at the
// first error forEach returns.
func (j *Journal) LoadAll(forEach func(Entry) error) error {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	firstIndex, err := j.log.FirstIndex()
	if err != nil {
		return errors.WithMessage(err, "could not read first index")
	}
	if firstIndex == 0 {
		return nil
	}

	lastIndex, err := j.log.LastIndex()
	if err != nil {
		return errors.WithMessage(err, "could not read last index")
	}

	for i := firstIndex; i <= lastIndex; i++ {
		data, err := j.log.Read(i)
		if err != nil {
			return errors.WithMessagef(err, "could not read index %d", i)
		}

		st := &structpb.Struct{}
		if err := proto.Unmarshal(data, st); err != nil {
			return errors.WithMessage(err, "error decoding to proto, is the journal corrupt?")
		}
		if err := forEach(decode(i, st)); err != nil {
			return err
		}
	}
	return nil
}

// Run returns the entries of one run in index order.
func (j *Journal) Run(runID string) ([]Entry, error) {
	entries := []Entry{}
	err := j.LoadAll(func(e Entry) error {
		if e.RunID == runID {
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// Truncate drops every entry before index.
func (j *Journal) Truncate(index uint64) error {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	return j.log.TruncateFront(index)
}

// Sync flushes written entries to disk.
func (j *Journal) Sync() error {
	return j.log.Sync()
}

// Close closes the underlying log.
func (j *Journal) Close() error {
	return j.log.Close()
}

// Recorder returns a driver.Recorder that journals records under runID.
func (j *Journal) Recorder(runID string) *Recorder {
	return &Recorder{journal: j, runID: runID}
}

// Recorder appends finished records of one run.
type Recorder struct {
	journal *Journal
	runID   string
}

// Record appends rec.
func (r *Recorder) Record(_ context.Context, rec *record.TestRecord) error {
	_, err := r.journal.Append(Entry{
		RunID:      r.runID,
		Table:      rec.Filename,
		Level:      rec.Level,
		LineNumber: rec.LineNumber,
		Type:       rec.Type,
		Command:    rec.Command,
		Line:       rec.Line,
		Outcome:    rec.Status,
		StatusInfo: rec.StatusInfo,
	})
	return err
}

func decode(index uint64, st *structpb.Struct) Entry {
	f := st.GetFields()
	return Entry{
		Index:      index,
		RunID:      f["run_id"].GetStringValue(),
		Table:      f["table"].GetStringValue(),
		Level:      record.TestLevel(f["level"].GetStringValue()),
		LineNumber: int(f["line_number"].GetNumberValue()),
		Type:       record.RecordType(f["type"].GetStringValue()),
		Command:    f["command"].GetStringValue(),
		Line:       f["line"].GetStringValue(),
		Outcome:    record.Outcome(f["outcome"].GetNumberValue()),
		StatusInfo: f["status_info"].GetStringValue(),
	}
}
