package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/record"
)

// Message is one captured test-log message.
type Message struct {
	LogID  string
	Text   string
	Detail string
	Type   record.MessageType
}

// Log captures test-log messages.
type Log struct {
	mu       sync.Mutex
	messages []Message
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// LogMessage implements driver.LogService.
func (l *Log) LogMessage(_ context.Context, logID, message, detail string, kind record.MessageType) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, Message{LogID: logID, Text: message, Detail: detail, Type: kind})
	return nil
}

// Messages returns a copy of every captured message.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.messages...)
}

// OfType returns the messages of kind.
func (l *Log) OfType(kind record.MessageType) []Message {
	var out []Message
	for _, m := range l.Messages() {
		if m.Type == kind {
			out = append(out, m)
		}
	}
	return out
}

// Contains reports whether any message text contains substr.
func (l *Log) Contains(substr string) bool {
	for _, m := range l.Messages() {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

// Increment is one captured counter increment.
type Increment struct {
	Info driver.CounterInfo
	Kind record.StatusKind
}

// Counters captures counter increments.
type Counters struct {
	mu         sync.Mutex
	increments []Increment
}

// NewCounters creates an empty counters service.
func NewCounters() *Counters {
	return &Counters{}
}

// IncrementAllCounters implements driver.CountersService.
func (c *Counters) IncrementAllCounters(_ context.Context, info driver.CounterInfo, kind record.StatusKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.increments = append(c.increments, Increment{Info: info, Kind: kind})
	return nil
}

// Increments returns a copy of every captured increment.
func (c *Counters) Increments() []Increment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Increment(nil), c.increments...)
}

// ForTable tallies the increments charged to table.
func (c *Counters) ForTable(table string) driver.StatusCounter {
	var s driver.StatusCounter
	for _, inc := range c.Increments() {
		if strings.EqualFold(inc.Info.Table, table) {
			s.Add(inc.Kind)
		}
	}
	return s
}

// Engine is a scripted engine. It answers commands from a table of
// outcomes and records every call.
type Engine struct {
	name     string
	mu       sync.Mutex
	outcomes map[string]record.Outcome
	calls    []string
	shutdown bool

	// Decline makes the engine pass on records while other engines remain.
	Decline bool
}

// NewEngine creates an engine named name that claims the given commands.
func NewEngine(name string, outcomes map[string]record.Outcome) *Engine {
	e := &Engine{name: name, outcomes: make(map[string]record.Outcome)}
	for cmd, o := range outcomes {
		e.outcomes[strings.ToUpper(cmd)] = o
	}
	return e
}

// Name implements driver.Engine.
func (e *Engine) Name() string {
	return e.name
}

// ProcessRecord implements driver.Engine.
func (e *Engine) ProcessRecord(_ context.Context, rec *record.TestRecord) record.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, rec.Command)
	if e.Decline && rec.MoreEngines {
		return record.ScriptNotExecuted
	}
	if o, ok := e.outcomes[strings.ToUpper(rec.Command)]; ok {
		return o
	}
	return record.ScriptNotExecuted
}

// Shutdown implements driver.Engine.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdown = true
	return nil
}

// Calls returns the commands the engine was offered, in order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// IsShutdown reports whether Shutdown was called.
func (e *Engine) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}

// Recorder captures the final state of every processed record.
type Recorder struct {
	mu      sync.Mutex
	records []record.TestRecord
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record implements driver.Recorder.
func (r *Recorder) Record(_ context.Context, rec *record.TestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

// Records returns copies of the captured records.
func (r *Recorder) Records() []record.TestRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]record.TestRecord(nil), r.records...)
}

// Outcomes returns the final outcome of each captured record.
func (r *Recorder) Outcomes() []record.Outcome {
	var out []record.Outcome
	for _, rec := range r.Records() {
		out = append(out, rec.Status)
	}
	return out
}
