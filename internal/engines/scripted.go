package engines

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/record"
)

// Rule answers one command.
type Rule struct {
	// Command is matched case-insensitively against the routed command.
	Command string `yaml:"command" json:"command"`

	// Records limits the rule to a record family: driver, engine,
	// component or implied. Empty matches all.
	Records string `yaml:"records,omitempty" json:"records,omitempty"`

	// Outcomes are returned on successive calls; the last one repeats.
	Outcomes []string `yaml:"outcomes,omitempty" json:"outcomes,omitempty"`

	// Info is copied to the record's StatusInfo, e.g. a block label for
	// BRANCH_TO_BLOCKID.
	Info string `yaml:"info,omitempty" json:"info,omitempty"`

	// Message is logged with a type matching the outcome.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`

	// Partial declines the command while other engines could claim it.
	Partial bool `yaml:"partial,omitempty" json:"partial,omitempty"`
}

// KeywordFile is the on-disk form of a keyword table.
type KeywordFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadKeywords reads a keyword file with strict field validation.
func LoadKeywords(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword file: %w", err)
	}

	var file KeywordFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse keyword file %s: %w", filepath.Base(path), err)
	}
	return file.Rules, nil
}

type compiledRule struct {
	Rule
	outcomes []record.Outcome
	calls    int
}

// Scripted is an engine whose answers come from a keyword table. It is the
// stand-in for a GUI engine when running tables headless.
//
// Thread-safety: Scripted is safe for concurrent use.
type Scripted struct {
	name  string
	env   Env
	rules map[string][]*compiledRule

	fallback    record.Outcome
	hasFallback bool

	mu       sync.Mutex
	calls    []string
	shutdown bool
}

// NewScripted creates a scripted engine. An empty fallback declines
// unknown commands.
func NewScripted(name string, rules []Rule, fallback string, env Env) (*Scripted, error) {
	s := &Scripted{
		name:  name,
		env:   env,
		rules: make(map[string][]*compiledRule),
	}
	if fallback != "" {
		o, err := parseOutcome(fallback)
		if err != nil {
			return nil, fmt.Errorf("default outcome: %w", err)
		}
		s.fallback, s.hasFallback = o, true
	}

	for i, r := range rules {
		if r.Command == "" {
			return nil, fmt.Errorf("rule %d: command is required", i)
		}
		if _, ok := recordFamilies[strings.ToLower(r.Records)]; !ok {
			return nil, fmt.Errorf("rule %s: unknown record family %q", r.Command, r.Records)
		}
		cr := &compiledRule{Rule: r}
		for _, name := range r.Outcomes {
			o, err := parseOutcome(name)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.Command, err)
			}
			cr.outcomes = append(cr.outcomes, o)
		}
		if len(cr.outcomes) == 0 {
			cr.outcomes = []record.Outcome{record.NoScriptFailure}
		}
		key := strings.ToLower(r.Command)
		s.rules[key] = append(s.rules[key], cr)
	}
	return s, nil
}

// parseOutcome accepts the forms ParseOutcome does but only defined codes.
func parseOutcome(s string) (record.Outcome, error) {
	o, err := record.ParseOutcome(s)
	if err != nil {
		return 0, err
	}
	if !o.Known() {
		return 0, fmt.Errorf("undefined outcome code %d", int(o))
	}
	return o, nil
}

// NewScriptedFromSpec is the Factory for the "scripted" type.
func NewScriptedFromSpec(spec Spec, env Env) (driver.Engine, error) {
	var rules []Rule
	if spec.Keywords != "" {
		loaded, err := LoadKeywords(spec.Keywords)
		if err != nil {
			return nil, err
		}
		rules = append(rules, loaded...)
	}
	rules = append(rules, spec.Rules...)
	return NewScripted(spec.Name, rules, spec.Default, env)
}

// NewDryRunFromSpec is the Factory for the "dryrun" type: every record
// passes unless a rule says otherwise.
func NewDryRunFromSpec(spec Spec, env Env) (driver.Engine, error) {
	fallback := spec.Default
	if fallback == "" {
		fallback = record.NoScriptFailure.String()
	}
	return NewScripted(spec.Name, spec.Rules, fallback, env)
}

var recordFamilies = map[string]func(record.RecordType) bool{
	"":          func(record.RecordType) bool { return true },
	"driver":    func(t record.RecordType) bool { return t.IsDriverCommand() },
	"engine":    func(t record.RecordType) bool { return t == record.EngineCommand },
	"component": func(t record.RecordType) bool { return t.IsTest() },
	"implied":   func(t record.RecordType) bool { return t.IsImplied() },
}

// Name returns the engine name.
func (s *Scripted) Name() string {
	return s.name
}

// ProcessRecord answers rec from the keyword table.
func (s *Scripted) ProcessRecord(ctx context.Context, rec *record.TestRecord) record.Outcome {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return record.ScriptNotExecuted
	}
	rule := s.match(rec)
	if rule != nil && rule.Partial && rec.MoreEngines {
		rule = nil
	}
	if rule == nil && !s.hasFallback {
		s.mu.Unlock()
		return record.ScriptNotExecuted
	}

	s.calls = append(s.calls, rec.Command)
	outcome := s.fallback
	var info, message string
	if rule != nil {
		outcome = rule.outcomes[min(rule.calls, len(rule.outcomes)-1)]
		rule.calls++
		info, message = rule.Info, rule.Message
	}
	s.mu.Unlock()

	outcome = AdjustForExpectation(rec.Type, outcome)
	if info != "" {
		rec.StatusInfo = info
	}
	slog.Debug("scripted engine answered",
		"engine", s.name,
		"command", rec.Command,
		"outcome", outcome.String(),
	)
	if message != "" {
		s.log(ctx, rec, message, outcome)
	}
	return outcome
}

func (s *Scripted) match(rec *record.TestRecord) *compiledRule {
	for _, r := range s.rules[strings.ToLower(rec.Command)] {
		if recordFamilies[strings.ToLower(r.Records)](rec.Type) {
			return r
		}
	}
	return nil
}

func (s *Scripted) log(ctx context.Context, rec *record.TestRecord, message string, outcome record.Outcome) {
	if s.env.Logs == nil {
		return
	}
	kind := record.MessageGeneric
	switch outcome {
	case record.TestSuccessLogged:
		kind = record.MessagePassed
	case record.TestFailureLogged, record.GeneralScriptFailure, record.InvalidFileIO:
		kind = record.MessageFailed
	case record.TestWarningLogged, record.ScriptWarning:
		kind = record.MessageWarning
	}
	logID := rec.LogID
	if logID == "" {
		logID = s.env.LogID
	}
	detail := fmt.Sprintf("%s at line %d, %s", rec.Filename, rec.LineNumber, rec.Line)
	if err := s.env.Logs.LogMessage(ctx, logID, message, detail, kind); err != nil {
		slog.Warn("scripted engine log failed", "engine", s.name, "error", err)
	}
}

// Calls returns the commands answered so far, in order.
func (s *Scripted) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Shutdown stops the engine; later records are declined.
func (s *Scripted) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	return nil
}
