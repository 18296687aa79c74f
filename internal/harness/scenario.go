package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tabledriver/internal/config"
	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/engines"
	"github.com/roach88/tabledriver/internal/record"
)

// Scenario defines one headless table run and its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file and
	// fixes the run ID.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Run names the top-level table.
	Run RunSpec `yaml:"run"`

	// Tables maps table names to their newline-separated records.
	Tables map[string]string `yaml:"tables"`

	// Engines are built with engines.Default() in order.
	Engines []engines.Spec `yaml:"engines,omitempty"`

	// Preferred engines are started before the run, first name on top.
	Preferred []string `yaml:"preferred,omitempty"`

	// Driver options, decoded over the configuration defaults.
	Driver config.Driver `yaml:"driver"`

	// Vars are shared variables set before the run.
	Vars map[string]string `yaml:"vars,omitempty"`

	// OnSleep changes shared variables when the driver sleeps, e.g. to
	// resume a paused run.
	OnSleep []SleepHook `yaml:"on_sleep,omitempty"`

	// Expect is the expected final status of the run.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the trace, the log and the shared variables.
	Assertions []Assertion `yaml:"assertions"`
}

// RunSpec names the table a scenario executes.
type RunSpec struct {
	Table     string `yaml:"table"`
	Level     string `yaml:"level"`
	Separator string `yaml:"separator,omitempty"`
}

// Source converts the run settings to a driver source.
func (r RunSpec) Source() (record.Source, error) {
	level, err := record.ParseTestLevel(r.Level)
	if err != nil {
		return record.Source{}, err
	}
	sep := r.Separator
	if sep == "" {
		sep = ","
	}
	return record.Source{Name: r.Table, Level: level, Separator: sep}, nil
}

// SleepHook sets variables on the After-th sleep. After 0 applies to every
// sleep.
type SleepHook struct {
	After int               `yaml:"after"`
	Set   map[string]string `yaml:"set"`
}

// ExpectClause specifies the expected run result.
type ExpectClause struct {
	// Status must match the run's counter exactly.
	Status driver.StatusCounter `yaml:"status"`

	// Shutdown is the expected shutdown flag.
	Shutdown bool `yaml:"shutdown,omitempty"`
}

// Assertion validates the trace, the log or the variables.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check a command was executed
	// - "trace_order": Check commands were executed in order
	// - "trace_count": Check a command was executed exactly N times
	// - "final_var": Check a shared variable's final value
	// - "message_contains": Check the test log holds a message
	Type string `yaml:"type"`

	// Command is the record command (trace_contains, trace_count).
	// Matched case-insensitively.
	Command string `yaml:"command,omitempty"`

	// Outcome optionally narrows trace_contains to one outcome name.
	Outcome string `yaml:"outcome,omitempty"`

	// Table optionally narrows trace_contains to one table.
	Table string `yaml:"table,omitempty"`

	// Commands is the expected command order (trace_order).
	Commands []string `yaml:"commands,omitempty"`

	// Count is the expected number of executions (trace_count).
	Count int `yaml:"count,omitempty"`

	// Name and Value name a shared variable and its expected value
	// (final_var).
	Name  string `yaml:"name,omitempty"`
	Value string `yaml:"value,omitempty"`

	// Text is the substring looked for in message text or detail
	// (message_contains). MessageType optionally narrows the search.
	Text        string `yaml:"text,omitempty"`
	MessageType string `yaml:"message_type,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertFinalVar        = "final_var"
	AssertMessageContains = "message_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// Keyword paths of engines are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath loads a scenario and resolves keyword paths
// against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, spec := range scenario.Engines {
		if spec.Keywords != "" && !filepath.IsAbs(spec.Keywords) {
			scenario.Engines[i].Keywords = filepath.Join(basePath, spec.Keywords)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", filepath.Base(path), err)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario with strict field validation. Driver
// options not given keep their configuration defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	scenario := &Scenario{Driver: config.Default().Driver}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return scenario, nil
}

// Config returns the configuration equivalent of the scenario's engines
// and driver options.
func (s *Scenario) Config() *config.Config {
	cfg := config.Default()
	cfg.Tables.Separator = s.Run.Separator
	if cfg.Tables.Separator == "" {
		cfg.Tables.Separator = ","
	}
	cfg.Engines = s.Engines
	cfg.Preferred = s.Preferred
	cfg.Driver = s.Driver
	return cfg
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Run.Table == "" {
		return fmt.Errorf("run.table is required")
	}
	if _, err := s.Run.Source(); err != nil {
		return fmt.Errorf("run.level: %w", err)
	}
	if len(s.Tables) == 0 {
		return fmt.Errorf("at least one table is required")
	}
	if len(s.Assertions) == 0 && s.Expect == nil {
		return fmt.Errorf("expect or at least one assertion is required")
	}

	for i, hook := range s.OnSleep {
		if hook.After < 0 {
			return fmt.Errorf("on_sleep[%d]: after must be >= 0, got %d", i, hook.After)
		}
		if len(hook.Set) == 0 {
			return fmt.Errorf("on_sleep[%d]: set is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	if err := config.Validate(s.Config()); err != nil {
		return err
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Command == "" {
			return fmt.Errorf("trace_contains: command is required")
		}
		if a.Outcome != "" {
			if _, err := record.ParseOutcome(a.Outcome); err != nil {
				return fmt.Errorf("trace_contains: %w", err)
			}
		}
	case AssertTraceOrder:
		if len(a.Commands) == 0 {
			return fmt.Errorf("trace_order: commands is required")
		}
	case AssertTraceCount:
		if a.Command == "" {
			return fmt.Errorf("trace_count: command is required")
		}
		if a.Count < 0 {
			return fmt.Errorf("trace_count: count must be >= 0, got %d", a.Count)
		}
	case AssertFinalVar:
		if a.Name == "" {
			return fmt.Errorf("final_var: name is required")
		}
	case AssertMessageContains:
		if a.Text == "" {
			return fmt.Errorf("message_contains: text is required")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func outcomeName(s string) string {
	o, err := record.ParseOutcome(s)
	if err != nil {
		return strings.ToUpper(s)
	}
	return o.String()
}
