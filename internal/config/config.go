// Package config loads tabledriver configuration.
//
// A configuration file is YAML decoded over Default() with unknown fields
// rejected, then validated against an embedded CUE schema. Relative paths
// in the file are resolved against the file's directory.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/engines"
	"github.com/roach88/tabledriver/internal/record"
)

// Config is the complete configuration of one driver process.
type Config struct {
	// Project is the directory holding the tables.
	Project   string         `yaml:"project" json:"project"`
	Tables    Tables         `yaml:"tables" json:"tables"`
	Engines   []engines.Spec `yaml:"engines,omitempty" json:"engines,omitempty"`
	Preferred []string       `yaml:"preferred,omitempty" json:"preferred,omitempty"`
	Driver    Driver         `yaml:"driver" json:"driver"`
	Log       Log            `yaml:"log" json:"log"`
}

// Tables configures table lookup.
type Tables struct {
	Separator  string            `yaml:"separator" json:"separator"`
	Extensions map[string]string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
}

// Driver mirrors driver.Options in file form.
type Driver struct {
	PreferredEnginesOverride bool   `yaml:"preferred_engines_override" json:"preferred_engines_override"`
	ResolveSkippedRecords    bool   `yaml:"resolve_skipped_records" json:"resolve_skipped_records"`
	PerTableFlowControl      bool   `yaml:"per_table_flow_control" json:"per_table_flow_control"`
	DelayBetweenRecordsMS    int    `yaml:"delay_between_records_ms" json:"delay_between_records_ms"`
	PollIntervalMS           int    `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	Breakpoints              bool   `yaml:"breakpoints" json:"breakpoints"`
	AllowRecursiveTables     bool   `yaml:"allow_recursive_tables" json:"allow_recursive_tables"`
	MaxTableDepth            int    `yaml:"max_table_depth" json:"max_table_depth"`
	LegacyControlTokens      bool   `yaml:"legacy_control_tokens" json:"legacy_control_tokens"`
	Language                 string `yaml:"language" json:"language"`
	LogID                    string `yaml:"log_id" json:"log_id"`
}

// Log configures diagnostics and persistence.
type Log struct {
	// Level is the slog level: debug, info, warn or error.
	Level string `yaml:"level" json:"level"`

	// Store is the SQLite database receiving runs, counters and messages.
	Store string `yaml:"store,omitempty" json:"store,omitempty"`

	// Journal is the outcome journal directory.
	Journal string `yaml:"journal,omitempty" json:"journal,omitempty"`

	// Vars is the badger directory for shared variables. Empty keeps them
	// in memory.
	Vars string `yaml:"vars,omitempty" json:"vars,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	opts := driver.DefaultOptions()
	return &Config{
		Project: ".",
		Tables:  Tables{Separator: ","},
		Driver: Driver{
			ResolveSkippedRecords: opts.ResolveSkippedRecords,
			PollIntervalMS:        int(opts.PollInterval / time.Millisecond),
			Language:              opts.Language.String(),
			LogID:                 opts.LogID,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads, resolves and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default with strict field validation.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Project = abs(c.Project)
	c.Log.Store = abs(c.Log.Store)
	c.Log.Journal = abs(c.Log.Journal)
	c.Log.Vars = abs(c.Log.Vars)
	for i := range c.Engines {
		c.Engines[i].Keywords = abs(c.Engines[i].Keywords)
	}
}

// Options converts the driver section.
func (c *Config) Options() (driver.Options, error) {
	tag, err := language.Parse(c.Driver.Language)
	if err != nil {
		return driver.Options{}, fmt.Errorf("driver.language: %w", err)
	}
	return driver.Options{
		PreferredEnginesOverride: c.Driver.PreferredEnginesOverride,
		ResolveSkippedRecords:    c.Driver.ResolveSkippedRecords,
		PerTableFlowControl:      c.Driver.PerTableFlowControl,
		DelayBetweenRecords:      time.Duration(c.Driver.DelayBetweenRecordsMS) * time.Millisecond,
		PollInterval:             time.Duration(c.Driver.PollIntervalMS) * time.Millisecond,
		Breakpoints:              c.Driver.Breakpoints,
		AllowRecursiveTables:     c.Driver.AllowRecursiveTables,
		MaxTableDepth:            c.Driver.MaxTableDepth,
		LegacyControlTokens:      c.Driver.LegacyControlTokens,
		LogID:                    c.Driver.LogID,
		Language:                 tag,
	}, nil
}

// Extensions converts the tables section to per-level file extensions.
func (c *Config) Extensions() map[record.TestLevel]string {
	out := make(map[record.TestLevel]string, len(c.Tables.Extensions))
	for level, ext := range c.Tables.Extensions {
		out[record.TestLevel(strings.ToUpper(level))] = ext
	}
	return out
}
