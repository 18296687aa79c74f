package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/engines"
	"github.com/roach88/tabledriver/internal/record"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tabledriver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestDefault_MatchesDriverDefaults(t *testing.T) {
	opts, err := Default().Options()
	require.NoError(t, err)
	assert.Equal(t, driver.DefaultOptions(), opts)
}

func TestLoad_ProjectFile(t *testing.T) {
	cfg, err := Load("testdata/project.yaml")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("testdata", "tables"), cfg.Project)
	assert.Equal(t, filepath.Join("testdata", "runs.db"), cfg.Log.Store)
	assert.Equal(t, filepath.Join("testdata", "journal"), cfg.Log.Journal)
	assert.Empty(t, cfg.Log.Vars)
	require.Len(t, cfg.Engines, 2)
	assert.Equal(t, filepath.Join("testdata", "keywords", "web.yaml"), cfg.Engines[0].Keywords)
	assert.Empty(t, cfg.Engines[1].Keywords)
	assert.Equal(t, []string{"web"}, cfg.Preferred)

	assert.Equal(t, map[record.TestLevel]string{
		record.Cycle: ".CDD",
		record.Suite: ".STD",
		record.Step:  ".SDD",
	}, cfg.Extensions())

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.True(t, opts.PerTableFlowControl)
	assert.True(t, opts.ResolveSkippedRecords, "unset fields keep defaults")
	assert.Equal(t, 250*time.Millisecond, opts.DelayBetweenRecords)
	assert.Equal(t, driver.DefaultPollInterval, opts.PollInterval)
	assert.Equal(t, 12, opts.MaxTableDepth)
	assert.Equal(t, language.German, opts.Language)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("driver:\n  delay_between_records: 5\n"))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "negative delay",
			body:  "driver:\n  delay_between_records_ms: -1\n",
			field: "delay_between_records_ms",
		},
		{
			name:  "zero poll interval",
			body:  "driver:\n  poll_interval_ms: 0\n",
			field: "poll_interval_ms",
		},
		{
			name:  "bad log level",
			body:  "log:\n  level: chatty\n",
			field: "level",
		},
		{
			name:  "empty separator",
			body:  "tables:\n  separator: \"\"\n",
			field: "separator",
		},
		{
			name:  "bad extension level",
			body:  "tables:\n  extensions:\n    CASE: .TXT\n",
			field: "CASE",
		},
		{
			name:  "unknown engine type",
			body:  "engines:\n  - name: Rational\n    type: robot\n",
			field: "engines[0].type",
		},
		{
			name:  "duplicate engine",
			body:  "engines:\n  - name: Web\n    type: dryrun\n  - name: web\n    type: scripted\n",
			field: "engines[1].name",
		},
		{
			name:  "bad default outcome",
			body:  "engines:\n  - name: Web\n    type: dryrun\n    default: SOMETIMES\n",
			field: "engines[0].default",
		},
		{
			name:  "unknown preference",
			body:  "engines:\n  - name: Web\n    type: dryrun\npreferred: [Java]\n",
			field: "preferred[0]",
		},
		{
			name:  "bad rule family",
			body:  "engines:\n  - name: Web\n    type: scripted\n    rules:\n      - command: Click\n        records: gui\n",
			field: "records",
		},
		{
			name:  "bad language",
			body:  "driver:\n  language: \"not a tag!\"\n",
			field: "driver.language",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Field, tt.field)
		})
	}
}

func TestValidateWith_CustomRegistry(t *testing.T) {
	reg := engines.NewRegistry()
	reg.MustRegister("robot", engines.NewDryRunFromSpec)

	cfg := Default()
	cfg.Engines = []engines.Spec{{Name: "Rational", Type: "robot"}}

	assert.NoError(t, ValidateWith(cfg, reg))
	assert.Error(t, Validate(cfg))
}
