package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalScenario = `
name: minimal
description: "One passing log message"
run:
  table: Main
  level: STEP
tables:
  Main: |
    C, LogMessage, hello
assertions:
  - type: trace_count
    command: LogMessage
    count: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, "Main", scenario.Run.Table)
	assert.Equal(t, "C, LogMessage, hello\n", scenario.Tables["Main"])
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertTraceCount, scenario.Assertions[0].Type)
}

func TestLoadScenario_DriverDefaultsKept(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, minimalScenario+`
driver:
  breakpoints: true
`))
	require.NoError(t, err)

	assert.True(t, scenario.Driver.Breakpoints)
	assert.Equal(t, 300, scenario.Driver.PollIntervalMS, "unset options keep their defaults")
	assert.Equal(t, "en", scenario.Driver.Language)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does_not_exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "name: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, minimalScenario+"assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
run: {table: Main, level: STEP}
tables: {Main: "C, LogMessage, x"}
assertions: [{type: trace_count, command: LogMessage, count: 1}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
run: {table: Main, level: STEP}
tables: {Main: "C, LogMessage, x"}
assertions: [{type: trace_count, command: LogMessage, count: 1}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing table",
			content: `
name: n
description: d
run: {level: STEP}
tables: {Main: "C, LogMessage, x"}
assertions: [{type: trace_count, command: LogMessage, count: 1}]
`,
			wantErr: "run.table is required",
		},
		{
			name: "bad level",
			content: `
name: n
description: d
run: {table: Main, level: EPOCH}
tables: {Main: "C, LogMessage, x"}
assertions: [{type: trace_count, command: LogMessage, count: 1}]
`,
			wantErr: "run.level",
		},
		{
			name: "no tables",
			content: `
name: n
description: d
run: {table: Main, level: STEP}
assertions: [{type: trace_count, command: LogMessage, count: 1}]
`,
			wantErr: "at least one table",
		},
		{
			name: "nothing to check",
			content: `
name: n
description: d
run: {table: Main, level: STEP}
tables: {Main: "C, LogMessage, x"}
`,
			wantErr: "expect or at least one assertion",
		},
		{
			name: "empty sleep hook",
			content: `
name: n
description: d
run: {table: Main, level: STEP}
tables: {Main: "C, LogMessage, x"}
on_sleep: [{after: 1}]
assertions: [{type: trace_count, command: LogMessage, count: 1}]
`,
			wantErr: "on_sleep[0]: set is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_AssertionTypes(t *testing.T) {
	tests := []struct {
		name      string
		assertion string
		wantErr   string
	}{
		{"trace_contains ok", "{type: trace_contains, command: Click, outcome: FAIL}", ""},
		{"trace_contains missing command", "{type: trace_contains}", "command is required"},
		{"trace_contains bad outcome", "{type: trace_contains, command: Click, outcome: MAYBE}", "unknown outcome"},
		{"trace_order ok", "{type: trace_order, commands: [A, B]}", ""},
		{"trace_order empty", "{type: trace_order}", "commands is required"},
		{"trace_count zero allowed", "{type: trace_count, command: Click, count: 0}", ""},
		{"trace_count negative", "{type: trace_count, command: Click, count: -1}", "count must be >= 0"},
		{"final_var ok", "{type: final_var, name: Result, value: ok}", ""},
		{"final_var missing name", "{type: final_var, value: ok}", "name is required"},
		{"message_contains ok", "{type: message_contains, text: hello}", ""},
		{"message_contains missing text", "{type: message_contains}", "text is required"},
		{"unknown type", "{type: final_state}", "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `
name: n
description: d
run: {table: Main, level: STEP}
tables: {Main: "C, LogMessage, x"}
assertions:
  - ` + tt.assertion + "\n"
			_, err := LoadScenario(writeScenario(t, content))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_ConfigValidated(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, minimalScenario+`
engines:
  - name: TC
    type: selenium
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine type")
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	path := writeScenario(t, minimalScenario+`
engines:
  - name: TC
    type: scripted
    keywords: keywords/login.yaml
`)

	scenario, err := LoadScenarioWithBasePath(path, "/projects/shop")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/projects/shop", "keywords/login.yaml"), scenario.Engines[0].Keywords)
}

func TestLoadScenario_KeywordsRelativeToFile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/suite_nesting.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "keywords", "login.yaml"), scenario.Engines[0].Keywords)
}

func TestRunSpec_Source(t *testing.T) {
	src, err := RunSpec{Table: "Main", Level: "suite"}.Source()
	require.NoError(t, err)
	assert.Equal(t, "Main", src.Name)
	assert.Equal(t, "SUITE", string(src.Level))
	assert.Equal(t, ",", src.Separator)

	src, err = RunSpec{Table: "Main", Level: "STEP", Separator: ";"}.Source()
	require.NoError(t, err)
	assert.Equal(t, ";", src.Separator)
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "trace_contains", AssertTraceContains)
	assert.Equal(t, "trace_order", AssertTraceOrder)
	assert.Equal(t, "trace_count", AssertTraceCount)
	assert.Equal(t, "final_var", AssertFinalVar)
	assert.Equal(t, "message_contains", AssertMessageContains)
}

func TestLoadExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}
