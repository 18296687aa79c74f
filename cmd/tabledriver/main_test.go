package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabledriver/internal/cli"
)

func TestRun_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.SDD"), []byte("C, LogMessage, hello\n"), 0644))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"engines", []string{"engines"}, cli.ExitSuccess},
		{"passing table", []string{"run", "--project", dir, "--level", "STEP", "Main"}, cli.ExitSuccess},
		{"missing table", []string{"run", "--project", dir, "--level", "STEP", "Absent"}, cli.ExitCommandError},
		{"bad format", []string{"--format", "xml", "engines"}, cli.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(tt.args, &stdout, &stderr), "stderr: %s", stderr.String())
		})
	}
}

func TestRun_ReportsErrorsOnStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"validate", filepath.Join(t.TempDir(), "absent.yaml")}, &stdout, &stderr)

	assert.Equal(t, cli.ExitCommandError, code)
	assert.Contains(t, stderr.String(), "tabledriver: E005")
}
