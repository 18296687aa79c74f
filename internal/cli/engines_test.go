package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnginesListTypes(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewEnginesCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Engine types: dryrun, scripted\n", out.String())
}

func TestEnginesConfigured(t *testing.T) {
	_, configPath := writeProject(t, "PASS")

	out := &bytes.Buffer{}
	cmd := NewEnginesCommand(&RootOptions{Format: "json"})
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--config", configPath})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data EnginesResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, []string{"dryrun", "scripted"}, resp.Data.Types)
	require.Len(t, resp.Data.Configured, 1)
	assert.Equal(t, EngineInfo{Name: "TC", Type: "scripted", Rules: 2}, resp.Data.Configured[0])
}

func TestEnginesBadConfig(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewEnginesCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--config", "/nonexistent/tabledriver.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out.String(), "Error [E005]")
}

func TestIsPreferred(t *testing.T) {
	assert.True(t, isPreferred("WebEngine", []string{"web"}))
	assert.True(t, isPreferred("TC", []string{"other", "tc"}))
	assert.False(t, isPreferred("TC", []string{"web"}))
	assert.False(t, isPreferred("TC", []string{""}))
}

func TestRenderEngines(t *testing.T) {
	text := renderEngines(EnginesResult{
		Types: []string{"dryrun", "scripted"},
		Configured: []EngineInfo{
			{Name: "WebEngine", Type: "scripted", Preferred: true, Keywords: "keywords/web.yaml", Rules: 4},
			{Name: "Fallback", Type: "dryrun"},
		},
	})

	want := "Engine types: dryrun, scripted\n\n" +
		"Configured engines:\n" +
		" * 1. WebEngine (scripted, 4 rules) keywords=keywords/web.yaml\n" +
		"   2. Fallback (dryrun, 0 rules)"
	assert.Equal(t, want, text)
}
