package monitor

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/vars"
)

func newTestModel(t *testing.T) (*Model, *vars.Service, *driver.Controller) {
	t.Helper()
	ctx := context.Background()
	svc := vars.NewMemoryService()
	ctl := driver.NewController(svc, 0, nil, false)
	require.NoError(t, ctl.Init(ctx))
	return New(ctx, svc, ctl), svc, ctl
}

func press(m *Model, keys string) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return cmd
}

// drain runs cmd and feeds its message back into m.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	m.Update(cmd())
}

func TestRead_Snapshot(t *testing.T) {
	ctx := context.Background()
	svc := vars.NewMemoryService()
	require.NoError(t, svc.SetValue(ctx, driver.ControlVariable, "PAUSE"))
	require.NoError(t, svc.SetValue(ctx, driver.FilenameVariable, "Login"))
	require.NoError(t, svc.SetValue(ctx, driver.LineNumberVariable, "4"))
	require.NoError(t, svc.SetValue(ctx, driver.StatusCodeVariable, "5"))
	require.NoError(t, svc.SetValue(ctx, driver.PauseOnFailureVariable, "on"))

	snap, err := Read(ctx, svc)
	require.NoError(t, err)
	assert.Equal(t, driver.StatePause, snap.State)
	assert.Equal(t, "Login", snap.Table)
	assert.Equal(t, "4", snap.Line)
	assert.True(t, snap.PauseOnFail)
	assert.False(t, snap.PauseOnWarn)
}

func TestModel_KeysWriteControlState(t *testing.T) {
	tests := []struct {
		keys string
		want driver.State
	}{
		{"p", driver.StatePause},
		{"s", driver.StateStep},
		{"S", driver.StateStepping},
		{"t", driver.StateStepRetry},
		{"T", driver.StateSteppingRetry},
		{"x", driver.StateShutdown},
		{"r", driver.StateRunning},
	}
	for _, tt := range tests {
		t.Run(tt.keys, func(t *testing.T) {
			m, _, ctl := newTestModel(t)
			drain(t, m, press(m, tt.keys))

			assert.Equal(t, tt.want, ctl.State(context.Background()))
			assert.Equal(t, tt.want, m.snap.State)
		})
	}
}

func TestModel_TogglesPauseSwitches(t *testing.T) {
	m, svc, _ := newTestModel(t)
	ctx := context.Background()

	drain(t, m, press(m, "f"))
	v, err := svc.Value(ctx, driver.PauseOnFailureVariable)
	require.NoError(t, err)
	assert.Equal(t, driver.SwitchOn, v)
	assert.True(t, m.snap.PauseOnFail)

	drain(t, m, press(m, "f"))
	v, err = svc.Value(ctx, driver.PauseOnFailureVariable)
	require.NoError(t, err)
	assert.Equal(t, driver.SwitchOff, v)

	drain(t, m, press(m, "w"))
	assert.True(t, m.snap.PauseOnWarn)
}

func TestModel_QuitDoesNotShutDownRun(t *testing.T) {
	m, _, ctl := newTestModel(t)

	cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, driver.StateRunning, ctl.State(context.Background()))
}

func TestModel_DoneQuits(t *testing.T) {
	m, _, _ := newTestModel(t)

	_, cmd := m.Update(DoneMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.done)
}

func TestModel_View(t *testing.T) {
	m, svc, _ := newTestModel(t)
	ctx := context.Background()
	require.NoError(t, svc.SetValue(ctx, driver.FilenameVariable, "Login"))
	require.NoError(t, svc.SetValue(ctx, driver.StatusCodeVariable, "-1"))
	drain(t, m, m.Init())

	view := m.View()
	assert.Contains(t, view, "tabledriver monitor")
	assert.Contains(t, view, "RUNNING")
	assert.Contains(t, view, "Login")
	assert.Contains(t, view, "NO_SCRIPT_FAILURE")
	assert.Contains(t, view, "pause")

	press(m, "?")
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "stepping retry")
}
