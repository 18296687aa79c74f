// Package monitor is the operator console for a running driver.
//
// The console never touches the driver directly. It reads the hook
// variables the driver publishes and writes the shared control state, the
// same protocol an external monitor process would use.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/record"
)

const defaultRefresh = 250 * time.Millisecond

// Snapshot is what the console shows of the driver.
type Snapshot struct {
	State       driver.State
	Token       string
	PauseOnFail bool
	PauseOnWarn bool
	Table       string
	Line        string
	Record      string
	Status      string
}

type refreshMsg struct {
	snap Snapshot
	err  error
}

// DoneMsg tells the console the run has finished.
type DoneMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	stateStyle = map[driver.State]lipgloss.Style{
		driver.StateRunning:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		driver.StatePause:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		driver.StateShutdown: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model is the bubbletea model of the console.
type Model struct {
	ctx     context.Context
	vars    driver.VariableService
	control *driver.Controller
	refresh time.Duration

	keys keyMap
	help help.Model

	snap   Snapshot
	notice string
	err    error
	done   bool
}

// Option configures a Model.
type Option func(*Model)

// WithRefresh sets how often the console re-reads the shared variables.
func WithRefresh(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.refresh = d
		}
	}
}

// New creates a console over vars. control must share vars with the
// driver being monitored.
func New(ctx context.Context, vars driver.VariableService, control *driver.Controller, opts ...Option) *Model {
	m := &Model{
		ctx:     ctx,
		vars:    vars,
		control: control,
		refresh: defaultRefresh,
		keys:    defaultKeys(),
		help:    help.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.fetch()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case refreshMsg:
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
		}
		if m.done {
			return m, nil
		}
		return m, m.scheduleRefresh()

	case DoneMsg:
		m.done = true
		m.notice = "run finished"
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Resume):
			return m, m.setState(driver.StateRunning)
		case key.Matches(msg, m.keys.Pause):
			return m, m.setState(driver.StatePause)
		case key.Matches(msg, m.keys.Step):
			return m, m.setState(driver.StateStep)
		case key.Matches(msg, m.keys.Stepping):
			return m, m.setState(driver.StateStepping)
		case key.Matches(msg, m.keys.Retry):
			return m, m.setState(driver.StateStepRetry)
		case key.Matches(msg, m.keys.SteppingRetry):
			return m, m.setState(driver.StateSteppingRetry)
		case key.Matches(msg, m.keys.Shutdown):
			return m, m.setState(driver.StateShutdown)
		case key.Matches(msg, m.keys.PauseOnFail):
			return m, m.toggle(driver.PauseOnFailureVariable, !m.snap.PauseOnFail)
		case key.Matches(msg, m.keys.PauseOnWarn):
			return m, m.toggle(driver.PauseOnWarningVariable, !m.snap.PauseOnWarn)
		}
	}
	return m, nil
}

func (m *Model) setState(s driver.State) tea.Cmd {
	if err := m.control.Set(m.ctx, s); err != nil {
		m.err = err
		return nil
	}
	m.notice = "sent " + s.String()
	slog.Debug("monitor set control state", "state", s.String())
	return m.fetch()
}

func (m *Model) toggle(name string, on bool) tea.Cmd {
	value := driver.SwitchOff
	if on {
		value = driver.SwitchOn
	}
	if err := m.vars.SetValue(m.ctx, name, value); err != nil {
		m.err = err
		return nil
	}
	m.notice = fmt.Sprintf("%s %s", name, value)
	return m.fetch()
}

func (m *Model) fetch() tea.Cmd {
	return func() tea.Msg {
		snap, err := Read(m.ctx, m.vars)
		return refreshMsg{snap: snap, err: err}
	}
}

func (m *Model) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		snap, err := Read(m.ctx, m.vars)
		return refreshMsg{snap: snap, err: err}
	})
}

// Read takes a snapshot of the shared variables.
func Read(ctx context.Context, vars driver.VariableService) (Snapshot, error) {
	var snap Snapshot
	names := []struct {
		name string
		dst  *string
	}{
		{driver.ControlVariable, &snap.Token},
		{driver.FilenameVariable, &snap.Table},
		{driver.LineNumberVariable, &snap.Line},
		{driver.InputRecordVariable, &snap.Record},
		{driver.StatusCodeVariable, &snap.Status},
	}
	for _, n := range names {
		v, err := vars.Value(ctx, n.name)
		if err != nil {
			return Snapshot{}, fmt.Errorf("read %s: %w", n.name, err)
		}
		*n.dst = v
	}
	snap.State = driver.ParseState(snap.Token)

	for name, dst := range map[string]*bool{
		driver.PauseOnFailureVariable: &snap.PauseOnFail,
		driver.PauseOnWarningVariable: &snap.PauseOnWarn,
	} {
		v, err := vars.Value(ctx, name)
		if err != nil {
			return Snapshot{}, fmt.Errorf("read %s: %w", name, err)
		}
		*dst = strings.EqualFold(strings.TrimSpace(v), driver.SwitchOn)
	}
	return snap, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("tabledriver monitor"))
	sb.WriteString("\n\n")

	state := m.snap.State.String()
	if style, ok := stateStyle[m.snap.State]; ok {
		state = style.Render(state)
	}
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label))
		sb.WriteString(value)
		sb.WriteString("\n")
	}
	row("state", state)
	row("table", m.snap.Table)
	row("line", m.snap.Line)
	row("record", m.snap.Record)
	row("status", statusLabel(m.snap.Status))
	row("pause on", fmt.Sprintf("failure %s  warning %s", onOff(m.snap.PauseOnFail), onOff(m.snap.PauseOnWarn)))

	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render(m.err.Error()))
		sb.WriteString("\n")
	} else if m.notice != "" {
		sb.WriteString("\n")
		sb.WriteString(m.notice)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func statusLabel(code string) string {
	if code == "" {
		return ""
	}
	o, err := record.ParseOutcome(code)
	if err != nil {
		return code
	}
	return o.String()
}

func onOff(b bool) string {
	if b {
		return driver.SwitchOn
	}
	return driver.SwitchOff
}

// Run shows the console until done is closed, the user quits, or ctx is
// cancelled.
func Run(ctx context.Context, vars driver.VariableService, control *driver.Controller, done <-chan struct{}, opts ...tea.ProgramOption) error {
	m := New(ctx, vars, control)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, opts...)

	go func() {
		select {
		case <-done:
			p.Send(DoneMsg{})
		case <-ctx.Done():
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}
