package monitor

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Resume        key.Binding
	Pause         key.Binding
	Step          key.Binding
	Stepping      key.Binding
	Retry         key.Binding
	SteppingRetry key.Binding
	PauseOnFail   key.Binding
	PauseOnWarn   key.Binding
	Shutdown      key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Resume:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run")),
		Pause:         key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause")),
		Step:          key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "step")),
		Stepping:      key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "stepping")),
		Retry:         key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "retry step")),
		SteppingRetry: key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "stepping retry")),
		PauseOnFail:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "pause on failure")),
		PauseOnWarn:   key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "pause on warning")),
		Shutdown:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "shutdown run")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "close monitor")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Resume, k.Pause, k.Step, k.Shutdown, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Resume, k.Pause, k.Step, k.Stepping},
		{k.Retry, k.SteppingRetry, k.PauseOnFail, k.PauseOnWarn},
		{k.Shutdown, k.Help, k.Quit},
	}
}
