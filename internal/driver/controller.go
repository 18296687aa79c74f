package driver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/tabledriver/internal/record"
)

// Shared variables read and written by the controller.
const (
	ControlVariable        = "SAFS_DRIVER_CONTROL"
	PauseOnFailureVariable = "SAFS_DRIVER_CONTROL_POF"
	PauseOnWarningVariable = "SAFS_DRIVER_CONTROL_POW"

	SwitchOn  = "ON"
	SwitchOff = "OFF"
)

// DefaultPollInterval is how long a paused loop sleeps between checks.
const DefaultPollInterval = 300 * time.Millisecond

// State is the shared execution state.
type State int

const (
	StateUnknown State = iota
	StateRunning
	StatePause
	StateStep
	StateStepping
	StateStepRetry
	StateSteppingRetry
	StateShutdown
)

var stateTokens = map[State]string{
	StateRunning:       "RUNNING",
	StatePause:         "PAUSE_EXECUTION",
	StateStep:          "STEP_EXECUTION",
	StateStepping:      "STEPPING_EXECUTION",
	StateStepRetry:     "STEP_RETRY_EXECUTION",
	StateSteppingRetry: "STEPPING_RETRY_EXECUTION",
	StateShutdown:      record.ShutdownMarker,
}

var legacyStateTokens = map[State]string{
	StateRunning:       "RUNNING",
	StatePause:         "PAUSE",
	StateStep:          "STEP",
	StateStepping:      "STEPPING",
	StateStepRetry:     "STEP_RETRY",
	StateSteppingRetry: "STEPPING_RETRY",
	StateShutdown:      record.ShutdownMarker,
}

// ParseState accepts both token vocabularies, case-insensitively.
// Unrecognized tokens, including "", return StateUnknown.
func ParseState(token string) State {
	t := strings.ToUpper(strings.TrimSpace(token))
	for s, tok := range stateTokens {
		if tok == t {
			return s
		}
	}
	for s, tok := range legacyStateTokens {
		if tok == t {
			return s
		}
	}
	return StateUnknown
}

// Token returns the shared-variable token for s.
func (s State) Token(legacy bool) string {
	if legacy {
		return legacyStateTokens[s]
	}
	return stateTokens[s]
}

func (s State) String() string {
	if tok, ok := stateTokens[s]; ok {
		return tok
	}
	return "UNKNOWN"
}

// Action tells the record loop what to do after a poll.
type Action int

const (
	// ActionProceed continues with the next record.
	ActionProceed Action = iota
	// ActionWait keeps the loop in the hold state.
	ActionWait
	// ActionRetry re-executes the current record.
	ActionRetry
	// ActionShutdown terminates the loop.
	ActionShutdown
)

func (a Action) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionWait:
		return "wait"
	case ActionRetry:
		return "retry"
	case ActionShutdown:
		return "shutdown"
	}
	return "unknown"
}

// Next is the state transition function: given the observed state it
// returns the state to publish and the loop action.
//
// STEP publishes STEPPING and lets one record run; the following poll sees
// STEPPING and publishes PAUSE. STEP_RETRY works the same way but re-runs
// the current record.
func (s State) Next() (State, Action) {
	switch s {
	case StateRunning:
		return StateRunning, ActionProceed
	case StatePause:
		return StatePause, ActionWait
	case StateStep:
		return StateStepping, ActionProceed
	case StateStepping:
		return StatePause, ActionWait
	case StateStepRetry:
		return StateSteppingRetry, ActionRetry
	case StateSteppingRetry:
		return StatePause, ActionWait
	case StateShutdown:
		return StateShutdown, ActionShutdown
	}
	return StateRunning, ActionProceed
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Controller drives the cooperative pause/step/retry/shutdown protocol
// through the shared control variable.
type Controller struct {
	vars     VariableService
	interval time.Duration
	sleep    SleepFunc
	legacy   bool
}

// NewController creates a controller polling through vars.
func NewController(vars VariableService, interval time.Duration, sleep SleepFunc, legacyTokens bool) *Controller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if sleep == nil {
		sleep = sleepContext
	}
	return &Controller{vars: vars, interval: interval, sleep: sleep, legacy: legacyTokens}
}

// State reads the shared state.
func (c *Controller) State(ctx context.Context) State {
	tok, err := c.vars.Value(ctx, ControlVariable)
	if err != nil {
		slog.Warn("control state read failed", "error", err)
		return StateUnknown
	}
	return ParseState(tok)
}

// Set publishes s.
func (c *Controller) Set(ctx context.Context, s State) error {
	return c.vars.SetValue(ctx, ControlVariable, s.Token(c.legacy))
}

// Init publishes RUNNING unless a recognized state is already present, so a
// monitor can start a run paused.
func (c *Controller) Init(ctx context.Context) error {
	if c.State(ctx) != StateUnknown {
		return nil
	}
	return c.Set(ctx, StateRunning)
}

// PauseOn reports whether the pause-on-failure or pause-on-warning switch
// applies to outcome.
func (c *Controller) PauseOn(ctx context.Context, outcome record.Outcome) bool {
	var name string
	switch outcome {
	case record.GeneralScriptFailure:
		name = PauseOnFailureVariable
	case record.ScriptWarning:
		name = PauseOnWarningVariable
	default:
		return false
	}
	v, err := c.vars.Value(ctx, name)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(v), SwitchOn)
}

// Delay sleeps for the inter-record delay. Cancellation is reported as an
// error so the loop can shut down.
func (c *Controller) Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return c.sleep(ctx, d)
}

// Poll runs the hold loop once per record. It returns ActionProceed,
// ActionRetry or ActionShutdown; ActionWait never escapes. A cancelled
// context is a shutdown.
func (c *Controller) Poll(ctx context.Context) Action {
	for {
		if ctx.Err() != nil {
			return ActionShutdown
		}
		observed := c.State(ctx)
		next, action := observed.Next()
		if observed == StateUnknown {
			slog.Warn("unknown driver control state, resetting to RUNNING")
		}
		if next != observed {
			if err := c.Set(ctx, next); err != nil {
				slog.Warn("control state write failed", "state", next.String(), "error", err)
			}
		}
		if action != ActionWait {
			return action
		}
		if observed == StatePause {
			if err := c.sleep(ctx, c.interval); err != nil {
				return ActionShutdown
			}
		}
	}
}
