package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tabledriver/internal/driver"
	"github.com/roach88/tabledriver/internal/record"
	"github.com/roach88/tabledriver/internal/testutil"
	"github.com/roach88/tabledriver/internal/vars"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		token string
		want  driver.State
	}{
		{"RUNNING", driver.StateRunning},
		{"running", driver.StateRunning},
		{"PAUSE_EXECUTION", driver.StatePause},
		{"PAUSE", driver.StatePause},
		{"STEP_EXECUTION", driver.StateStep},
		{"step", driver.StateStep},
		{"STEPPING_EXECUTION", driver.StateStepping},
		{"STEPPING", driver.StateStepping},
		{"STEP_RETRY_EXECUTION", driver.StateStepRetry},
		{"STEP_RETRY", driver.StateStepRetry},
		{"STEPPING_RETRY_EXECUTION", driver.StateSteppingRetry},
		{"SHUTDOWN_HOOK", driver.StateShutdown},
		{"", driver.StateUnknown},
		{"GO FASTER", driver.StateUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, driver.ParseState(tt.token))
		})
	}
}

func TestState_Token(t *testing.T) {
	assert.Equal(t, "PAUSE_EXECUTION", driver.StatePause.Token(false))
	assert.Equal(t, "PAUSE", driver.StatePause.Token(true))
	assert.Equal(t, "SHUTDOWN_HOOK", driver.StateShutdown.Token(true))
	assert.Equal(t, "STEPPING_RETRY_EXECUTION", driver.StateSteppingRetry.String())
}

func TestState_Next(t *testing.T) {
	tests := []struct {
		from       driver.State
		wantState  driver.State
		wantAction driver.Action
	}{
		{driver.StateRunning, driver.StateRunning, driver.ActionProceed},
		{driver.StatePause, driver.StatePause, driver.ActionWait},
		{driver.StateStep, driver.StateStepping, driver.ActionProceed},
		{driver.StateStepping, driver.StatePause, driver.ActionWait},
		{driver.StateStepRetry, driver.StateSteppingRetry, driver.ActionRetry},
		{driver.StateSteppingRetry, driver.StatePause, driver.ActionWait},
		{driver.StateShutdown, driver.StateShutdown, driver.ActionShutdown},
		{driver.StateUnknown, driver.StateRunning, driver.ActionProceed},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			state, action := tt.from.Next()
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantAction, action)
		})
	}
}

func newController(t *testing.T, sleeper *testutil.Sleeper, legacy bool) (*driver.Controller, *vars.Service) {
	t.Helper()
	v := vars.NewMemoryService()
	return driver.NewController(v, 0, sleeper.Sleep, legacy), v
}

func TestController_InitKeepsRecognizedState(t *testing.T) {
	ctx := context.Background()
	c, v := newController(t, testutil.NewSleeper(), false)

	require.NoError(t, c.Init(ctx))
	got, _ := v.Value(ctx, driver.ControlVariable)
	assert.Equal(t, "RUNNING", got)

	require.NoError(t, v.SetValue(ctx, driver.ControlVariable, "PAUSE"))
	require.NoError(t, c.Init(ctx))
	assert.Equal(t, driver.StatePause, c.State(ctx), "a monitor may start the run paused")
}

func TestController_PollPausesUntilRunning(t *testing.T) {
	ctx := context.Background()
	sleeper := testutil.NewSleeper()
	c, v := newController(t, sleeper, false)
	require.NoError(t, c.Set(ctx, driver.StatePause))

	sleeper.OnSleep = func(n int, d time.Duration) {
		assert.Equal(t, driver.DefaultPollInterval, d)
		if n == 3 {
			_ = v.SetValue(ctx, driver.ControlVariable, "running")
		}
	}

	assert.Equal(t, driver.ActionProceed, c.Poll(ctx))
	assert.Equal(t, 3, sleeper.Calls())
}

func TestController_PollStepPulse(t *testing.T) {
	ctx := context.Background()
	sleeper := testutil.NewSleeper()
	c, v := newController(t, sleeper, false)
	require.NoError(t, v.SetValue(ctx, driver.ControlVariable, "STEP_EXECUTION"))

	assert.Equal(t, driver.ActionProceed, c.Poll(ctx))
	got, _ := v.Value(ctx, driver.ControlVariable)
	assert.Equal(t, "STEPPING_EXECUTION", got)

	sleeper.OnSleep = func(int, time.Duration) {
		cur, _ := v.Value(ctx, driver.ControlVariable)
		assert.Equal(t, "PAUSE_EXECUTION", cur)
		_ = v.SetValue(ctx, driver.ControlVariable, "SHUTDOWN_HOOK")
	}
	assert.Equal(t, driver.ActionShutdown, c.Poll(ctx))
	assert.Equal(t, 1, sleeper.Calls())
}

func TestController_LegacyTokens(t *testing.T) {
	ctx := context.Background()
	c, v := newController(t, testutil.NewSleeper(), true)
	require.NoError(t, v.SetValue(ctx, driver.ControlVariable, "STEP"))

	assert.Equal(t, driver.ActionProceed, c.Poll(ctx))
	got, _ := v.Value(ctx, driver.ControlVariable)
	assert.Equal(t, "STEPPING", got)
}

func TestController_RetryPulse(t *testing.T) {
	ctx := context.Background()
	c, v := newController(t, testutil.NewSleeper(), false)
	require.NoError(t, v.SetValue(ctx, driver.ControlVariable, "STEP_RETRY_EXECUTION"))

	assert.Equal(t, driver.ActionRetry, c.Poll(ctx))
	assert.Equal(t, driver.StateSteppingRetry, c.State(ctx))
}

func TestController_UnknownTokenResetsToRunning(t *testing.T) {
	ctx := context.Background()
	c, v := newController(t, testutil.NewSleeper(), false)
	require.NoError(t, v.SetValue(ctx, driver.ControlVariable, "bogus"))

	assert.Equal(t, driver.ActionProceed, c.Poll(ctx))
	assert.Equal(t, driver.StateRunning, c.State(ctx))
}

func TestController_CancelledContextIsShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, _ := newController(t, testutil.NewSleeper(), false)
	cancel()
	assert.Equal(t, driver.ActionShutdown, c.Poll(ctx))
}

func TestController_PauseOn(t *testing.T) {
	ctx := context.Background()
	c, v := newController(t, testutil.NewSleeper(), false)

	assert.False(t, c.PauseOn(ctx, record.GeneralScriptFailure))

	require.NoError(t, v.SetValue(ctx, driver.PauseOnFailureVariable, "on"))
	assert.True(t, c.PauseOn(ctx, record.GeneralScriptFailure))
	assert.False(t, c.PauseOn(ctx, record.ScriptWarning))
	assert.False(t, c.PauseOn(ctx, record.NoScriptFailure))

	require.NoError(t, v.SetValue(ctx, driver.PauseOnWarningVariable, "ON"))
	assert.True(t, c.PauseOn(ctx, record.ScriptWarning))
}

func TestController_Delay(t *testing.T) {
	sleeper := testutil.NewSleeper()
	c, _ := newController(t, sleeper, false)

	require.NoError(t, c.Delay(context.Background(), 0))
	assert.Equal(t, 0, sleeper.Calls())

	require.NoError(t, c.Delay(context.Background(), 50*time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, sleeper.Total())
}
