package testutil

import (
	"context"
	"sync"
	"time"
)

// Sleeper is a deterministic replacement for the driver's sleep.
//
// It never blocks. Each call is recorded, and OnSleep, when set, runs
// before the call returns so a test can change the shared control state
// while the driver is paused.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sleeper struct {
	mu      sync.Mutex
	calls   []time.Duration
	OnSleep func(n int, d time.Duration)
}

// NewSleeper creates a sleeper with no recorded calls.
func NewSleeper() *Sleeper {
	return &Sleeper{}
}

// Sleep records d and returns ctx.Err().
//
// Matches driver.SleepFunc.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	n := len(s.calls)
	hook := s.OnSleep
	s.mu.Unlock()

	if hook != nil {
		hook(n, d)
	}
	return ctx.Err()
}

// Calls returns the number of recorded sleeps.
func (s *Sleeper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Total returns the sum of all recorded durations.
func (s *Sleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.calls {
		total += d
	}
	return total
}

// Reset forgets all recorded calls.
func (s *Sleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}
