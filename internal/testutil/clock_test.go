package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleeper_Records(t *testing.T) {
	s := NewSleeper()
	assert.NoError(t, s.Sleep(context.Background(), 300*time.Millisecond))
	assert.NoError(t, s.Sleep(context.Background(), 200*time.Millisecond))

	assert.Equal(t, 2, s.Calls())
	assert.Equal(t, 500*time.Millisecond, s.Total())

	s.Reset()
	assert.Equal(t, 0, s.Calls())
}

func TestSleeper_Hook(t *testing.T) {
	s := NewSleeper()
	var seen []int
	s.OnSleep = func(n int, _ time.Duration) { seen = append(seen, n) }

	_ = s.Sleep(context.Background(), time.Second)
	_ = s.Sleep(context.Background(), time.Second)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestSleeper_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewSleeper().Sleep(ctx, time.Second), context.Canceled)
}

func TestSleeper_ThreadSafe(t *testing.T) {
	s := NewSleeper()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Sleep(context.Background(), time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, s.Calls())
}
