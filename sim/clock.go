package sim

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source for a run. Every time-dependent decision in the
// engine (router delay, TTL expiry, staleness, phase length, resource sample
// throttling) reads the injected Clock, never the wall clock directly.
type Clock interface {
	Now() time.Time
	// Sleep blocks the caller for d. Non-positive durations return immediately.
	Sleep(d time.Duration)
	// SleepContext is Sleep that returns ctx.Err() as soon as ctx is done.
	SleepContext(ctx context.Context, d time.Duration) error
}

// RealClock is backed by the process wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}

func (RealClock) SleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
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

// ManualClock is a virtual clock whose Sleep advances time instantly.
// Phases that would take minutes of wall time complete in microseconds,
// and every timestamp is a pure function of the sleeps issued so far.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock positioned at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// SleepContext advances the clock unless ctx is already done.
func (c *ManualClock) SleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// Advance moves the clock forward by d. Negative durations are ignored:
// the clock never moves backwards.
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// millisSince returns the elapsed time between then and now in milliseconds.
func millisSince(now, then time.Time) float64 {
	return float64(now.Sub(then)) / float64(time.Millisecond)
}
