// Package testutil provides deterministic substitutes for the engine's
// clock and ID generation, so the same scenario always produces a
// byte-identical trace.
package testutil

import (
	"sync"
	"time"
)

// DeterministicClock implements model.Clock with a fixed start time that
// advances by a fixed step on every Now call. Each optimistic update in
// a scenario therefore gets a distinct, reproducible timestamp.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int
}

// NewDeterministicClock creates a clock starting at 2026-01-01T00:00:00Z
// advancing one second per Now call.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{
		start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		step:  time.Second,
	}
}

// NewDeterministicClockAt creates a clock with an explicit start and step.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start.UTC(), step: step}
}

// Now returns start + calls*step and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return now
}

// Peek returns the timestamp the next Now call will produce, without
// advancing.
func (c *DeterministicClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.calls) * c.step)
}

// Reset rewinds the clock to its start. After Reset, Now returns the
// start time again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
