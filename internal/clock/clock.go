// Package clock abstracts wall-clock time so that schedule and playback
// decisions can be tested deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time { return time.Now() }

// FakeClock implements Clock with a manually controlled time.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock set to t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// NewFakeClockMs creates a FakeClock set to the given epoch milliseconds.
func NewFakeClockMs(ms int64) *FakeClock {
	return NewFakeClock(time.UnixMilli(ms))
}

// Now returns the fixed time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set updates the fixed time.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// SetMs updates the fixed time from epoch milliseconds.
func (c *FakeClock) SetMs(ms int64) { c.Set(time.UnixMilli(ms)) }

// Advance moves the fixed time forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

// NowMs returns c.Now() as epoch milliseconds.
func NowMs(c Clock) int64 { return c.Now().UnixMilli() }
