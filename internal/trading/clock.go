package trading

import (
	"sync"
	"time"
)

// Clock supplies monotonically non-decreasing timestamps in nanoseconds.
type Clock interface {
	Now() uint64
}

// SystemClock reads wall-clock time and never goes backwards, even if the
// host clock is stepped.
type SystemClock struct {
	mu   sync.Mutex
	last uint64
}

// NewSystemClock creates a clock backed by time.Now.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current time in nanoseconds since the Unix epoch.
func (c *SystemClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := uint64(time.Now().UnixNano())
	if now < c.last {
		now = c.last
	}
	c.last = now
	return now
}

// ManualClock is a Clock whose value only changes when told to. Useful for
// tests and for replaying recorded sessions.
type ManualClock struct {
	mu    sync.Mutex
	now   uint64
	reads int
}

// NewManualClock creates a clock fixed at start.
func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current value.
func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.now
}

// Advance moves the clock forward by d nanoseconds.
func (c *ManualClock) Advance(d uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Reads returns how many times Now has been called.
func (c *ManualClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
