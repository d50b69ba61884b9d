package testutil

import "sync"

// Clock is a deterministic nanosecond clock for tests. Each NowNs call
// advances time by one step, so ingest timestamps are stable across
// runs and usable in golden output.
//
// Thread-safety: all methods are safe for concurrent use.
type Clock struct {
	mu   sync.Mutex
	now  uint64
	step uint64
}

// NewClock starts a clock at start nanoseconds, advancing by step per
// reading. A zero step freezes the clock.
func NewClock(start, step uint64) *Clock {
	return &Clock{now: start, step: step}
}

// NowNs returns the current time and advances it.
func (c *Clock) NowNs() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now += c.step
	return t
}
