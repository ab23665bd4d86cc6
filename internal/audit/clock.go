// Package audit records the calls flowing through decorating layers. Every
// observation is stamped with a logical sequence number so a recorded trace
// has one deterministic order regardless of wall clock.
package audit

import "sync/atomic"

// Clock is a monotonic logical clock. Each Next call returns a unique,
// strictly increasing sequence number.
//
// Thread-safety: atomic, safe for concurrent use, though the dispatch
// core's synchronous model means a single caller in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a known position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock's position without advancing it.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
