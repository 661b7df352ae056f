package engine

import "sync/atomic"

// Clock is the commit clock: a monotonic counter advanced once for every
// commit the tracker is notified of.
//
// Each delivered value carries the clock reading taken just before its fetch
// ran, so a value with version v reflects at least the first v commits.
// Versions seen by one subscription never decrease.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new version.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current version without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
