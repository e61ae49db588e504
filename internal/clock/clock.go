// Package clock produces the monotonic sequence of simulation
// timestamps a run consumes. The historical variant replays feed
// timestamps with no real delay; the wall variant paces the same
// sequence on real time. The runner only ever sees the Clock
// interface, so switching variants never touches strategy, broker, or
// analytics code.
package clock

import (
	"context"
	"time"
)

// Clock yields the next simulation timestamp. ok is false at end of
// stream (or when the context is cancelled on a pacing clock).
type Clock interface {
	Advance(ctx context.Context) (time.Time, bool)
}

// HistoricalClock replays a fixed timestamp sequence instantly.
type HistoricalClock struct {
	times []time.Time
	next  int
}

// NewHistoricalClock creates a clock over the given ordered timestamps.
func NewHistoricalClock(times []time.Time) *HistoricalClock {
	return &HistoricalClock{
		times: times,
		next:  0,
	}
}

// Advance returns the next timestamp in source order with no delay.
func (c *HistoricalClock) Advance(ctx context.Context) (time.Time, bool) {
	if c.next >= len(c.times) {
		return time.Time{}, false
	}

	t := c.times[c.next]
	c.next++

	return t, true
}
