package clock

import (
	"context"
	"sync"
	"time"
)

const wallClockQueueSize = 1024

// WallClock paces pushed timestamps on real time: Advance suspends the
// caller until the bar's nominal time has elapsed relative to the first
// pushed timestamp. Pausing freezes progression without dropping queued
// timestamps; resuming continues from the next unprocessed one, not
// from wall-clock now.
type WallClock struct {
	queue chan time.Time

	mu         sync.Mutex
	gate       chan struct{}
	paused     bool
	pauseStart time.Time
	pausedFor  time.Duration
	anchored   bool
	anchorWall time.Time
	anchorSim  time.Time

	endOnce sync.Once
}

// NewWallClock creates a wall-clock paced simulation clock.
func NewWallClock() *WallClock {
	running := make(chan struct{})
	close(running)

	return &WallClock{
		queue:      make(chan time.Time, wallClockQueueSize),
		gate:       running,
		paused:     false,
		pauseStart: time.Time{},
		pausedFor:  0,
		anchored:   false,
		anchorWall: time.Time{},
		anchorSim:  time.Time{},
	}
}

// Push enqueues the nominal time of an arriving bar. Blocks if the
// queue is full, which back-pressures the producer; returns false when
// the context is cancelled before the timestamp could be enqueued.
func (c *WallClock) Push(ctx context.Context, t time.Time) bool {
	select {
	case c.queue <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

// End signals that no more timestamps will arrive. Queued timestamps
// are still delivered before Advance reports end of stream.
func (c *WallClock) End() {
	c.endOnce.Do(func() {
		close(c.queue)
	})
}

// Pause freezes time progression. Queued timestamps are retained.
func (c *WallClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return
	}

	c.paused = true
	c.pauseStart = time.Now()
	c.gate = make(chan struct{})
}

// Resume continues from the paused point. The time spent paused is
// added to every remaining timestamp's deadline, so no bars are skipped.
func (c *WallClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return
	}

	c.paused = false
	c.pausedFor += time.Since(c.pauseStart)
	close(c.gate)
}

// Advance blocks until the next pushed timestamp is due, honoring pause
// and context cancellation. ok is false at end of stream or cancel.
func (c *WallClock) Advance(ctx context.Context) (time.Time, bool) {
	var t time.Time

	select {
	case <-ctx.Done():
		return time.Time{}, false
	case next, ok := <-c.queue:
		if !ok {
			return time.Time{}, false
		}

		t = next
	}

	for {
		c.mu.Lock()
		if !c.anchored {
			c.anchored = true
			c.anchorWall = time.Now()
			c.anchorSim = t
		}

		target := c.anchorWall.Add(t.Sub(c.anchorSim) + c.pausedFor)
		gate := c.gate
		c.mu.Unlock()

		// Wait out a pause before consulting the deadline: resuming
		// shifts every remaining deadline by the paused duration.
		select {
		case <-ctx.Done():
			return time.Time{}, false
		case <-gate:
		}

		delay := time.Until(target)
		if delay <= 0 {
			return t, true
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()

			return time.Time{}, false
		case <-timer.C:
			// Re-evaluate: a pause during the wait moved the deadline.
		}
	}
}
