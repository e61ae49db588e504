package runner

import (
	"sync"

	"github.com/quantsim-lab/quantsim/internal/types"
)

const subscriberBuffer = 256

// EventBus fans lifecycle events out to subscribers. Publishing never
// blocks: a subscriber that stops draining its channel loses events
// rather than stalling the run loop.
type EventBus struct {
	mu   sync.RWMutex
	subs []chan types.Event
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe returns a channel receiving all events published after the
// call. The channel is closed by Close.
func (b *EventBus) Subscribe() <-chan types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan types.Event, subscriberBuffer)
	b.subs = append(b.subs, ch)

	return ch
}

// Publish delivers an event to every subscriber without blocking.
func (b *EventBus) Publish(event types.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes all subscriber channels.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		close(ch)
	}

	b.subs = nil
}
