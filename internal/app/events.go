package app

import (
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/tunevault-go/internal/domain"
)

const subscriberBuffer = 64

// EventBus fans job events out to all connected clients. Delivery is
// best-effort: a subscriber that cannot keep up loses events and is expected
// to reconcile through a fresh snapshot. Events for a single job are
// published in transition order, so per-job ordering is preserved on every
// channel that receives them.
type EventBus struct {
	logger *zap.Logger
	mu     sync.RWMutex
	subs   map[chan domain.Event]struct{}
	closed bool
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[chan domain.Event]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its channel together
// with an unsubscribe function. The channel is closed on unsubscribe.
func (b *EventBus) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
	return ch, unsubscribe
}

// Publish delivers an event to every subscriber without blocking. A full
// subscriber channel drops the event; the next progress tick or a snapshot
// read supersedes it.
func (b *EventBus) Publish(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			if b.logger != nil {
				b.logger.Debug("Dropped event for slow subscriber",
					zap.String("kind", string(event.Kind)),
					zap.String("job_id", event.JobID))
			}
		}
	}
}

// SubscriberCount returns the number of connected subscribers
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes the bus and every subscriber channel
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
