package engine

import (
	"sync"

	"go.uber.org/zap"
)

// Subscription is one consumer's handle on the event stream. The channel is
// closed when the subscription is cancelled, the broadcaster shuts down, or
// the consumer falls too far behind.
type Subscription struct {
	ch chan Event
	b  *Broadcaster
}

// Events returns the receive side of the subscription.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cancel removes the subscription and closes its channel. Safe to call more
// than once.
func (s *Subscription) Cancel() {
	s.b.unsubscribe(s)
}

// Broadcaster fans engine events out to any number of subscribers. Publish
// never blocks the matching path: each subscriber has a bounded queue and is
// dropped (channel closed) on overflow rather than stalling the engine.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	logger *zap.SugaredLogger
}

// NewBroadcaster creates a broadcaster whose subscribers buffer up to buffer
// events before being dropped.
func NewBroadcaster(buffer int, logger *zap.SugaredLogger) *Broadcaster {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new consumer.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{ch: make(chan Event, b.buffer), b: b}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish delivers the event to every subscriber that has queue space and
// drops the rest. A publish after Close is a no-op.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			// Subscriber is behind; cut it loose instead of stalling matching.
			delete(b.subs, sub)
			close(sub.ch)
			b.logger.Warnw("subscriber_dropped", "buffered", b.buffer)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops all subscribers and rejects further publishes.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}
