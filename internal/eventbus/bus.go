package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/schema"
)

// DefaultDepth is the per-subscriber buffer.
const DefaultDepth = 256

// Bus fans appended events out to stream subscribers. Publish never blocks;
// a subscriber whose buffer is full misses the event and is marked lagging.
type Bus struct {
	mu    sync.Mutex
	subs  map[*Subscription]struct{}
	log   pslog.Logger
	depth int
}

// Subscription is one stream listener.
type Subscription struct {
	ch     chan schema.Event
	mu     sync.Mutex
	missed int
}

// Events returns the delivery channel. It is closed on cancel.
func (s *Subscription) Events() <-chan schema.Event {
	return s.ch
}

// Missed reports how many events were dropped for this subscriber.
func (s *Subscription) Missed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missed
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[*Subscription]struct{}),
		log:   logger,
		depth: DefaultDepth,
	}
}

// Subscribe registers a subscriber and returns it with a cancel func.
func (b *Bus) Subscribe() (*Subscription, func()) {
	if b == nil {
		sub := &Subscription{ch: make(chan schema.Event)}
		close(sub.ch)
		return sub, func() {}
	}
	sub := &Subscription{ch: make(chan schema.Event, b.depth)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return sub, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			// close under the lock so publish never sends on a closed channel
			close(sub.ch)
			b.mu.Unlock()
			b.log.Debug("eventbus unsubscribe")
		})
	}
}

// Subscribers reports the current subscriber count.
func (b *Bus) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(event schema.Event) {
	if b == nil {
		return
	}
	dropped := 0
	b.mu.Lock()
	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			sub.mu.Lock()
			sub.missed++
			sub.mu.Unlock()
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.log.Warn("eventbus dropped", "id", event.ID, "count", dropped)
	}
}
