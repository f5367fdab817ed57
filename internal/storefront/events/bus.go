// Package events carries parameterless change signals between the shopper
// client components (guest stores, session, remote caches) and their views.
package events

import (
	"sync"
)

// Topic names a change signal.
type Topic string

const (
	// CartChanged fires after any cart mutation, local or remote.
	CartChanged Topic = "cart.changed"
	// WishlistChanged fires after any wishlist mutation, local or remote.
	WishlistChanged Topic = "wishlist.changed"
	// SessionChanged fires on every Anonymous/Authenticated transition.
	SessionChanged Topic = "session.changed"
)

const defaultBuffer = 16

// Event is delivered to subscribers. Source identifies the publisher so a
// listener can ignore its own writes.
type Event struct {
	Topic  Topic
	Source string
}

// Subscription is a registered listener.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	topics map[Topic]struct{}
	bus    *Bus
}

// Unsubscribe stops delivery and closes C.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.remove(s)
}

// Bus fans a published event out to every subscriber of its topic.
// Delivery never blocks a publisher: when a subscriber's buffer is full the
// signal is dropped for it, which is safe because signals only ever mean
// "re-read the store".
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

// New builds a bus whose subscribers get buffer-sized channels.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{subs: map[*Subscription]struct{}{}, buffer: buffer}
}

// Subscribe registers for the given topics, or for every topic when none
// are passed.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{C: ch, ch: ch, bus: b}
	if len(topics) > 0 {
		sub.topics = make(map[Topic]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers the event to matching subscribers. Publishing on a nil or
// closed bus is a no-op.
func (b *Bus) Publish(topic Topic, source string) {
	if b == nil {
		return
	}
	evt := Event{Topic: topic, Source: source}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		if sub.topics != nil {
			if _, ok := sub.topics[topic]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Close unsubscribes everyone. Further publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}
