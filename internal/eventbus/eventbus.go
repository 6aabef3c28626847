// Package eventbus is a small fan-out bus used to observe simulations
// without coupling the simulator to metrics or logging sinks.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the channel size used by Subscribe.
const DefaultBuffer = 64

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus implementation using fan-out channels.
// Publishing never blocks: events for a full subscriber are dropped and
// counted.
type Bus struct {
	mu      sync.RWMutex
	subs    []chan Event
	closed  bool
	dropped atomic.Uint64
}

// New creates a new Bus.
func New() *Bus { return &Bus{} }

// Publish sends the event to all subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber with the default buffer.
func (b *Bus) Subscribe() <-chan Event { return b.SubscribeN(DefaultBuffer) }

// SubscribeN registers a subscriber whose channel holds up to size events.
func (b *Bus) SubscribeN(size int) <-chan Event {
	if size < 0 {
		size = 0
	}
	ch := make(chan Event, size)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
