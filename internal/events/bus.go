package events

import (
	"sync"
)

// Handler receives events. Handlers run on the emitting goroutine and must not block.
type Handler func(event *Event)

type subscription struct {
	id      uint64
	types   map[EventType]bool // nil matches every type
	handler Handler
}

// Bus is a synchronous in-process publish/subscribe hub.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for the given event type and returns a function
// that removes it.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	return b.add(map[EventType]bool{eventType: true}, handler)
}

// SubscribeAll registers handler for every event type, or only for types when
// any are given.
func (b *Bus) SubscribeAll(handler Handler, types ...EventType) func() {
	var filter map[EventType]bool
	if len(types) > 0 {
		filter = make(map[EventType]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}
	return b.add(filter, handler)
}

func (b *Bus) add(types map[EventType]bool, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, types: types, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers event to every matching subscriber in subscription order.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.types == nil || s.types[event.Type] {
			matched = append(matched, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range matched {
		h(event)
	}
}

// SubscriberCount returns the number of live subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
