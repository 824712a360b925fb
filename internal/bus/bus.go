// Package bus provides a small typed publish/subscribe emitter.
//
// It is the glue between the push channel and the feed merger, and
// between the coordinator and whatever renders its working set. It is an
// external collaborator of the engine proper: no engine state machine
// depends on it.
package bus

import "sync"

// Handler receives a published payload. Handlers run synchronously in
// the Emit caller's goroutine; a slow handler slows the publisher.
type Handler func(payload any)

// Bus is a thread-safe topic -> subscribers registry.
type Bus struct {
	mu     sync.Mutex
	nextID int
	topics map[string]map[int]Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{topics: make(map[string]map[int]Handler)}
}

// Subscription identifies one subscriber for later removal.
type Subscription struct {
	bus   *Bus
	topic string
	id    int
}

// Subscribe registers a handler for a topic and returns the handle used
// to unsubscribe on teardown.
func (b *Bus) Subscribe(topic string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[int]Handler)
	}
	b.topics[topic][id] = h

	return &Subscription{bus: b, topic: topic, id: id}
}

// Unsubscribe removes the handler. Idempotent.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if handlers, ok := s.bus.topics[s.topic]; ok {
		delete(handlers, s.id)
		if len(handlers) == 0 {
			delete(s.bus.topics, s.topic)
		}
	}
	s.bus = nil
}

// Emit delivers payload to every handler subscribed to topic at the
// moment of the call. Handlers registered for other topics never see it.
//
// The handler list is snapshotted under the lock but handlers run
// outside it, so a handler may Subscribe or Unsubscribe without
// deadlocking.
func (b *Bus) Emit(topic string, payload any) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.topics[topic]))
	for _, h := range b.topics[topic] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

// SubscriberCount returns the number of handlers on a topic. Used for
// teardown verification in tests.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
