// Package event provides a publish-subscribe bus and the monitor that feeds
// scheduler notifications into it.
package event

import (
	"context"
	"sync"
)

// Handler is a function that handles an event.
type Handler func(ctx context.Context, data any)

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

// EventBus defines the interface for an event system.
type EventBus interface {
	Subscribe(topic string, handler Handler) SubscriptionID
	Unsubscribe(id SubscriptionID) bool
	Publish(ctx context.Context, topic string, data any)
}

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus represents the event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]subscription
	nextID      SubscriptionID
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]subscription),
	}
}

// Subscribe adds a handler for a topic.
func (b *Bus) Subscribe(topic string, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subscribers[topic] = append(b.subscribers[topic], subscription{id: b.nextID, handler: handler})
	return b.nextID
}

// Unsubscribe removes a handler. It reports whether id was subscribed.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.subscribers {
		for i, s := range subs {
			if s.id != id {
				continue
			}
			subs = append(subs[:i:i], subs[i+1:]...)
			if len(subs) == 0 {
				delete(b.subscribers, topic)
			} else {
				b.subscribers[topic] = subs
			}
			return true
		}
	}
	return false
}

// Subscribers returns the number of handlers on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

func (b *Bus) handlers(topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := b.subscribers[topic]
	out := make([]Handler, len(subs))
	for i, s := range subs {
		out[i] = s.handler
	}
	return out
}

// Publish triggers all handlers subscribed to the topic, each on its own
// goroutine.
func (b *Bus) Publish(ctx context.Context, topic string, data any) {
	for _, handler := range b.handlers(topic) {
		go handler(ctx, data)
	}
}

// PublishSync calls the handlers in subscription order on the caller's
// goroutine. Handlers must not block.
func (b *Bus) PublishSync(ctx context.Context, topic string, data any) {
	for _, handler := range b.handlers(topic) {
		handler(ctx, data)
	}
}
