package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"farmlink/internal/domain/entity"
	"farmlink/pkg/logger"
)

type Handler func(ctx context.Context, event *entity.OutboxEvent) error

type subscription struct {
	name    string
	handler Handler
}

// Bus fans committed outbox events out to in-process subscribers.
// Handlers run in the publisher's goroutine, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	byType   map[entity.EventType][]subscription
	wildcard []subscription
}

func NewBus() *Bus {
	return &Bus{
		byType: make(map[entity.EventType][]subscription),
	}
}

func (b *Bus) Subscribe(eventType entity.EventType, name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[eventType] = append(b.byType[eventType], subscription{name: name, handler: handler})
}

// SubscribeAll receives every event type.
func (b *Bus) SubscribeAll(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, subscription{name: name, handler: handler})
}

// Publish calls every matching handler. A failing handler does not stop the
// others; all failures are returned joined.
func (b *Bus) Publish(ctx context.Context, event *entity.OutboxEvent) error {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.byType[event.Type])+len(b.wildcard))
	subs = append(subs, b.byType[event.Type]...)
	subs = append(subs, b.wildcard...)
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.handler(ctx, event); err != nil {
			logger.Error("Event handler %s failed for %s %s: %v", sub.name, event.Type, event.ID, err)
			errs = append(errs, fmt.Errorf("%s: %w", sub.name, err))
		}
	}
	return errors.Join(errs...)
}
