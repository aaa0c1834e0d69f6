package events

import (
	"context"
	"sync"

	"outreach_backend/platform/logger"
)

// InMemoryBus is a simple in-process implementation of Bus.
// Asynchronous handlers run on their own goroutines; handler errors are
// logged, never propagated to the publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	for _, h := range handlers {
		handler := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := handler.Handle(context.WithoutCancel(ctx), event); err != nil && b.log != nil {
				b.log.Warn("event handler failed", "event", event.EventName(), "error", err)
			}
		}()
	}
}

// Wait blocks until all asynchronous handlers have completed.
// Call this during graceful shutdown.
func (b *InMemoryBus) Wait() {
	b.wg.Wait()
}
