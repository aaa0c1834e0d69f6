// Package events provides the in-process event bus the outreach modules use
// to announce dispatch outcomes without referencing their subscribers.
// This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event published on the bus.
type Event interface {
	// EventName returns a unique identifier for the event type.
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent carries the occurrence timestamp shared by all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent creates a new base event stamped with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler processes events of a specific type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow ordinary functions to be used as handlers.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to subscribed handlers. Publication is
// fire-and-forget: a dispatch outcome must never depend on what its
// subscribers (alerting, audit) do with it.
type Bus interface {
	// Publish sends an event to all handlers registered for its name.
	// Handlers run asynchronously; their errors are logged, not returned.
	Publish(ctx context.Context, event Event)

	// Subscribe registers a handler for a specific event name, matching
	// the value returned by Event.EventName().
	Subscribe(eventName string, handler Handler)
}
