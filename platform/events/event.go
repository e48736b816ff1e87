// Package events carries domain events between modules in-process.
// Publishers and subscribers share only the event types and the bus, never
// each other's services.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName identifies the event type; subscribers key on it.
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent supplies the occurrence timestamp shared by all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events. A handler registered under an event name receives
// every published event carrying that name.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus connects publishers to subscribers.
type Bus interface {
	// Publish fans the event out asynchronously. Handler errors are logged
	// by the bus and never reach the publisher.
	Publish(ctx context.Context, event Event)

	// PublishSync runs handlers in registration order and returns the first
	// error.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the given event name.
	Subscribe(eventName string, handler Handler)
}
