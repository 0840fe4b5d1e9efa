// Package pubsub fans typed events out to context-scoped subscribers.
package pubsub

import "context"

type EventType string

const (
	EventTypeUpdated EventType = "updated"
	EventTypeReset   EventType = "reset"
)

type Event[T any] struct {
	Type    EventType
	Payload T
}

type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
