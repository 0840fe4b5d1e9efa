package broker

import (
	"context"
	"errors"
	"sync"
)

// Transport is a one-way channel: envelopes are posted without any reply
// and every subscriber sees every envelope. Matching replies to requests is
// the broker's job, not the transport's.
type Transport interface {
	// Post sends an envelope. It must not block waiting for a reply.
	Post(ctx context.Context, env Envelope) error

	// Subscribe registers a handler for incoming envelopes and returns a
	// function that removes it.
	Subscribe(handler func(Envelope)) (unsubscribe func())
}

// ErrBusClosed is returned by Bus.Post after Close.
var ErrBusClosed = errors.New("bus closed")

// Bus is an in-process Transport. Envelopes are delivered asynchronously to
// every subscriber, including subscribers of the posting side; the broker
// filters by Source.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]func(Envelope)
	nextID   int
	closed   bool
	wg       sync.WaitGroup
}

// NewBus creates an empty in-process bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]func(Envelope))}
}

// Ensure Bus implements Transport.
var _ Transport = (*Bus)(nil)

// Post delivers env to all current subscribers on their own goroutines.
func (b *Bus) Post(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	for _, h := range b.handlers {
		b.wg.Add(1)
		go func(h func(Envelope)) {
			defer b.wg.Done()
			h(env)
		}(h)
	}
	return nil
}

// Subscribe registers handler and returns its unsubscribe function.
func (b *Bus) Subscribe(handler func(Envelope)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Close rejects further posts and waits for in-flight deliveries.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.handlers = make(map[int]func(Envelope))
	b.mu.Unlock()
	b.wg.Wait()
}

// SubscriberCount returns the number of registered handlers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
