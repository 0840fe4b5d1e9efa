package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const defaultChannelBufferSize = 64

// Broker delivers every published event to every live subscriber. A
// subscriber that falls a full buffer behind loses its oldest pending event,
// so the most recent event always arrives and Publish never blocks.
type Broker[T any] struct {
	subs     map[chan Event[T]]context.CancelFunc
	mu       sync.RWMutex
	isClosed bool
	dropped  int64
	dropMu   sync.Mutex
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs: make(map[chan Event[T]]context.CancelFunc),
	}
}

// Ensure Broker implements Subscriber and Publisher.
var (
	_ Subscriber[int] = (*Broker[int])(nil)
	_ Publisher[int]  = (*Broker[int])(nil)
)

func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	if b.isClosed {
		b.mu.Unlock()
		return
	}
	b.isClosed = true

	for ch, cancel := range b.subs {
		cancel()
		close(ch)
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	slog.Debug("pubsub broker shut down", "type", fmt.Sprintf("%T", *new(T)))
}

// Subscribe returns a channel that receives events until ctx ends or the
// broker shuts down, after which it is closed.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed {
		closedCh := make(chan Event[T])
		close(closedCh)
		return closedCh
	}

	subCtx, subCancel := context.WithCancel(ctx)
	subscriberChannel := make(chan Event[T], defaultChannelBufferSize)
	b.subs[subscriberChannel] = subCancel

	go func() {
		<-subCtx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[subscriberChannel]; ok {
			close(subscriberChannel)
			delete(b.subs, subscriberChannel)
		}
	}()

	return subscriberChannel
}

func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.isClosed {
		slog.Debug("publish on closed pubsub broker", "type", eventType)
		return
	}

	event := Event[T]{Type: eventType, Payload: payload}

	// Channels are only closed under the write lock, so sends here are safe.
	for ch := range b.subs {
		select {
		case ch <- event:
			continue
		default:
		}
		select {
		case <-ch:
			b.countDrop()
		default:
		}
		select {
		case ch <- event:
		default:
			b.countDrop()
		}
	}
}

func (b *Broker[T]) countDrop() {
	b.dropMu.Lock()
	b.dropped++
	b.dropMu.Unlock()
}

// Dropped returns how many events were discarded for slow subscribers.
func (b *Broker[T]) Dropped() int64 {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	return b.dropped
}

func (b *Broker[T]) GetSubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
