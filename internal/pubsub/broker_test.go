package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerSubscribe(t *testing.T) {
	t.Parallel()

	t.Run("with cancellable context", func(t *testing.T) {
		t.Parallel()
		broker := NewBroker[string]()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch := broker.Subscribe(ctx)
		assert.NotNil(t, ch)
		assert.Equal(t, 1, broker.GetSubscriberCount())

		cancel()
		assert.Eventually(t, func() bool { return broker.GetSubscriberCount() == 0 },
			time.Second, time.Millisecond)

		_, ok := <-ch
		assert.False(t, ok, "channel closes when the context ends")
	})

	t.Run("with background context", func(t *testing.T) {
		t.Parallel()
		broker := NewBroker[string]()

		ch := broker.Subscribe(context.Background())
		assert.NotNil(t, ch)
		assert.Equal(t, 1, broker.GetSubscriberCount())

		broker.Shutdown()
		assert.Equal(t, 0, broker.GetSubscriberCount())
	})
}

func TestBrokerPublish(t *testing.T) {
	t.Parallel()
	broker := NewBroker[string]()

	ch := broker.Subscribe(t.Context())
	broker.Publish(EventTypeUpdated, "query changed")

	select {
	case event := <-ch:
		assert.Equal(t, EventTypeUpdated, event.Type)
		assert.Equal(t, "query changed", event.Payload)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestBrokerShutdown(t *testing.T) {
	t.Parallel()
	broker := NewBroker[string]()

	ch1 := broker.Subscribe(context.Background())
	ch2 := broker.Subscribe(context.Background())
	assert.Equal(t, 2, broker.GetSubscriberCount())

	broker.Shutdown()

	_, ok1 := <-ch1
	_, ok2 := <-ch2
	assert.False(t, ok1)
	assert.False(t, ok2)

	// Calling Shutdown again and publishing afterwards is harmless.
	broker.Shutdown()
	broker.Publish(EventTypeUpdated, "late")

	ch3 := broker.Subscribe(context.Background())
	_, ok3 := <-ch3
	assert.False(t, ok3, "subscribing after shutdown returns a closed channel")
}

func TestBrokerSlowSubscriberKeepsLatest(t *testing.T) {
	t.Parallel()
	broker := NewBroker[int]()
	ch := broker.Subscribe(t.Context())

	const total = defaultChannelBufferSize + 10
	for i := range total {
		broker.Publish(EventTypeUpdated, i)
	}

	var last int
	for range defaultChannelBufferSize {
		ev := <-ch
		assert.Greater(t, ev.Payload, last-1)
		last = ev.Payload
	}
	assert.Equal(t, total-1, last)
	assert.Equal(t, int64(10), broker.Dropped())
}

func TestBrokerConcurrentPublishAndCancel(t *testing.T) {
	t.Parallel()
	broker := NewBroker[int]()

	var wg sync.WaitGroup
	for range 10 {
		ctx, cancel := context.WithCancel(context.Background())
		ch := broker.Subscribe(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
		go func() {
			time.Sleep(time.Millisecond)
			cancel()
		}()
	}

	for i := range 1000 {
		broker.Publish(EventTypeUpdated, i)
	}
	broker.Shutdown()
	wg.Wait()
	require.Equal(t, 0, broker.GetSubscriberCount())
}
