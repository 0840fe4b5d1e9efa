package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test handlers ---

type echoHandler struct {
	delay   time.Duration
	err     error
	panics  bool
	actions chan ActionRequest
}

func (h *echoHandler) HandleSearch(ctx context.Context, commandID, query string) (json.RawMessage, error) {
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if h.panics {
		panic("boom")
	}
	if h.err != nil {
		return nil, h.err
	}
	return json.Marshal(map[string]string{"command": commandID, "query": query})
}

func (h *echoHandler) HandleAction(_ context.Context, commandID string, req ActionRequest) (json.RawMessage, error) {
	if h.actions != nil {
		h.actions <- req
	}
	if h.err != nil {
		return nil, h.err
	}
	return json.Marshal(map[string]string{"command": commandID, "action": req.ActionID})
}

type failingTransport struct{}

func (failingTransport) Post(context.Context, Envelope) error { return errors.New("port disconnected") }
func (failingTransport) Subscribe(func(Envelope)) func()      { return func() {} }

// silentTransport accepts posts and never answers.
type silentTransport struct{ posted atomic.Int32 }

func (t *silentTransport) Post(context.Context, Envelope) error {
	t.posted.Add(1)
	return nil
}
func (t *silentTransport) Subscribe(func(Envelope)) func() { return func() {} }

func newPair(t *testing.T, opts ...RequesterOption) (*Requester, *Responder) {
	t.Helper()
	bus := NewBus()
	req := NewRequester(bus, opts...)
	resp := NewResponder(bus)
	t.Cleanup(func() {
		req.Destroy()
		resp.Close()
		bus.Close()
	})
	return req, resp
}

// --- Round trips ---

func TestSearchRequest_RoundTrip(t *testing.T) {
	req, resp := newPair(t)
	resp.RegisterProvider("tabs", &echoHandler{})

	r, err := req.SendSearchRequest(context.Background(), "tabs", "search", "example")
	require.NoError(t, err)
	require.True(t, r.Result.Success)
	assert.Equal(t, SideResponder, r.Source)

	var got map[string]string
	require.NoError(t, r.Decode(&got))
	assert.Equal(t, "search", got["command"])
	assert.Equal(t, "example", got["query"])
	assert.Equal(t, 0, req.Pending())
}

func TestActionRequest_PassesResultAndMetadata(t *testing.T) {
	req, resp := newPair(t)
	h := &echoHandler{actions: make(chan ActionRequest, 1)}
	resp.RegisterProvider("bookmarks", h)

	r, err := req.SendActionRequest(context.Background(), "bookmarks", "search", "open", "bookmarks-7",
		map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	require.NoError(t, r.Err())

	got := <-h.actions
	assert.Equal(t, "open", got.ActionID)
	assert.Equal(t, "bookmarks-7", got.ResultID)
	assert.Equal(t, "https://example.com", got.Metadata["url"])
}

func TestUnknownProvider_ReturnsNotFound(t *testing.T) {
	req, _ := newPair(t)

	r, err := req.SendSearchRequest(context.Background(), "missing", "search", "x")
	require.NoError(t, err)
	assert.False(t, r.Result.Success)
	assert.Equal(t, CodeProviderNotFound, r.Result.Code)
	assert.ErrorIs(t, r.Err(), ErrProviderNotFound)
}

func TestHandlerError_BecomesFailedResult(t *testing.T) {
	req, resp := newPair(t)
	resp.RegisterProvider("history", &echoHandler{err: errors.New("database locked")})

	r, err := req.SendSearchRequest(context.Background(), "history", "search", "x")
	require.NoError(t, err)
	assert.False(t, r.Result.Success)
	assert.Equal(t, "database locked", r.Result.Error)
	assert.ErrorIs(t, r.Err(), ErrProviderExecution)
}

func TestHandlerPanic_DoesNotEscape(t *testing.T) {
	req, resp := newPair(t)
	resp.RegisterProvider("tabs", &echoHandler{panics: true})

	r, err := req.SendSearchRequest(context.Background(), "tabs", "search", "x")
	require.NoError(t, err)
	assert.False(t, r.Result.Success)
	assert.Contains(t, r.Result.Error, "boom")

	// The responder keeps serving after a panic.
	resp.RegisterProvider("tabs", &echoHandler{})
	r, err = req.SendSearchRequest(context.Background(), "tabs", "search", "x")
	require.NoError(t, err)
	assert.True(t, r.Result.Success)
}

func TestUnregisterProvider(t *testing.T) {
	req, resp := newPair(t)
	resp.RegisterProvider("tabs", &echoHandler{})
	resp.UnregisterProvider("tabs")
	assert.False(t, resp.HasProvider("tabs"))

	r, err := req.SendSearchRequest(context.Background(), "tabs", "search", "x")
	require.NoError(t, err)
	assert.ErrorIs(t, r.Err(), ErrProviderNotFound)
}

func TestCatalogRequest(t *testing.T) {
	req, resp := newPair(t)

	r, err := req.SendCatalogRequest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CodeCatalogUnavailable, r.Result.Code)

	resp.SetCatalog(func(context.Context) (json.RawMessage, error) {
		return json.RawMessage(`["tabs.search"]`), nil
	})
	r, err = req.SendCatalogRequest(context.Background())
	require.NoError(t, err)
	var ids []string
	require.NoError(t, r.Decode(&ids))
	assert.Equal(t, []string{"tabs.search"}, ids)
}

// --- Failure modes ---

func TestTimeout_RejectsAfterTimeoutAndNotBefore(t *testing.T) {
	const timeout = 80 * time.Millisecond
	tr := &silentTransport{}
	req := NewRequester(tr, WithTimeout(timeout))
	defer req.Destroy()

	start := time.Now()
	_, err := req.SendSearchRequest(context.Background(), "tabs", "search", "x")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Equal(t, 0, req.Pending())
	assert.Equal(t, int32(1), tr.posted.Load())
}

func TestSlowHandler_TimesOut(t *testing.T) {
	req, resp := newPair(t, WithTimeout(30*time.Millisecond))
	resp.RegisterProvider("slow", &echoHandler{delay: 300 * time.Millisecond})

	_, err := req.SendSearchRequest(context.Background(), "slow", "search", "x")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestTransportFailure_FailsImmediately(t *testing.T) {
	req := NewRequester(failingTransport{}, WithTimeout(time.Hour))
	defer req.Destroy()

	start := time.Now()
	_, err := req.SendSearchRequest(context.Background(), "tabs", "search", "x")
	require.ErrorIs(t, err, ErrTransportFailure)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, req.Pending())
}

func TestContextCancel_RemovesPending(t *testing.T) {
	req := NewRequester(&silentTransport{}, WithTimeout(time.Hour))
	defer req.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := req.SendSearchRequest(ctx, "tabs", "search", "x")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, req.Pending())
}

func TestDestroy_RejectsAllPending(t *testing.T) {
	const timeout = 300 * time.Millisecond
	req := NewRequester(&silentTransport{}, WithTimeout(timeout))

	const n = 5
	errs := make(chan error, n)
	for range n {
		go func() {
			_, err := req.SendSearchRequest(context.Background(), "tabs", "search", "x")
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return req.Pending() == n }, time.Second, time.Millisecond)

	req.Destroy()
	for range n {
		assert.ErrorIs(t, <-errs, ErrBrokerDestroyed)
	}

	// No timer fires afterwards: nothing else arrives once the old deadline passes.
	time.Sleep(2 * timeout)
	assert.Equal(t, 0, req.Pending())
	select {
	case err := <-errs:
		t.Fatalf("unexpected late outcome: %v", err)
	default:
	}

	_, err := req.SendSearchRequest(context.Background(), "tabs", "search", "x")
	assert.ErrorIs(t, err, ErrBrokerDestroyed)
	req.Destroy()
}

func TestUnknownResponse_IsDropped(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	req := NewRequester(bus)
	defer req.Destroy()

	err := bus.Post(context.Background(), Envelope{Response: &Response{
		ID:     "nobody-asked",
		Source: SideResponder,
		Result: Result{Success: true},
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, req.Pending())
}

func TestResponse_DeliveredToOneWaiter(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ids := make(chan string, 1)
	req := NewRequester(bus, WithTimeout(time.Second), WithIDFunc(func() string {
		id := "fixed-id"
		select {
		case ids <- id:
		default:
		}
		return id
	}))
	defer req.Destroy()

	done := make(chan *Response, 1)
	go func() {
		r, _ := req.SendSearchRequest(context.Background(), "tabs", "search", "x")
		done <- r
	}()
	id := <-ids
	require.Eventually(t, func() bool { return req.Pending() == 1 }, time.Second, time.Millisecond)

	// The same response posted twice resolves the waiter once.
	for range 2 {
		require.NoError(t, bus.Post(context.Background(), Envelope{Response: &Response{
			ID: id, Source: SideResponder, Result: Result{Success: true},
		}}))
	}
	r := <-done
	require.NotNil(t, r)
	assert.Equal(t, id, r.ID)
	assert.Equal(t, 0, req.Pending())
}

func TestCorrelationID_NotReusedWhileOutstanding(t *testing.T) {
	var calls atomic.Int32
	req := NewRequester(&silentTransport{}, WithTimeout(time.Hour), WithIDFunc(func() string {
		n := calls.Add(1)
		// The first two calls collide; the third is fresh.
		if n <= 2 {
			return "dup"
		}
		return fmt.Sprintf("id-%d", n)
	}))
	defer req.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = req.SendSearchRequest(ctx, "tabs", "search", "a")
	}()
	require.Eventually(t, func() bool { return req.Pending() == 1 }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = req.SendSearchRequest(ctx, "tabs", "search", "b")
	}()
	require.Eventually(t, func() bool { return req.Pending() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())

	cancel()
	wg.Wait()
}

func TestNewCorrelationID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := NewCorrelationID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestResponderIgnoresOwnResponses(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	resp := NewResponder(bus)
	defer resp.Close()

	responses := make(chan *Response, 4)
	unsub := bus.Subscribe(func(env Envelope) {
		if env.Response != nil {
			responses <- env.Response
		}
	})
	defer unsub()

	// A message tagged as coming from the responder side must not be served.
	require.NoError(t, bus.Post(context.Background(), Envelope{Message: &Message{
		ID: "x", Source: SideResponder, Type: TypeSearch,
		Search: &SearchPayload{ProviderID: "tabs"},
	}}))

	time.Sleep(20 * time.Millisecond)
	select {
	case r := <-responses:
		t.Fatalf("responder replied to a responder-tagged message: %+v", r)
	default:
	}
}
