package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds how long a request waits for its response.
const DefaultTimeout = 5 * time.Second

// maxIDAttempts bounds correlation id regeneration on collision.
const maxIDAttempts = 16

// NewCorrelationID returns "<unix-millis>-<uuid>".
func NewCorrelationID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.NewString()
}

type outcome struct {
	resp *Response
	err  error
}

// pendingRequest is the waiter for one outstanding correlation id.
type pendingRequest struct {
	done  chan outcome // buffered(1); written exactly once
	timer *time.Timer
}

// RequesterOption configures a Requester.
type RequesterOption func(*Requester)

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) RequesterOption {
	return func(r *Requester) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithIDFunc overrides correlation id generation.
func WithIDFunc(fn func() string) RequesterOption {
	return func(r *Requester) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithLogger sets the requester's logger.
func WithLogger(logger *slog.Logger) RequesterOption {
	return func(r *Requester) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Requester is the UI-side half of the broker. It posts requests and
// blocks each caller until the correlated response, a timeout, context
// cancellation, or Destroy.
type Requester struct {
	transport Transport
	timeout   time.Duration
	newID     func() string
	logger    *slog.Logger

	mu          sync.Mutex
	pending     map[string]*pendingRequest
	destroyed   bool
	unsubscribe func()
}

// NewRequester subscribes a requester to t.
func NewRequester(t Transport, opts ...RequesterOption) *Requester {
	r := &Requester{
		transport: t,
		timeout:   DefaultTimeout,
		newID:     NewCorrelationID,
		logger:    slog.Default(),
		pending:   make(map[string]*pendingRequest),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.unsubscribe = t.Subscribe(r.handle)
	return r
}

// Timeout returns the configured per-request timeout.
func (r *Requester) Timeout() time.Duration {
	return r.timeout
}

// SendSearchRequest asks providerID's commandID to search for query.
func (r *Requester) SendSearchRequest(ctx context.Context, providerID, commandID, query string) (*Response, error) {
	return r.send(ctx, &Message{
		Type: TypeSearch,
		Search: &SearchPayload{
			ProviderID: providerID,
			CommandID:  commandID,
			Query:      query,
		},
	})
}

// SendActionRequest asks providerID's commandID to run actionID. resultID
// and metadata are optional.
func (r *Requester) SendActionRequest(ctx context.Context, providerID, commandID, actionID, resultID string, metadata map[string]any) (*Response, error) {
	return r.send(ctx, &Message{
		Type: TypeExecute,
		Execute: &ExecutePayload{
			ProviderID: providerID,
			CommandID:  commandID,
			ActionID:   actionID,
			ResultID:   resultID,
			Metadata:   metadata,
		},
	})
}

// SendCatalogRequest asks the responder side for its enabled command list.
func (r *Requester) SendCatalogRequest(ctx context.Context) (*Response, error) {
	return r.send(ctx, &Message{Type: TypeCatalog})
}

func (r *Requester) send(ctx context.Context, msg *Message) (*Response, error) {
	id, p, err := r.track()
	if err != nil {
		return nil, err
	}

	msg.ID = id
	msg.Timestamp = time.Now()
	msg.Source = SideRequester

	if err := r.transport.Post(ctx, Envelope{Message: msg}); err != nil {
		r.forget(id)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}

	select {
	case out := <-p.done:
		return out.resp, out.err
	case <-ctx.Done():
		r.forget(id)
		return nil, ctx.Err()
	}
}

// track allocates a correlation id and arms its timer.
func (r *Requester) track() (string, *pendingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return "", nil, ErrBrokerDestroyed
	}

	id := r.newID()
	for attempt := 1; ; attempt++ {
		if _, taken := r.pending[id]; !taken {
			break
		}
		if attempt >= maxIDAttempts {
			return "", nil, fmt.Errorf("%w: correlation id %q already outstanding", ErrTransportFailure, id)
		}
		id = r.newID()
	}

	p := &pendingRequest{done: make(chan outcome, 1)}
	timeout := r.timeout
	p.timer = time.AfterFunc(timeout, func() {
		r.resolve(id, outcome{err: fmt.Errorf("%w after %s", ErrTimeout, timeout)})
	})
	r.pending[id] = p
	return id, p, nil
}

// resolve hands out to the waiter for id. It reports false when id is not
// outstanding (already answered, timed out, or cancelled).
func (r *Requester) resolve(id string, out outcome) bool {
	r.mu.Lock()
	p, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
		p.timer.Stop()
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	p.done <- out
	return true
}

// forget drops id without notifying its waiter.
func (r *Requester) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pending[id]; ok {
		delete(r.pending, id)
		p.timer.Stop()
	}
}

func (r *Requester) handle(env Envelope) {
	resp := env.Response
	if resp == nil || resp.Source != SideResponder {
		return
	}
	if !r.resolve(resp.ID, outcome{resp: resp}) {
		r.logger.Debug("dropping response for unknown request", "id", resp.ID)
	}
}

// Pending returns the number of outstanding requests.
func (r *Requester) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Destroy fails every outstanding request with ErrBrokerDestroyed, stops
// their timers and detaches from the transport. Later sends fail with
// ErrBrokerDestroyed. It is safe to call more than once.
func (r *Requester) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	pending := r.pending
	r.pending = make(map[string]*pendingRequest)
	r.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		p.done <- outcome{err: ErrBrokerDestroyed}
	}
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.logger.Debug("requester destroyed", "rejected", len(pending))
}
