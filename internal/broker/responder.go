package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ActionRequest is the provider-facing part of an ExecutePayload.
type ActionRequest struct {
	ActionID string
	ResultID string
	Metadata map[string]any
}

// Handler serves the requests addressed to one provider. Returned data is
// sent back verbatim as Result.Data; a returned error becomes a failed
// Result.
type Handler interface {
	HandleSearch(ctx context.Context, commandID, query string) (json.RawMessage, error)
	HandleAction(ctx context.Context, commandID string, req ActionRequest) (json.RawMessage, error)
}

// CatalogFunc answers catalog requests.
type CatalogFunc func(ctx context.Context) (json.RawMessage, error)

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithHandlerTimeout bounds each handler invocation.
func WithHandlerTimeout(d time.Duration) ResponderOption {
	return func(r *Responder) {
		if d > 0 {
			r.handlerTimeout = d
		}
	}
}

// WithResponderLogger sets the responder's logger.
func WithResponderLogger(logger *slog.Logger) ResponderOption {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Responder is the host-side half of the broker. It routes incoming
// messages to registered provider handlers and posts their results back
// under the same correlation id.
type Responder struct {
	transport      Transport
	handlerTimeout time.Duration
	logger         *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
	catalog  CatalogFunc
	closed   bool

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
	closeOnce   sync.Once
}

// NewResponder subscribes a responder to t.
func NewResponder(t Transport, opts ...ResponderOption) *Responder {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Responder{
		transport:      t,
		handlerTimeout: DefaultTimeout,
		logger:         slog.Default(),
		handlers:       make(map[string]Handler),
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.unsubscribe = t.Subscribe(r.handle)
	return r
}

// RegisterProvider routes messages for id to h.
func (r *Responder) RegisterProvider(id string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = h
}

// UnregisterProvider removes id. Later messages for it get a not-found response.
func (r *Responder) UnregisterProvider(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, id)
}

// HasProvider reports whether id is registered.
func (r *Responder) HasProvider(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[id]
	return ok
}

// SetCatalog installs the catalog request handler.
func (r *Responder) SetCatalog(fn CatalogFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog = fn
}

func (r *Responder) handle(env Envelope) {
	msg := env.Message
	if msg == nil || msg.Source != SideRequester {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	r.wg.Add(1)
	go r.serve(msg)
}

func (r *Responder) serve(msg *Message) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(r.ctx, r.handlerTimeout)
	result := r.dispatch(ctx, msg)
	cancel()

	resp := &Response{
		ID:        msg.ID,
		Timestamp: time.Now(),
		Source:    SideResponder,
		Result:    result,
	}
	if err := r.transport.Post(r.ctx, Envelope{Response: resp}); err != nil {
		r.logger.Warn("failed to post response",
			"id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
	}
}

// dispatch runs the handler for msg. Handler errors and panics become failed
// results; nothing escapes to the transport.
func (r *Responder) dispatch(ctx context.Context, msg *Message) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("provider handler panicked",
				"provider", msg.ProviderID(),
				"type", msg.Type,
				"panic", rec,
			)
			result = failure(CodeProviderExecution, fmt.Sprintf("provider panic: %v", rec))
		}
	}()

	if msg.Type == TypeCatalog {
		r.mu.RLock()
		catalog := r.catalog
		r.mu.RUnlock()
		if catalog == nil {
			return failure(CodeCatalogUnavailable, "no catalog registered")
		}
		return toResult(catalog(ctx))
	}

	providerID := msg.ProviderID()
	r.mu.RLock()
	h, ok := r.handlers[providerID]
	r.mu.RUnlock()
	if !ok {
		return failure(CodeProviderNotFound, fmt.Sprintf("provider %q not found", providerID))
	}

	switch msg.Type {
	case TypeSearch:
		if msg.Search == nil {
			return failure(CodeProviderExecution, "missing search payload")
		}
		return toResult(h.HandleSearch(ctx, msg.Search.CommandID, msg.Search.Query))
	case TypeExecute:
		if msg.Execute == nil {
			return failure(CodeProviderExecution, "missing execute payload")
		}
		return toResult(h.HandleAction(ctx, msg.Execute.CommandID, ActionRequest{
			ActionID: msg.Execute.ActionID,
			ResultID: msg.Execute.ResultID,
			Metadata: msg.Execute.Metadata,
		}))
	default:
		return failure(CodeProviderExecution, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func toResult(data json.RawMessage, err error) Result {
	if err != nil {
		return failure(CodeProviderExecution, err.Error())
	}
	return Result{Success: true, Data: data}
}

func failure(code, msg string) Result {
	return Result{Success: false, Error: msg, Code: code}
}

// Close detaches from the transport, cancels running handlers and waits for
// them to finish.
func (r *Responder) Close() {
	r.closeOnce.Do(func() {
		if r.unsubscribe != nil {
			r.unsubscribe()
		}
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		r.cancel()
		r.wg.Wait()
	})
}
