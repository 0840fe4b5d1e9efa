package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/runger/palette/internal/broker"
	"github.com/runger/palette/internal/config"
	"github.com/runger/palette/internal/extension"
	"github.com/runger/palette/internal/search"
	"github.com/runger/palette/internal/store"
	"github.com/runger/palette/internal/transport"
)

// Session is the UI side of a palette: a requester, the search engine and
// the application state store, wired to a host in this process or another.
type Session struct {
	Requester *broker.Requester
	Catalog   extension.Catalog
	Engine    *search.Engine
	Store     *store.Store

	close func() error
}

func newSession(t broker.Transport, catalog extension.Catalog, settings *config.Config, logger *slog.Logger) *Session {
	requester := broker.NewRequester(t,
		broker.WithTimeout(settings.BrokerTimeout()),
		broker.WithLogger(logger),
	)
	if catalog == nil {
		catalog = extension.NewRemoteCatalog(requester)
	}
	engine := search.NewEngine(requester, catalog,
		search.WithRanker(&search.Ranker{
			Threshold: settings.Search.Threshold,
			Distance:  settings.Search.Distance,
		}),
		search.WithMaxResults(settings.Search.MaxResults),
		search.WithLogger(logger),
		search.WithBreaker(search.NewBreaker(&search.BreakerConfig{Logger: logger})),
	)
	st := store.New(engine, requester, catalog,
		store.WithDebounce(settings.Debounce()),
		store.WithInitialCommand(settings.Search.InitialProvider, settings.Search.InitialCommand),
		store.WithLogger(logger),
	)
	return &Session{
		Requester: requester,
		Catalog:   catalog,
		Engine:    engine,
		Store:     st,
	}
}

// NewLocalSession attaches a session to h over its in-process transport.
// The registry serves as the catalog directly.
func NewLocalSession(h *Host, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := newSession(h.Transport(), h.Registry(), h.Settings(), logger)
	s.close = func() error { return nil }
	return s
}

// DialSession connects a session to a host process listening on
// settings.Host.SocketPath. The command list is fetched over the bridge.
func DialSession(ctx context.Context, settings *config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := transport.Dial(ctx, settings.Host.SocketPath, transport.WithClientLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to reach host: %w", err)
	}
	s := newSession(client, nil, settings, logger)
	s.close = client.Close
	return s, nil
}

// Close stops the store, rejects outstanding requests and releases the
// transport.
func (s *Session) Close() error {
	s.Store.Shutdown()
	s.Requester.Destroy()
	if s.close != nil {
		return s.close()
	}
	return nil
}
