package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/runger/palette/internal/broker"
	"github.com/runger/palette/internal/extension"
)

// SearchRequester is the broker call the engine needs.
type SearchRequester interface {
	SendSearchRequest(ctx context.Context, providerID, commandID, query string) (*broker.Response, error)
}

// Outcome is the result of one search. ActiveProviderID and ActiveCommandID
// are set when the query was routed to a single command by its alias.
type Outcome struct {
	Results          []extension.SearchResult
	ActiveProviderID string
	ActiveCommandID  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRanker replaces the default ranker.
func WithRanker(r *Ranker) Option {
	return func(e *Engine) {
		if r != nil {
			e.ranker = r
		}
	}
}

// WithMaxResults caps the number of results returned. Zero means no cap.
func WithMaxResults(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxResults = n
		}
	}
}

// WithBreaker skips providers whose circuit is open during fan-out.
// Queries pinned to a provider by alias are always sent.
func WithBreaker(b *Breaker) Option {
	return func(e *Engine) {
		e.breaker = b
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine turns a query into a ranked result list.
type Engine struct {
	requester  SearchRequester
	catalog    extension.Catalog
	ranker     *Ranker
	maxResults int
	breaker    *Breaker
	logger     *slog.Logger
}

// NewEngine creates an engine that reads commands from catalog and sends
// searches through requester.
func NewEngine(requester SearchRequester, catalog extension.Catalog, opts ...Option) *Engine {
	e := &Engine{
		requester: requester,
		catalog:   catalog,
		ranker:    NewRanker(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs query. A query starting with a known alias goes to that
// command alone; anything else is sent to every provider with a search
// command. Provider failures contribute nothing; only a failure to read the
// command list is returned as an error, together with an empty outcome.
func (e *Engine) Search(ctx context.Context, query string) (Outcome, error) {
	commands, err := e.catalog.EnabledCommands(ctx)
	if err != nil {
		return Outcome{Results: []extension.SearchResult{}}, fmt.Errorf("load commands: %w", err)
	}

	if parsed, err := Parse(query, commands); err == nil {
		if cmd, ok := extension.FindByAlias(commands, parsed.Alias); ok {
			return e.direct(ctx, cmd, parsed.Term), nil
		}
	}

	results := e.fanOut(ctx, query, commands)
	results = dedupe(results)
	if strings.TrimSpace(query) != "" {
		results = e.ranker.Rank(results, query)
	}
	return Outcome{Results: e.limit(results)}, nil
}

func (e *Engine) direct(ctx context.Context, cmd extension.Command, term string) Outcome {
	if !cmd.IsSearch() {
		return Outcome{Results: []extension.SearchResult{extension.CommandResult(cmd)}}
	}

	results := dedupe(e.dispatch(ctx, cmd.ProviderID, cmd.LocalID(), term))
	if strings.TrimSpace(term) != "" {
		results = e.ranker.Rank(results, term)
	}
	return Outcome{
		Results:          e.limit(results),
		ActiveProviderID: cmd.ProviderID,
		ActiveCommandID:  cmd.LocalID(),
	}
}

// fanOut queries the first search command of every provider concurrently
// and concatenates the answers in provider order.
func (e *Engine) fanOut(ctx context.Context, query string, commands []extension.Command) []extension.SearchResult {
	targets := searchTargets(commands)
	slots := make([][]extension.SearchResult, len(targets))

	var wg sync.WaitGroup
	for i, cmd := range targets {
		if e.breaker != nil && !e.breaker.Allow(cmd.ProviderID) {
			e.logger.Debug("skipping provider with open circuit", "provider", cmd.ProviderID)
			continue
		}
		wg.Add(1)
		go func(i int, cmd extension.Command) {
			defer wg.Done()
			slots[i] = e.dispatch(ctx, cmd.ProviderID, cmd.LocalID(), query)
		}(i, cmd)
	}
	wg.Wait()

	var merged []extension.SearchResult
	for _, s := range slots {
		merged = append(merged, s...)
	}
	if merged == nil {
		merged = []extension.SearchResult{}
	}
	return merged
}

// dispatch sends one search. Any failure yields an empty list.
func (e *Engine) dispatch(ctx context.Context, providerID, commandID, query string) []extension.SearchResult {
	resp, err := e.requester.SendSearchRequest(ctx, providerID, commandID, query)
	if err != nil {
		if ctx.Err() != nil {
			if e.breaker != nil {
				e.breaker.Abandon(providerID)
			}
		} else {
			e.recordFailure(providerID)
		}
		e.logger.Warn("provider search failed",
			"provider", providerID,
			"command", commandID,
			"error", err,
		)
		return []extension.SearchResult{}
	}

	var results []extension.SearchResult
	if err := resp.Decode(&results); err != nil {
		e.recordFailure(providerID)
		e.logger.Warn("provider search returned an error",
			"provider", providerID,
			"command", commandID,
			"error", err,
		)
		return []extension.SearchResult{}
	}
	if e.breaker != nil {
		e.breaker.Success(providerID)
	}
	if results == nil {
		results = []extension.SearchResult{}
	}
	return results
}

func (e *Engine) recordFailure(providerID string) {
	if e.breaker != nil {
		e.breaker.Failure(providerID)
	}
}

func (e *Engine) limit(results []extension.SearchResult) []extension.SearchResult {
	if e.maxResults > 0 && len(results) > e.maxResults {
		return results[:e.maxResults]
	}
	return results
}

// searchTargets returns the first search command of each provider, in the
// order providers first appear.
func searchTargets(commands []extension.Command) []extension.Command {
	seen := make(map[string]bool)
	var out []extension.Command
	for _, c := range commands {
		if !c.IsSearch() || seen[c.ProviderID] {
			continue
		}
		seen[c.ProviderID] = true
		out = append(out, c)
	}
	return out
}

// dedupe keeps the first result for each id.
func dedupe(results []extension.SearchResult) []extension.SearchResult {
	seen := make(map[string]bool, len(results))
	out := make([]extension.SearchResult, 0, len(results))
	for _, r := range results {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}
