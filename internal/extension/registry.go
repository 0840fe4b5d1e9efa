package extension

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/runger/palette/internal/broker"
)

// ErrAlreadyRegistered is returned when a provider id is registered twice.
var ErrAlreadyRegistered = errors.New("provider already registered")

// Registry tracks registered providers and wires each one into a broker
// responder so requests can reach it by provider id.
type Registry struct {
	responder *broker.Responder
	settings  Settings
	logger    *slog.Logger

	mu        sync.RWMutex
	providers map[string]Provider
	order     []string // registration order
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the registry's logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a registry bound to responder. A nil settings enables
// every command. The registry answers the responder's catalog requests.
func NewRegistry(responder *broker.Responder, settings Settings, opts ...RegistryOption) *Registry {
	r := &Registry{
		responder: responder,
		settings:  settings,
		logger:    slog.Default(),
		providers: make(map[string]Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	if responder != nil {
		responder.SetCatalog(r.catalog)
	}
	return r
}

// Register initializes p and makes it reachable through the broker. Nothing
// is stored if initialization fails.
func (r *Registry) Register(ctx context.Context, p Provider) error {
	id := p.ID()

	r.mu.RLock()
	_, exists := r.providers[id]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}

	if err := p.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize provider %s: %w", id, err)
	}

	r.mu.Lock()
	if _, exists := r.providers[id]; exists {
		r.mu.Unlock()
		if err := p.Destroy(ctx); err != nil {
			r.logger.Warn("failed to destroy duplicate provider", "provider", id, "error", err)
		}
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}
	r.providers[id] = p
	r.order = append(r.order, id)
	r.mu.Unlock()

	if r.responder != nil {
		r.responder.RegisterProvider(id, &providerHandler{provider: p})
	}

	r.logger.Debug("provider registered", "provider", id, "commands", len(p.Commands()))
	return nil
}

// Unregister destroys and removes the provider. Unknown ids are a no-op.
// A Destroy failure is logged and removal proceeds.
func (r *Registry) Unregister(ctx context.Context, id string) {
	r.mu.Lock()
	p, ok := r.providers[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.providers, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if r.responder != nil {
		r.responder.UnregisterProvider(id)
	}
	if err := p.Destroy(ctx); err != nil {
		r.logger.Warn("provider destroy failed", "provider", id, "error", err)
	}
	r.logger.Debug("provider unregistered", "provider", id)
}

// DestroyAll unregisters every provider.
func (r *Registry) DestroyAll(ctx context.Context) {
	for _, id := range r.providerIDs() {
		r.Unregister(ctx, id)
	}
}

// Provider returns the provider registered under id.
func (r *Registry) Provider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Providers returns the registered providers in registration order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

func (r *Registry) providerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// AllCommands returns every command of every provider with fully qualified
// ids, in registration order and then declaration order.
func (r *Registry) AllCommands() []Command {
	var out []Command
	for _, p := range r.Providers() {
		for _, c := range p.Commands() {
			out = append(out, qualify(p, c))
		}
	}
	return out
}

func qualify(p Provider, c Command) Command {
	c.ProviderID = p.ID()
	c.ID = QualifiedID(p.ID(), c.ID)
	if c.Icon == "" {
		c.Icon = p.Icon()
	}
	c.Aliases = append([]string(nil), c.Aliases...)
	return c
}

// EnabledCommands returns AllCommands filtered through the settings. A
// failed lookup counts as enabled.
func (r *Registry) EnabledCommands(ctx context.Context) ([]Command, error) {
	all := r.AllCommands()
	out := make([]Command, 0, len(all))
	for _, c := range all {
		if r.settings != nil {
			enabled, err := r.settings.IsEnabled(ctx, c.ID)
			if err != nil {
				r.logger.Warn("settings lookup failed, treating command as enabled",
					"command", c.ID,
					"error", err,
				)
				enabled = true
			}
			if !enabled {
				continue
			}
		}
		c.Enabled = true
		out = append(out, c)
	}
	return out, nil
}

// FindCommandByAlias matches alias case-insensitively against every command.
func (r *Registry) FindCommandByAlias(alias string) (Command, bool) {
	return FindByAlias(r.AllCommands(), alias)
}

func (r *Registry) catalog(ctx context.Context) (json.RawMessage, error) {
	cmds, err := r.EnabledCommands(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cmds)
}

// FindByAlias returns the first command in commands with a case-insensitive
// exact alias match.
func FindByAlias(commands []Command, alias string) (Command, bool) {
	if alias == "" {
		return Command{}, false
	}
	for _, c := range commands {
		for _, a := range c.Aliases {
			if strings.EqualFold(a, alias) {
				return c, true
			}
		}
	}
	return Command{}, false
}

// Ensure Registry implements Catalog.
var _ Catalog = (*Registry)(nil)
