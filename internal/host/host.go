// Package host wires the provider side of the palette: the registry, the
// broker responder, the built-in providers and their storage. A host runs
// either inside the UI process on an in-memory bus or as its own process
// behind the gRPC bridge.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/runger/palette/internal/broker"
	"github.com/runger/palette/internal/config"
	"github.com/runger/palette/internal/extension"
	"github.com/runger/palette/internal/logging"
	"github.com/runger/palette/internal/providers"
	"github.com/runger/palette/internal/storage"
)

// Version is set at build time
var Version = "dev"

// Config contains the options for a host.
type Config struct {
	// Settings is the loaded configuration (optional, defaults if nil)
	Settings *config.Config

	// Paths resolves data locations left empty in Settings (optional)
	Paths *config.Paths

	// Logger is the structured logger (optional, uses default if nil)
	Logger *slog.Logger

	// Opener performs open/copy effects (optional, prints to stdout).
	// host.open_command and host.copy_command take precedence over it.
	Opener providers.Opener

	// Transport carries broker traffic (optional, an in-memory bus if nil)
	Transport broker.Transport

	// Store is the storage backend (optional, opened from Settings if nil)
	Store *storage.SQLiteStore
}

// Host owns the provider side of one palette.
type Host struct {
	settings  *config.Config
	logger    *slog.Logger
	transport broker.Transport
	bus       *broker.Bus
	store     *storage.SQLiteStore
	ownsStore bool
	responder *broker.Responder
	registry  *extension.Registry

	shutdownOnce sync.Once
}

// New opens storage, creates the registry and registers the built-in
// providers. A provider that fails to initialize is logged and skipped.
func New(ctx context.Context, cfg *Config) (*Host, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	settings := cfg.Settings
	if settings == nil {
		settings = config.DefaultConfig()
	}
	paths := cfg.Paths
	if paths == nil {
		paths = config.DefaultPaths()
	}
	paths.Resolve(settings)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opener := cfg.Opener
	if opener == nil {
		opener = providers.WriterOpener{W: os.Stdout}
	}
	if settings.Host.OpenCommand != "" || settings.Host.CopyCommand != "" {
		co, err := providers.NewCommandOpener(settings.Host.OpenCommand, settings.Host.CopyCommand, opener)
		if err != nil {
			return nil, fmt.Errorf("invalid host command: %w", err)
		}
		opener = co
	}

	h := &Host{
		settings:  settings,
		logger:    logger,
		transport: cfg.Transport,
		store:     cfg.Store,
	}

	if h.transport == nil {
		h.bus = broker.NewBus()
		h.transport = h.bus
	}

	if h.store == nil {
		store, err := storage.NewSQLiteStore(settings.Data.DatabasePath, storage.WithLogger(logger))
		if err != nil {
			h.closeBus()
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		h.store = store
		h.ownsStore = true
	}

	h.responder = broker.NewResponder(h.transport,
		broker.WithHandlerTimeout(settings.HandlerTimeout()),
		broker.WithResponderLogger(logger),
	)
	h.registry = extension.NewRegistry(h.responder, h.store,
		extension.WithRegistryLogger(logger),
	)

	builtins := []extension.Provider{
		providers.NewCore(h.registry, h.store),
		providers.NewTabs(providers.NewCollection(settings.Data.TabsFile), opener),
		providers.NewBookmarks(providers.NewCollection(settings.Data.BookmarksFile), h.store, opener),
		providers.NewHistory(h.store, opener),
		providers.NewTopSites(h.store, opener),
	}
	for _, p := range builtins {
		if err := h.registry.Register(ctx, p); err != nil {
			logging.LogProviderFailed(logger, p.ID(), err)
		}
	}

	return h, nil
}

// Transport returns the transport the responder listens on.
func (h *Host) Transport() broker.Transport {
	return h.transport
}

// Registry returns the provider registry.
func (h *Host) Registry() *extension.Registry {
	return h.registry
}

// Store returns the host's storage.
func (h *Host) Store() *storage.SQLiteStore {
	return h.store
}

// Settings returns the resolved configuration.
func (h *Host) Settings() *config.Config {
	return h.settings
}

// ProviderIDs lists the registered providers.
func (h *Host) ProviderIDs() []string {
	var ids []string
	for _, p := range h.registry.Providers() {
		ids = append(ids, p.ID())
	}
	return ids
}

// SetCommandEnabled persists the enablement of a fully qualified command.
func (h *Host) SetCommandEnabled(ctx context.Context, commandID string, enabled bool) error {
	for _, c := range h.registry.AllCommands() {
		if c.ID == commandID {
			return h.store.SetCommandEnabled(ctx, commandID, enabled)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, commandID)
}

// ErrUnknownCommand is returned when enabling or disabling a command no
// provider declares.
var ErrUnknownCommand = errors.New("unknown command")

// Shutdown destroys every provider, stops answering requests and closes
// storage. It is safe to call more than once.
func (h *Host) Shutdown(ctx context.Context) error {
	var err error
	h.shutdownOnce.Do(func() {
		h.registry.DestroyAll(ctx)
		h.responder.Close()
		h.closeBus()
		if h.ownsStore {
			err = h.store.Close()
		}
	})
	return err
}

func (h *Host) closeBus() {
	if h.bus != nil {
		h.bus.Close()
	}
}
