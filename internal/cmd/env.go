package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/runger/palette/internal/config"
	"github.com/runger/palette/internal/host"
	"github.com/runger/palette/internal/logging"
	"github.com/runger/palette/internal/providers"
)

// configPath returns --config or the default config file.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPaths().ConfigFile()
}

// loadSettings loads the config file and fills default data locations.
func loadSettings() (*config.Config, *config.Paths, error) {
	paths := config.DefaultPaths()
	cfg, err := config.LoadFromFile(configPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debugMode {
		cfg.Host.LogLevel = "debug"
	}
	paths.Resolve(cfg)
	return cfg, paths, nil
}

// openLogger opens the log file named by cfg, or logPath when unset.
func openLogger(cfg *config.Config, logPath string) (*slog.Logger, io.Closer, error) {
	if cfg.Host.LogFile != "" {
		logPath = cfg.Host.LogFile
	}
	f, err := logging.OpenFile(logPath)
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.Host.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.New(&logging.Config{Output: f, Level: level}), f, nil
}

// palette is one CLI invocation's view of the system: a session and, in
// local mode, the host serving it.
type palette struct {
	settings *config.Config
	paths    *config.Paths
	logger   *slog.Logger
	host     *host.Host
	session  *host.Session
	logFile  io.Closer
}

// newPalette loads settings and opens the UI log.
func newPalette() (*palette, error) {
	settings, paths, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger, logFile, err := openLogger(settings, paths.LogFile())
	if err != nil {
		return nil, err
	}
	return &palette{settings: settings, paths: paths, logger: logger, logFile: logFile}, nil
}

// openHost starts an in-process host without a UI session. Effects print
// to out.
func openHost(ctx context.Context, out io.Writer) (*palette, error) {
	p, err := newPalette()
	if err != nil {
		return nil, err
	}
	if err := p.startHost(ctx, out); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// openPalette attaches a session to a running host with --remote, or to a
// host started in this process.
func openPalette(ctx context.Context, out io.Writer) (*palette, error) {
	p, err := newPalette()
	if err != nil {
		return nil, err
	}

	if remoteMode {
		s, err := host.DialSession(ctx, p.settings, p.logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.session = s
		return p, nil
	}

	if err := p.startHost(ctx, out); err != nil {
		p.Close()
		return nil, err
	}
	p.session = host.NewLocalSession(p.host, p.logger)
	return p, nil
}

func (p *palette) startHost(ctx context.Context, out io.Writer) error {
	h, err := host.New(ctx, &host.Config{
		Settings: p.settings,
		Paths:    p.paths,
		Logger:   p.logger,
		Opener:   providers.WriterOpener{W: out},
	})
	if err != nil {
		return err
	}
	p.host = h
	return nil
}

// Close releases the session, the host and the log file.
func (p *palette) Close() {
	if p.session != nil {
		if err := p.session.Close(); err != nil {
			p.logger.Warn("failed to close session", "error", err)
		}
	}
	if p.host != nil {
		if err := p.host.Shutdown(context.Background()); err != nil {
			p.logger.Warn("failed to shut down host", "error", err)
		}
	}
	if p.logFile != nil {
		p.logFile.Close()
	}
}
