package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/runger/palette/internal/config"
	"github.com/runger/palette/internal/logging"
	"github.com/runger/palette/internal/transport"
)

// Run serves a host over the gRPC bridge until ctx ends or the process is
// asked to stop:
//   - SIGTERM/SIGINT: graceful shutdown
//   - SIGHUP: reload configuration through reload
//   - SIGPIPE: ignored
func Run(ctx context.Context, cfg *Config, configPath string, reload func() error) error {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.DefaultConfig()
		cfg.Settings = settings
	}
	paths := cfg.Paths
	if paths == nil {
		paths = config.DefaultPaths()
		cfg.Paths = paths
	}
	paths.Resolve(settings)

	lock := NewInstanceLock(LockPath(settings.Host.SocketPath))
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release instance lock", "error", err)
		}
	}()

	socket := transport.NewUnixSocket(settings.Host.SocketPath)
	lis, err := socket.Listen()
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer socket.Close()

	server := transport.NewServer(transport.WithServerLogger(logger))
	cfg.Transport = server

	h, err := New(ctx, cfg)
	if err != nil {
		server.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signal.Ignore(syscall.SIGPIPE)

	sigChan := make(chan os.Signal, 4)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGTERM, syscall.SIGINT:
					logger.Info("received shutdown signal", "signal", sig)
					cancel()
					return
				case syscall.SIGHUP:
					if reload == nil {
						logger.Debug("no reload function configured, ignoring SIGHUP")
						continue
					}
					if err := reload(); err != nil {
						logger.Error("failed to reload configuration", "error", err)
					} else {
						logger.Info("configuration reloaded", "config_path", configPath)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	logging.LogStartup(logger, logging.StartupInfo{
		Version:      Version,
		ConfigPath:   configPath,
		DatabasePath: settings.Data.DatabasePath,
		SocketPath:   socket.Path(),
		Providers:    h.ProviderIDs(),
		PID:          os.Getpid(),
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(lis)
	}()

	var serveErr error
	reason := "context done"
	select {
	case <-ctx.Done():
	case serveErr = <-errChan:
		reason = "server stopped"
	}

	logging.LogShutdown(logger, reason)
	server.Close()
	if err := h.Shutdown(context.Background()); err != nil {
		logger.Warn("shutdown failed", "error", err)
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return fmt.Errorf("bridge server error: %w", serveErr)
	}
	return nil
}
