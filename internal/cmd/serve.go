package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/runger/palette/internal/config"
	"github.com/runger/palette/internal/host"
	"github.com/runger/palette/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the palette host in the foreground",
	GroupID: groupSetup,
	Long: `Run the palette host: the providers, storage and the bridge socket that
"palette --remote" attaches to. Logs go to the host log file.

SIGHUP reloads host.log_level from the config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunHost(commandContext(cmd), cfgFile, debugMode)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// RunHost runs a host until ctx ends or a shutdown signal arrives. An empty
// path uses the default config file.
func RunHost(ctx context.Context, path string, debug bool) error {
	paths := config.DefaultPaths()
	if path == "" {
		path = paths.ConfigFile()
	}

	settings, err := config.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		settings.Host.LogLevel = "debug"
	}

	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	paths.Resolve(settings)

	logPath := settings.Host.LogFile
	if logPath == "" {
		logPath = paths.HostLogFile()
	}
	f, err := logging.OpenFile(logPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var level slog.LevelVar
	if lvl, err := logging.ParseLevel(settings.Host.LogLevel); err == nil {
		level.Set(lvl)
	}
	logger := logging.New(&logging.Config{Output: f, Leveler: &level})

	reload := func() error {
		next, err := config.LoadFromFile(path)
		if err != nil {
			return err
		}
		if debug {
			return nil
		}
		lvl, err := logging.ParseLevel(next.Host.LogLevel)
		if err != nil {
			return err
		}
		level.Set(lvl)
		return nil
	}

	return host.Run(ctx, &host.Config{
		Settings: settings,
		Paths:    paths,
		Logger:   logger,
	}, path, reload)
}
