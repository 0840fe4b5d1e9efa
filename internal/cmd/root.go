package cmd

import (
	"github.com/spf13/cobra"
)

const (
	groupCore  = "core"
	groupSetup = "setup"
)

var (
	cfgFile    string
	remoteMode bool
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "palette",
	Short: "a keyboard-driven command palette for tabs, history and bookmarks",
	Long: `palette - a keyboard-driven command palette
  - type to search open tabs, history and bookmarks at once
  - t, b, h, top + space pin a single source
  - > lists every command`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	RunE:          runPalette,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/palette/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&remoteMode, "remote", false, "attach to a running paletted instead of an in-process host")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "log at debug level")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Palette Commands:"},
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
	)

	rootCmd.AddCommand(versionCmd)
}
