// paletted runs the palette host: built-in providers, storage and the
// bridge socket remote palettes attach to.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/palette/internal/cmd"
)

func main() {
	var (
		configPath string
		debug      bool
	)

	root := &cobra.Command{
		Use:           "paletted",
		Short:         "palette host process",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.RunHost(c.Context(), configPath, debug)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/palette/config.yaml)")
	root.Flags().BoolVar(&debug, "debug", false, "log at debug level")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "paletted: %v\n", err)
		os.Exit(1)
	}
}
