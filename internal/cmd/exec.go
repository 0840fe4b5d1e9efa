package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	execIndex  int
	execAction string
)

var execCmd = &cobra.Command{
	Use:     "exec <query...>",
	Short:   "Run an action on a search result",
	GroupID: groupCore,
	Long: `Search like the palette does, then run an action on one result.

The primary action runs unless --action names another. Choosing a command
from the ">" list runs it, or enters its search mode and prints the results.

Examples:
  palette exec t inbox                  # Switch to the Inbox tab
  palette exec --action copy b go       # Copy the first Go bookmark URL
  palette exec --index 2 h docs         # Open the third history match
  palette exec "> clear"                # Run the Clear History command`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().IntVarP(&execIndex, "index", "i", 0, "result to act on (0-based)")
	execCmd.Flags().StringVarP(&execAction, "action", "a", "", "action id (default: the primary action)")
	execCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")

	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	applyColorMode()
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	p, err := openPalette(ctx, out)
	if err != nil {
		return err
	}
	defer p.Close()

	s := p.session.Store
	st, err := runQuery(ctx, s, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if execIndex < 0 || execIndex >= len(st.Results) {
		return fmt.Errorf("no result at index %d (%d results)", execIndex, len(st.Results))
	}
	target := st.Results[execIndex]

	if err := s.ExecuteAction(ctx, target.ID, execAction); err != nil {
		return err
	}

	// A search command leaves the palette open in its mode.
	if after := s.State(); after.Open {
		if err := s.FlushSearch(ctx); err != nil {
			return err
		}
		after = s.State()
		fmt.Fprintf(out, "%s%s%s\n", colorDim, after.Query, colorReset)
		writeResults(out, after.Results, 20)
	}
	return nil
}
