package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var commandsCmd = &cobra.Command{
	Use:     "commands",
	Short:   "List, enable or disable palette commands",
	GroupID: groupSetup,
	Long: `List every command the built-in providers contribute, or turn one on or
off. Disabled commands leave the ">" list and lose their alias.

Examples:
  palette commands                          # List commands
  palette commands disable topsites.search  # Hide top sites
  palette commands enable topsites.search`,
	Args: cobra.NoArgs,
	RunE: runCommandsList,
}

var commandsEnableCmd = &cobra.Command{
	Use:   "enable <command-id>",
	Short: "Enable a command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCommandEnabled(cmd, args[0], true)
	},
}

var commandsDisableCmd = &cobra.Command{
	Use:   "disable <command-id>",
	Short: "Disable a command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCommandEnabled(cmd, args[0], false)
	},
}

func init() {
	commandsCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")
	commandsCmd.AddCommand(commandsEnableCmd, commandsDisableCmd)
	rootCmd.AddCommand(commandsCmd)
}

func runCommandsList(cmd *cobra.Command, args []string) error {
	applyColorMode()
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	p, err := openHost(ctx, out)
	if err != nil {
		return err
	}
	defer p.Close()

	for _, c := range p.host.Registry().AllCommands() {
		enabled, err := p.host.Store().IsEnabled(ctx, c.ID)
		if err != nil {
			return err
		}
		status := colorGreen + "enabled" + colorReset
		if !enabled {
			status = colorDim + "disabled" + colorReset
		}
		aliases := ""
		if len(c.Aliases) > 0 {
			aliases = " (" + strings.Join(c.Aliases, ", ") + ")"
		}
		fmt.Fprintf(out, "  %s%-24s%s %-8s %s%s %s\n", colorCyan, c.ID, colorReset, c.Kind, c.Name, aliases, status)
	}
	return nil
}

func setCommandEnabled(cmd *cobra.Command, id string, enabled bool) error {
	applyColorMode()
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	p, err := openHost(ctx, out)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.host.SetCommandEnabled(ctx, id, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(out, "%s%s%s %s\n", colorCyan, id, colorReset, state)
	return nil
}
