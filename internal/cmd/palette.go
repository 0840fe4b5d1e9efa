package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/runger/palette/internal/tui"
)

// minWidth is the narrowest terminal the palette draws in.
const minWidth = 20

// ErrCancelled is returned when the palette is dismissed without an action.
var ErrCancelled = errors.New("cancelled")

// checkTERM verifies that the TERM environment variable is not "dumb".
func checkTERM() error {
	if os.Getenv("TERM") == "dumb" {
		return fmt.Errorf("TERM=dumb is not supported")
	}
	return nil
}

// checkWidth verifies that the terminal behind f is wide enough. An
// unknown width passes.
func checkWidth(f *os.File) error {
	if w := fileWidth(f); w > 0 && w < minWidth {
		return fmt.Errorf("terminal too narrow (%d columns, need at least %d)", w, minWidth)
	}
	return nil
}

// runPalette opens the interactive palette. Arguments pre-fill the query.
// Effects of the chosen action are printed once the UI has closed.
func runPalette(cmd *cobra.Command, args []string) error {
	if err := checkTERM(); err != nil {
		return err
	}

	tty, err := openTTY()
	if err != nil {
		return fmt.Errorf("cannot open terminal: %w", err)
	}
	defer tty.Close()

	if err := checkWidth(tty); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	var effects bytes.Buffer
	p, err := openPalette(ctx, &effects)
	if err != nil {
		return err
	}
	defer p.Close()

	// stdout may be a pipe; take the color profile from the terminal.
	lipgloss.SetColorProfile(termenv.NewOutput(tty).ColorProfile())

	model := tui.NewModel(ctx, p.session.Store)
	if len(args) > 0 {
		model = model.WithQuery(strings.Join(args, " "))
	}

	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(tty),
		tea.WithOutput(tty),
		tea.WithContext(ctx),
	)

	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("palette UI error: %w", err)
	}

	m, ok := final.(tui.Model)
	if !ok {
		return fmt.Errorf("unexpected model type %T", final)
	}

	// The host wrote effects into the buffer while the UI owned the screen.
	fmt.Fprint(cmd.OutOrStdout(), effects.String())

	if m.IsCancelled() {
		return ErrCancelled
	}
	return m.Err()
}
