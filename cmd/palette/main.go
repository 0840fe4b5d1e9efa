// Package main is the entry point for the palette CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/runger/palette/internal/cmd"
)

const (
	exitSuccess   = 0
	exitError     = 1
	exitCancelled = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	err := cmd.Execute()
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, cmd.ErrCancelled):
		return exitCancelled
	default:
		fmt.Fprintf(os.Stderr, "palette: %v\n", err)
		return exitError
	}
}
