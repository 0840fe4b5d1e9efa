package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func saveColors(t *testing.T) {
	t.Helper()
	origMode := colorMode
	origRed := colorRed
	origReset := colorReset
	t.Cleanup(func() {
		colorMode = origMode
		colorRed = origRed
		colorReset = origReset
	})
}

func TestApplyColorMode_Always(t *testing.T) {
	saveColors(t)

	disableColors()
	colorMode = "always"
	applyColorMode()

	assert.NotEmpty(t, colorRed)
}

func TestApplyColorMode_Never(t *testing.T) {
	saveColors(t)

	enableColors()
	colorMode = "never"
	applyColorMode()

	assert.Empty(t, colorRed)
	assert.Empty(t, colorReset)
}

func TestApplyColorMode_AutoNotATerminal(t *testing.T) {
	saveColors(t)

	colorMode = "auto"
	applyColorMode()

	// stdout is a pipe under go test
	assert.Empty(t, colorRed)
}

func TestShouldDisableColors(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, shouldDisableColors())

	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "dumb")
	assert.True(t, shouldDisableColors())
}

func TestTerminalWidth(t *testing.T) {
	t.Setenv("COLUMNS", "")
	assert.Equal(t, 80, terminalWidth())

	t.Setenv("COLUMNS", "120")
	assert.Equal(t, 120, terminalWidth())

	t.Setenv("COLUMNS", "notanumber")
	assert.Equal(t, 80, terminalWidth())
}
