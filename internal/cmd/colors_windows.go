//go:build windows

package cmd

import "os"

// getTermWidthIoctl returns 0 on Windows; width detection falls back to $COLUMNS.
func getTermWidthIoctl() int {
	return 0
}

func fileWidth(*os.File) int {
	return 0
}

// openTTY opens the console for the palette UI.
func openTTY() (*os.File, error) {
	return os.OpenFile("CONIN$", os.O_RDWR, 0)
}
