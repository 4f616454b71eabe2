package player

import (
	"os"

	"golang.org/x/term"
)

// GetTerminalSize returns the size of the terminal on stdout in cells
func GetTerminalSize() (cols, rows int, err error) {
	return term.GetSize(int(os.Stdout.Fd()))
}

// TerminalColumns reports the terminal width in cells, false when stdout is
// not a terminal.
func TerminalColumns() (int, bool) {
	cols, _, err := GetTerminalSize()
	if err != nil || cols <= 0 {
		return 0, false
	}
	return cols, true
}

// windowedWidth is the display width outside fullscreen: the configured
// width, narrowed to the terminal but never below MinWindowedWidth.
func windowedWidth(target, cols int, known bool) int {
	if !known {
		return target
	}
	return min(target, max(MinWindowedWidth, cols))
}
