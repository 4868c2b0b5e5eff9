//go:build !windows

package output

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminalWidth returns the width of the terminal attached to stdout
func terminalWidth() int {
	if width, ok := columnsEnv(); ok {
		return width
	}

	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err == nil && ws.Col > 0 {
		return int(ws.Col)
	}

	return defaultWidth
}
