// Package colors provides shared ANSI color codes for terminal output.
// This package consolidates color definitions to avoid duplication across packages.
package colors

import (
	"os"
	"sync/atomic"
)

// ANSI color codes for terminal output
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
)

var disabled atomic.Bool

func init() {
	// NO_COLOR is honored per https://no-color.org
	if os.Getenv("NO_COLOR") != "" || os.Getenv("CONDGEN_NO_COLOR") != "" {
		disabled.Store(true)
	}
}

// Disable turns off all color output for the process.
func Disable() {
	disabled.Store(true)
}

// Enabled reports whether color output is active.
func Enabled() bool {
	return !disabled.Load()
}

// Wrap surrounds s with the given color code, or returns s unchanged when
// colors are disabled.
func Wrap(color, s string) string {
	if disabled.Load() {
		return s
	}
	return color + s + Reset
}
