// Package output handles formatting CLI output as table, JSON, or compact.
package output

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// EnvOutput selects the output format when no flag is given.
const EnvOutput = "DIRWATCH_OUTPUT"

// Format represents an output format.
type Format int

const (
	// FormatAuto uses the default format (table).
	FormatAuto Format = iota
	// FormatJSON outputs JSON.
	FormatJSON
	// FormatTable outputs a human-readable table.
	FormatTable
	// FormatCompact outputs one-line-per-record compact format.
	FormatCompact
)

// ParseFormat maps a format name onto a Format. Unknown names give FormatAuto.
func ParseFormat(name string) Format {
	switch name {
	case "json":
		return FormatJSON
	case "compact", "oneline":
		return FormatCompact
	case "table":
		return FormatTable
	}
	return FormatAuto
}

// Detect returns the appropriate format based on flags, environment and
// the configured fallback. Default is table when nothing is set.
func Detect(jsonFlag, tableFlag, compactFlag bool, configured string) Format {
	if jsonFlag {
		return FormatJSON
	}
	if compactFlag {
		return FormatCompact
	}
	if tableFlag {
		return FormatTable
	}

	if f := ParseFormat(os.Getenv(EnvOutput)); f != FormatAuto {
		return f
	}
	if f := ParseFormat(configured); f != FormatAuto {
		return f
	}

	return FormatTable
}

// AutoColor disables styling when NO_COLOR is set or f is not a terminal.
// It reports whether color stays enabled.
func AutoColor(f *os.File) bool {
	if termenv.EnvNoColor() || !term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
		DisableColor()
		return false
	}
	return true
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}
