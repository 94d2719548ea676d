package ui

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// IsTTY checks whether the writer is attached to a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// ShouldColor decides whether to emit colors on w. An explicit noColor
// flag or NO_COLOR wins; otherwise color requires a terminal.
func ShouldColor(noColor bool, w io.Writer) bool {
	if noColor || DetectNoColor() {
		return false
	}
	return IsTTY(w)
}
