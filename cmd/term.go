package cmd

import (
	"os"

	"github.com/mattn/go-isatty"
)

// isTerminal reports whether f is attached to an interactive terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
