// Package tui provides the Bubble Tea session monitor for the snabel CLI.
//
// The monitor launches only for a human at a terminal. It is never activated
// for scripts or piped output: --json, --quiet and isatty each prevent it.
package tui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/snabel/cli/internal/ui"
)

// --- TTY gate ---

// ShouldRunTUI returns true if the TUI should be launched.
// Returns false when stdout is not a terminal, or --json/--quiet flags are set.
//
// Parameters:
//   - jsonOutput: whether --json was passed
//   - quiet: whether --quiet was passed
//
// Returns:
//   - bool: true if the TUI should run
func ShouldRunTUI(jsonOutput, quiet bool) bool {
	if jsonOutput || quiet {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// --- Shared TUI styles ---

var (
	// titleStyle renders the SNABEL header.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ui.Slate)

	// dimStyle renders low-priority text.
	dimStyle = lipgloss.NewStyle().
			Foreground(ui.DimGray)

	// successStyle renders success indicators.
	successStyle = lipgloss.NewStyle().
			Foreground(ui.Green)

	// errorStyle renders failed/error indicators.
	errorStyle = lipgloss.NewStyle().
			Foreground(ui.Red).
			Bold(true)

	// warningStyle renders warnings.
	warningStyle = lipgloss.NewStyle().
			Foreground(ui.Amber)

	// helpStyle renders the bottom key hint bar.
	helpStyle = lipgloss.NewStyle().
			Foreground(ui.Gray)

	// separatorStyle renders horizontal rules.
	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#374151"))
)

// separator returns a horizontal line of the given width.
func separator(width int) string {
	if width <= 0 {
		width = 40
	}
	return separatorStyle.Render(strings.Repeat("─", width))
}

// newSpinner creates a consistently styled braille spinner.
func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ui.Teal)
	return s
}

// logOutput is where the default logger writes while no TUI is running.
var logOutput io.Writer = os.Stderr

// silenceLogs stops the default logger from writing over the alt screen.
// Background failures stay visible through the header's fetch error count.
// The returned function restores logOutput.
func silenceLogs() func() {
	log.SetOutput(io.Discard)
	return func() { log.SetOutput(logOutput) }
}
