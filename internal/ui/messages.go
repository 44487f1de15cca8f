// Package ui provides message printing utilities.
package ui

import (
	"fmt"
	"strings"

	"github.com/snabel/cli/internal/status"
)

// quietMode suppresses informational output. Errors are always printed.
var quietMode bool

// SetQuietMode enables or disables quiet mode.
func SetQuietMode(quiet bool) {
	quietMode = quiet
}

// Println prints an empty line.
func Println() {
	if quietMode {
		return
	}
	fmt.Println()
}

// PrintSuccess prints a success message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintSuccess(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Println(SuccessStyle.Render("✓ " + msg))
}

// PrintError prints an error message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(ErrorStyle.Render("✗ " + msg))
}

// PrintWarning prints a warning message.
//
// Parameters:
//   - format: Printf format string
//   - args: Printf arguments
func PrintWarning(format string, args ...interface{}) {
	if quietMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Println(WarningStyle.Render("⚠ " + msg))
}

// PrintInfo prints an informational message.
func PrintInfo(format string, args ...interface{}) {
	if quietMode {
		return
	}
	fmt.Println(InfoStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintDim prints a dimmed message.
func PrintDim(format string, args ...interface{}) {
	if quietMode {
		return
	}
	fmt.Println(DimStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintKeyValue prints a dimmed label followed by a value.
func PrintKeyValue(label, value string) {
	if quietMode {
		return
	}
	fmt.Printf("  %s %s\n", DimStyle.Render(fmt.Sprintf("%-14s", label+":")), InfoStyle.Render(value))
}

// PrintDiff prints a unified diff with syntax highlighting.
func PrintDiff(diff string) {
	fmt.Print(RenderDiff(diff))
}

// RenderDiff styles each line of a unified diff.
func RenderDiff(diff string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			b.WriteString(TitleStyle.Render(line))
		case strings.HasPrefix(line, "@@"):
			b.WriteString(DiffHunkStyle.Render(line))
		case strings.HasPrefix(line, "+"):
			b.WriteString(DiffAddStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(DiffRemoveStyle.Render(line))
		default:
			b.WriteString(DiffContextStyle.Render(line))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// StatusBadge renders "<icon> <LABEL>" for a raw status string. Unknown
// statuses render as UNKNOWN.
func StatusBadge(raw string) string {
	style := categoryStyle(status.StatusCategory(raw))
	return style.Render(status.StatusIcon(raw) + " " + status.Label(raw))
}
