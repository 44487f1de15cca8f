package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/snabel/cli/internal/session"
)

// FormatLogEntry renders a log entry as "[15:04:05] [LEVEL] message" without
// styling.
func FormatLogEntry(e session.LogEntry) string {
	return fmt.Sprintf("[%s] [%s] %s", e.ReceivedAt.Format("15:04:05"), e.Level, e.Message)
}

// RenderLogEntry renders a log entry styled by its level.
func RenderLogEntry(e session.LogEntry) string {
	stamp := DimStyle.Render("[" + e.ReceivedAt.Format("15:04:05") + "]")
	style := logLevelStyle(e.Level)
	return fmt.Sprintf("%s %s %s", stamp, style.Bold(true).Render("["+e.Level+"]"), style.Render(e.Message))
}

func logLevelStyle(level string) lipgloss.Style {
	switch strings.ToUpper(level) {
	case session.LevelError:
		return LogErrorStyle
	case session.LevelWarn, "WARNING":
		return LogWarnStyle
	case "DEBUG":
		return LogDebugStyle
	default:
		return LogInfoStyle
	}
}
