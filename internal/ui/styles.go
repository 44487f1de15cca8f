// Package ui provides terminal UI components using Charm libraries.
//
// This package contains the styling, message printing, prompts and tables
// used by the snabel commands.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	// Primary accent - elephant gray-blue
	Slate = lipgloss.Color("#6C8EBF")

	// Secondary colors
	Teal    = lipgloss.Color("#14B8A6")
	Red     = lipgloss.Color("#EF4444")
	Amber   = lipgloss.Color("#F59E0B")
	Green   = lipgloss.Color("#22C55E")
	Violet  = lipgloss.Color("#9D61FF")
	Gray    = lipgloss.Color("#6B7280")
	DimGray = lipgloss.Color("#9CA3AF")
)

// Text styles.
var (
	// TitleStyle for main headings
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Slate)

	// SuccessStyle for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	// WarningStyle for warning messages
	WarningStyle = lipgloss.NewStyle().
			Foreground(Amber)

	// InfoStyle for informational messages
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	// DimStyle for less important text
	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	// CodeStyle for inline code (ids, branch names)
	CodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F3F4F6")).
			Background(lipgloss.Color("#374151")).
			Padding(0, 1)
)

// Box styles.
var (
	// ResultBoxPassedStyle for passed validations
	ResultBoxPassedStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(Green).
				Padding(0, 1)

	// ResultBoxFailedStyle for failed validations
	ResultBoxFailedStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(Red).
				Padding(0, 1)
)

// Status indicator styles, one per status category.
var (
	StatusDimStyle     = lipgloss.NewStyle().Foreground(DimGray)
	StatusInfoStyle    = lipgloss.NewStyle().Foreground(Teal)
	StatusWarningStyle = lipgloss.NewStyle().Foreground(Amber)
	StatusSuccessStyle = lipgloss.NewStyle().Foreground(Green)
	StatusMergedStyle  = lipgloss.NewStyle().Foreground(Violet)
	StatusErrorStyle   = lipgloss.NewStyle().Foreground(Red)
)

// Log level styles.
var (
	LogInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
	LogWarnStyle  = lipgloss.NewStyle().Foreground(Amber)
	LogErrorStyle = lipgloss.NewStyle().Foreground(Red)
	LogDebugStyle = lipgloss.NewStyle().Foreground(DimGray)
)

// Diff styles.
var (
	// DiffAddStyle for added lines
	DiffAddStyle = lipgloss.NewStyle().
			Foreground(Green)

	// DiffRemoveStyle for removed lines
	DiffRemoveStyle = lipgloss.NewStyle().
			Foreground(Red)

	// DiffHunkStyle for hunk headers
	DiffHunkStyle = lipgloss.NewStyle().
			Foreground(Teal)

	// DiffContextStyle for context lines
	DiffContextStyle = lipgloss.NewStyle().
				Foreground(DimGray)
)

// categoryStyle maps a status category to its style.
func categoryStyle(category string) lipgloss.Style {
	switch category {
	case "info":
		return StatusInfoStyle
	case "warning":
		return StatusWarningStyle
	case "success":
		return StatusSuccessStyle
	case "merged":
		return StatusMergedStyle
	case "error":
		return StatusErrorStyle
	default:
		return StatusDimStyle
	}
}
