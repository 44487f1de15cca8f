// Package ui provides result rendering components.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/snabel/cli/internal/api"
)

// RenderValidationResult renders the validation checks as a boxed summary.
//
// Parameters:
//   - result: The backend validation result
//
// Returns:
//   - string: The rendered box
func RenderValidationResult(result *api.ValidationResult) string {
	boxStyle := ResultBoxPassedStyle
	title := SuccessStyle.Render("✓ Validation passed")
	if !result.Passed {
		boxStyle = ResultBoxFailedStyle
		title = ErrorStyle.Render("✗ Validation failed")
	}

	checks := []struct {
		name string
		ok   bool
	}{
		{"TypeScript", result.TypeScript},
		{"API compatibility", result.APICompatibility},
		{"Tests", result.Tests},
		{"Build", result.Build},
	}

	lines := []string{title, ""}
	for _, c := range checks {
		lines = append(lines, fmt.Sprintf("%s %s", checkMark(c.ok), c.name))
	}
	if result.Error != "" {
		lines = append(lines, "", DimStyle.Render("Error: ")+ErrorStyle.Render(result.Error))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// PrintValidationResult prints the validation summary box.
func PrintValidationResult(result *api.ValidationResult) {
	fmt.Println(RenderValidationResult(result))
}

func checkMark(ok bool) string {
	if ok {
		return lipgloss.NewStyle().Foreground(Green).Render("✓")
	}
	return lipgloss.NewStyle().Foreground(Red).Render("✗")
}

// PrintAnalysis prints the archive analysis returned by an upload.
func PrintAnalysis(a api.Analysis) {
	if quietMode {
		return
	}
	PrintKeyValue("Total files", fmt.Sprintf("%d", a.TotalFiles))
	PrintKeyValue("TypeScript", fmt.Sprintf("%d", a.TypescriptFiles))
	PrintKeyValue("JavaScript", fmt.Sprintf("%d", a.JavascriptFiles))
	PrintKeyValue("Size", fmt.Sprintf("%.2f MB", a.TotalSizeMB))
}

// PrintSessionDetail prints every known field of a session snapshot.
func PrintSessionDetail(s api.Session) {
	fmt.Printf("%s  %s\n", TitleStyle.Render(s.Description), StatusBadge(s.Status))
	PrintKeyValue("Session", s.SessionID)
	if s.TargetMfe != "" {
		PrintKeyValue("Target MFE", s.TargetMfe)
	}
	if s.BranchName != "" {
		PrintKeyValue("Branch", s.BranchName)
	}
	if !s.CreatedAt.IsZero() {
		PrintKeyValue("Created", s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if !s.CompletedAt.IsZero() {
		PrintKeyValue("Completed", s.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	PrintKeyValue("Running", fmt.Sprintf("%t", s.IsRunning))
	PrintKeyValue("Merged", fmt.Sprintf("%t", s.Merged))
	if s.FilesCreated+s.FilesModified+s.FilesDeleted > 0 {
		PrintKeyValue("Files", fmt.Sprintf("+%d ~%d -%d", s.FilesCreated, s.FilesModified, s.FilesDeleted))
	}
	if s.ErrorMessage != "" {
		PrintKeyValue("Error", ErrorStyle.Render(s.ErrorMessage))
	}
	if s.Instructions != "" {
		Println()
		PrintDim("%s", s.Instructions)
	}
}
