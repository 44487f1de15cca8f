// Package ui provides the ASCII banner for the snabel CLI.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// banner is the ASCII art logo.
const banner = `
  ███████╗███╗   ██╗ █████╗ ██████╗ ███████╗██╗
  ██╔════╝████╗  ██║██╔══██╗██╔══██╗██╔════╝██║
  ███████╗██╔██╗ ██║███████║██████╔╝█████╗  ██║
  ╚════██║██║╚██╗██║██╔══██║██╔══██╗██╔══╝  ██║
  ███████║██║ ╚████║██║  ██║██████╔╝███████╗███████╗
  ╚══════╝╚═╝  ╚═══╝╚═╝  ╚═╝╚═════╝ ╚══════╝╚══════╝`

const tagline = "Agent-driven micro-frontend migrations"

// PrintBanner prints the banner with version info.
//
// Parameters:
//   - version: The CLI version string to display
//   - baseURL: The backend the CLI talks to
func PrintBanner(version, baseURL string) {
	if quietMode {
		return
	}

	fmt.Println(lipgloss.NewStyle().Foreground(Slate).Bold(true).Render(banner))
	fmt.Println()

	taglineStyle := lipgloss.NewStyle().
		Foreground(DimGray).
		Italic(true).
		PaddingLeft(2)
	fmt.Println(taglineStyle.Render(tagline))
	fmt.Println()

	infoStyle := lipgloss.NewStyle().Foreground(DimGray).PaddingLeft(2)
	fmt.Println(infoStyle.Render(fmt.Sprintf("Version: %s", version)))
	fmt.Println(infoStyle.Render(fmt.Sprintf("Backend: %s", baseURL)))
	fmt.Println()
}

// GetCondensedHelp returns a compact cheat-sheet for the common migration
// flow. Shown when the user runs `snabel` with no arguments.
func GetCondensedHelp() string {
	head := lipgloss.NewStyle().Foreground(Slate).Bold(true)
	cmd := lipgloss.NewStyle().Foreground(Teal)
	hint := lipgloss.NewStyle().Foreground(DimGray).Italic(true)

	return fmt.Sprintf(`%s

%s
  %s   Create a session
  %s   Upload the code archive
  %s   Start the agent and stream its logs
  %s   Merge the finished branch

%s
  %s   Frontend, backend and session overview
  %s   Live dashboard for the focused session
  %s   List known sessions

%s
`,
		head.Render("snabel - migrate code into a micro-frontend with an agent"),
		head.Render("Migrate:"),
		cmd.Render(`snabel session create -d "..."  `),
		cmd.Render("snabel session upload <id> <zip>"),
		cmd.Render("snabel session start <id>       "),
		cmd.Render("snabel session merge <id>       "),
		head.Render("Observe:"),
		cmd.Render("snabel status                   "),
		cmd.Render("snabel monitor <id>             "),
		cmd.Render("snabel session list             "),
		hint.Render("Run 'snabel --help' for every command."),
	)
}
