// Package main provides command suggestion functionality for the CLI.
//
// This file implements "did you mean" suggestions when users type commands
// in the wrong order (e.g., "snabel merge session" instead of "snabel session merge")
// or leave out the group (e.g., "snabel merge <id>").
package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/snabel/cli/internal/ui"
)

// subcommandMap maps subcommand names to their parent commands.
var subcommandMap = map[string][]string{
	"create":   {"session"},
	"upload":   {"session"},
	"start":    {"session"},
	"stop":     {"session"},
	"send":     {"session"},
	"merge":    {"session"},
	"view":     {"session"},
	"list":     {"session"},
	"validate": {"session"},
	"diff":     {"session"},
	"changes":  {"session"},
	"watch":    {"session"},
	"show":     {"config"},
	"set":      {"config"},
	"server":   {"config"},
}

// suggestCorrectCommand checks if the user typed a subcommand at the wrong level
// and returns a suggestion if found.
//
// Parameters:
//   - unknownCmd: The command that was not recognized by Cobra
//   - allArgs: All command line arguments (excluding program name)
//   - rootCmd: The root command to search for valid parent commands
//
// Returns:
//   - string: A suggested command string with correct order, or empty if no suggestion found
//   - bool: True if a valid suggestion was found
//
// Example:
//
//	unknownCmd: "merge"
//	allArgs: ["--yes", "merge", "session", "abc"]
//	Returns: "snabel --yes session merge abc", true
func suggestCorrectCommand(unknownCmd string, allArgs []string, rootCmd *cobra.Command) (string, bool) {
	parentCmds, isSubcommand := subcommandMap[unknownCmd]
	if !isSubcommand {
		return "", false
	}

	unknownCmdIdx := -1
	for i, arg := range allArgs {
		if arg == unknownCmd {
			unknownCmdIdx = i
			break
		}
	}
	if unknownCmdIdx == -1 {
		return "", false
	}

	// Parent typed after the subcommand: move it in front.
	for i := unknownCmdIdx + 1; i < len(allArgs); i++ {
		arg := allArgs[i]
		if strings.HasPrefix(arg, "-") {
			continue
		}
		for _, parentCmd := range parentCmds {
			if arg == parentCmd && hasCommand(rootCmd, parentCmd) {
				parts := []string{"snabel"}
				parts = append(parts, allArgs[:unknownCmdIdx]...)
				parts = append(parts, parentCmd, unknownCmd)
				parts = append(parts, allArgs[unknownCmdIdx+1:i]...)
				parts = append(parts, allArgs[i+1:]...)
				return strings.Join(parts, " "), true
			}
		}
	}

	// Parent left out: suggest it only when the subcommand belongs to one group.
	if len(parentCmds) == 1 && hasCommand(rootCmd, parentCmds[0]) {
		parts := []string{"snabel"}
		parts = append(parts, allArgs[:unknownCmdIdx]...)
		parts = append(parts, parentCmds[0])
		parts = append(parts, allArgs[unknownCmdIdx:]...)
		return strings.Join(parts, " "), true
	}

	return "", false
}

func hasCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name {
			return true
		}
	}
	return false
}

// printCommandSuggestion prints a "did you mean" suggestion to the user.
func printCommandSuggestion(suggestion string) {
	ui.Println()
	ui.PrintInfo("Did you mean:")
	ui.PrintDim("  %s", suggestion)
	ui.Println()
}
