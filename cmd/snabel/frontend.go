// Package main provides the micro-frontend and frontend maintenance commands.
package main

import (
	"github.com/spf13/cobra"

	"github.com/snabel/cli/internal/ui"
)

// mfesCmd lists the micro-frontends a session can target.
var mfesCmd = &cobra.Command{
	Use:   "mfes",
	Short: "List the micro-frontends sessions can target",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		mfes, err := a.ctl.Mfes(cmd.Context())
		if err != nil {
			return describeError("list micro-frontends", err)
		}
		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), mfes)
		}
		ui.RenderMfeTable(cmd.OutOrStdout(), mfes)
		return nil
	},
}

// resetFrontendCmd discards local changes in the frontend repository.
var resetFrontendCmd = &cobra.Command{
	Use:   "reset-frontend",
	Short: "Reset the frontend repository (asks for confirmation)",
	Long: `Ask the backend to reset the frontend working tree, discarding changes
that were not merged. This cannot be undone.

Examples:
  snabel reset-frontend
  snabel reset-frontend --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		msg, err := a.ctl.ResetFrontend(cmd.Context())
		if err != nil {
			return describeError("reset frontend", err)
		}
		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), map[string]string{"message": msg})
		}
		ui.PrintSuccess("%s", msg)
		return nil
	},
}
