// Package main provides the interactive session monitor command.
package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/snabel/cli/internal/tui"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <id>",
	Short: "Live dashboard for a session: log, status and a command prompt",
	Long: `Focus a session and open a full-screen monitor showing its live log,
its status and the service health. Commands typed at the prompt are sent to
the agent. Press Esc or Ctrl+C to quit; the log stream is detached on exit.

Requires an interactive terminal. Use 'snabel session view <id> --follow'
in scripts.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	if !tui.ShouldRunTUI(jsonOutput(cmd), quiet) {
		return fmt.Errorf("monitor needs an interactive terminal; use 'snabel session view %s --follow'", args[0])
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ctl.View(cmd.Context(), args[0])
	if err != nil {
		return describeError("view session", err)
	}
	defer a.ctl.Unfocus()
	if !res.Streaming {
		log.Debug("Agent not running; monitor starts without a live stream", "session", args[0])
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	p := a.newPoller(nil)
	go func() { _ = p.Run(ctx) }()

	return tui.RunMonitor(a.ctl, a.logs, tui.MonitorOptions{
		SessionID:      res.Session.SessionID,
		Health:         p.Health,
		CommandTimeout: a.cfg.HTTP.Timeout,
	})
}
