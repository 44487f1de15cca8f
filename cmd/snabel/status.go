// Package main provides the service status and polling commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/config"
	"github.com/snabel/cli/internal/poller"
	"github.com/snabel/cli/internal/ui"
)

// statusCmd shows frontend/backend health and the session list.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show frontend, backend and session status",
	Long: `Run one status poll and print the result.

Fetches the frontend status, the backend status and the session list
concurrently. A failed fetch is reported but does not hide the others.

Examples:
  snabel status
  snabel status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// pollCmd keeps polling until interrupted.
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll service and session status continuously",
	Long: `Poll the backend at the configured cadence (poll.interval) and print a
health line per tick. Session status changes are printed as they are seen.
Stop with Ctrl+C.

Examples:
  snabel poll
  SNABEL_POLL_INTERVAL=2s snabel poll`,
	Args: cobra.NoArgs,
	RunE: runPoll,
}

// statusOutput is the --json shape of `snabel status`.
type statusOutput struct {
	Frontend bool              `json:"frontendRunning"`
	Backend  bool              `json:"backendRunning"`
	Sessions interface{}       `json:"sessions"`
	Errors   map[string]string `json:"errors,omitempty"`
	PolledAt time.Time         `json:"polledAt"`
	System   *api.SystemStatus `json:"system,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	jsonOut := jsonOutput(cmd)
	if !jsonOut {
		ui.StartSpinner("Checking status...")
	}
	h := a.newPoller(nil).Tick(cmd.Context())
	system, err := a.client.GetSystemStatus(cmd.Context())
	if err != nil {
		log.Debug("System status unavailable", "err", err)
	}
	if !jsonOut {
		ui.StopSpinner()
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), statusOutput{
			Frontend: h.FrontendRunning,
			Backend:  h.BackendRunning,
			Sessions: a.registry.List(),
			Errors:   h.LastErrors,
			PolledAt: h.LastPolledAt,
			System:   system,
		})
	}

	if system != nil {
		ui.PrintKeyValue("Version", dash(system.Service.Version))
		ui.PrintKeyValue("Frontend path", dash(system.Config.FrontendPath))
		ui.PrintKeyValue("Backend path", dash(system.Config.BackendPath))
		ui.PrintKeyValue("Temp dir", dash(system.Config.TempDirectory))
	}

	ui.PrintKeyValue("Frontend", serviceState(h.FrontendRunning, h.LastErrors[poller.FetchFrontend]))
	ui.PrintKeyValue("Backend", serviceState(h.BackendRunning, h.LastErrors[poller.FetchBackend]))
	ui.PrintKeyValue("Sessions", fmt.Sprintf("%d", h.SessionCount))
	ui.Println()

	if len(h.LastErrors) == 3 && !config.IsReachable(a.cfg.BaseURL, 0) {
		ui.PrintWarning("Nothing is listening at %s. Is the backend running?", a.cfg.BaseURL)
	}

	if msg, failed := h.LastErrors[poller.FetchSessions]; failed {
		ui.PrintWarning("Could not list sessions: %s", msg)
		return nil
	}
	ui.RenderSessionTable(cmd.OutOrStdout(), a.registry.List(), "", time.Now())
	return nil
}

// serviceState renders a service line, preferring a fetch error over a stale value.
func serviceState(running bool, fetchErr string) string {
	switch {
	case fetchErr != "":
		return ui.WarningStyle.Render("unreachable (" + fetchErr + ")")
	case running:
		return ui.SuccessStyle.Render("running")
	default:
		return ui.ErrorStyle.Render("stopped")
	}
}

func runPoll(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := ui.NewStatusTracker(cmd.OutOrStdout())
	jsonOut := jsonOutput(cmd)
	out := cmd.OutOrStdout()

	p := a.newPoller(func(h poller.Health) {
		if jsonOut {
			_ = printJSON(out, statusOutput{
				Frontend: h.FrontendRunning,
				Backend:  h.BackendRunning,
				Sessions: h.SessionCount,
				Errors:   h.LastErrors,
				PolledAt: h.LastPolledAt,
			})
			return
		}
		fmt.Fprintf(out, "%s frontend=%s backend=%s sessions=%d%s\n",
			ui.DimStyle.Render(h.LastPolledAt.Format("15:04:05")),
			upDown(h.FrontendRunning), upDown(h.BackendRunning), h.SessionCount,
			errorSuffix(h.LastErrors))
		for _, s := range a.registry.List() {
			tracker.Update(s)
		}
	})

	watchPollInterval(p)

	ui.PrintDim("Polling %s every %s (Ctrl+C to stop)", a.cfg.BaseURL, a.cfg.Poll.Interval)
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Debug("Polling stopped")
	return nil
}

// watchPollInterval applies poll.interval edits to the config file without a
// restart. Other keys still need one.
func watchPollInterval(p *poller.Poller) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		d := v.GetDuration(config.KeyPollInterval)
		if d <= 0 || d == p.Interval() {
			return
		}
		log.Info("Config changed", "file", e.Name, "poll.interval", d)
		p.SetInterval(d)
	})
	v.WatchConfig()
}

func upDown(running bool) string {
	if running {
		return "up"
	}
	return "down"
}

func errorSuffix(errs map[string]string) string {
	if len(errs) == 0 {
		return ""
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return ui.WarningStyle.Render(fmt.Sprintf(" (failed: %v)", names))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
