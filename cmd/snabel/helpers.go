// Package main provides shared helpers for the snabel commands.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/config"
	"github.com/snabel/cli/internal/controller"
	"github.com/snabel/cli/internal/logstream"
	"github.com/snabel/cli/internal/poller"
	"github.com/snabel/cli/internal/session"
	"github.com/snabel/cli/internal/ui"
)

// app is the set of components one command invocation works with.
type app struct {
	cfg      *config.Config
	client   *api.Client
	registry *session.Registry
	logs     *session.Logs
	streams  *logstream.Manager
	ctl      *controller.Controller
}

// newApp resolves the configuration and wires the client, registry, log
// stream manager and controller together.
//
// Parameters:
//   - cmd: The running command; its flags select JSON output and --yes
//
// Returns:
//   - *app: The wired components
//   - error: If the configuration is invalid
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.BaseURL, cfg.HTTP.Timeout)
	registry := session.NewRegistry()
	logs := session.NewLogs(cfg.Logs.MaxEntries)
	streams := logstream.NewManager(
		logstream.APIDialer(cfg.BaseURL, cfg.Stream.HandshakeTimeout),
		logs,
		logstream.Options{
			Reconnect:         cfg.Stream.Reconnect,
			ReconnectInitial:  cfg.Stream.ReconnectInitial,
			ReconnectMax:      cfg.Stream.ReconnectMax,
			ReconnectAttempts: cfg.Stream.ReconnectAttempts,
		},
	)

	assumeYes, _ := cmd.Flags().GetBool("yes")
	interactive := ui.IsInteractive() && !jsonOutput(cmd)
	ctl := controller.New(client, registry, streams,
		controller.WithConfirmer(controller.ConfirmFunc(ui.ConfirmGate(assumeYes, interactive))),
		controller.WithSessionLimit(cfg.Sessions.Limit),
	)

	return &app{
		cfg:      cfg,
		client:   client,
		registry: registry,
		logs:     logs,
		streams:  streams,
		ctl:      ctl,
	}, nil
}

// newPoller builds a poller over the app's client and registry.
func (a *app) newPoller(onTick func(poller.Health)) *poller.Poller {
	return poller.New(a.client, a.registry, poller.Options{
		Interval:     a.cfg.Poll.Interval,
		FetchTimeout: a.cfg.Poll.Timeout,
		SessionLimit: a.cfg.Sessions.Limit,
		OnTick:       onTick,
	})
}

// Close detaches any log stream.
func (a *app) Close() {
	a.streams.Close()
}

// jsonOutput reports whether --json was passed.
func jsonOutput(cmd *cobra.Command) bool {
	j, _ := cmd.Flags().GetBool("json")
	return j
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// describeError turns controller and API errors into a user-facing line.
// Server-supplied messages are shown without the transport wrapping; other
// errors already carry their context.
func describeError(action string, err error) error {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, controller.ErrCancelled):
		return fmt.Errorf("%s cancelled", action)
	case errors.As(err, &apiErr):
		return fmt.Errorf("failed to %s: %s", action, apiErr.Error())
	default:
		return err
	}
}
