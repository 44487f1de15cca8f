// Package main provides the session lifecycle commands.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/snabel/cli/internal/archive"
	"github.com/snabel/cli/internal/controller"
	"github.com/snabel/cli/internal/session"
	"github.com/snabel/cli/internal/ui"
)

var (
	createDescription  string
	createInstructions string
	createMfe          string
	createCopyID       bool

	startInstructions string
	startFollow       bool

	mergeMessage string

	viewFollow bool

	listLimit int
)

// sessionCmd is the parent for session operations.
var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions", "s"},
	Short:   "Create, run and merge migration sessions",
	Long: `Manage migration sessions.

A session migrates an uploaded code archive into a target micro-frontend.
The usual flow is create → upload → start → (send commands) → validate → merge.

Examples:
  snabel session create -d "Migrate cart module" --mfe cart
  snabel session upload <id> ./cart.zip
  snabel session start <id> --follow
  snabel session merge <id>`,
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session",
	Long: `Create a session and print its id.

Examples:
  snabel session create -d "Migrate cart module"
  snabel session create -d "Migrate cart module" --mfe cart -i "Keep the REST client" --copy-id`,
	Args: cobra.NoArgs,
	RunE: runSessionCreate,
}

var sessionUploadCmd = &cobra.Command{
	Use:   "upload <id> <archive.zip|dir>",
	Short: "Upload the code archive for a session",
	Long: `Upload the code to migrate. A directory is packed into a zip first,
skipping dependencies, VCS metadata and build output. The archive is
checked locally before it is sent.

Examples:
  snabel session upload <id> ./cart.zip
  snabel session upload <id> ./legacy/cart`,
	Args: cobra.ExactArgs(2),
	RunE: runSessionUpload,
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Start the agent for a session",
	Long: `Start the agent, print the work branch and attach to the session's
log stream. With --follow the log is printed until the stream closes or
Ctrl+C is pressed.

Examples:
  snabel session start <id>
  snabel session start <id> -i "Prefer hooks over classes" --follow`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionStart,
}

var sessionStopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stop the agent of a session (asks for confirmation)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionStop,
}

var sessionSendCmd = &cobra.Command{
	Use:   "send <id> <command...>",
	Short: "Send a command to the agent",
	Long: `Send a free-text command to the running agent. The session becomes
the focused session first.

Examples:
  snabel session send <id> "run the unit tests again"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSessionSend,
}

var sessionMergeCmd = &cobra.Command{
	Use:   "merge <id>",
	Short: "Merge the session branch (asks for confirmation)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionMerge,
}

var sessionViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show a session",
	Long: `Fetch a session, make it the focused session and print it. If the agent
is running, the log stream is attached; --follow prints the log.

Examples:
  snabel session view <id>
  snabel session view <id> --follow`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionView,
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions",
	Args:    cobra.NoArgs,
	RunE:    runSessionList,
}

var sessionValidateCmd = &cobra.Command{
	Use:   "validate <id>",
	Short: "Run the validation checks for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionValidate,
}

var sessionDiffCmd = &cobra.Command{
	Use:   "diff <id>",
	Short: "Show the session branch diff",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDiff,
}

var sessionChangesCmd = &cobra.Command{
	Use:   "changes <id>",
	Short: "List files changed on the session branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionChanges,
}

var sessionWatchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Print status transitions until the session settles",
	Long: `Poll the session at the configured cadence and print each status change.
Exits once the session is COMPLETED, MERGED or FAILED.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionWatch,
}

func init() {
	sessionCreateCmd.Flags().StringVarP(&createDescription, "description", "d", "", "What to migrate (required)")
	sessionCreateCmd.Flags().StringVarP(&createInstructions, "instructions", "i", "", "Extra instructions for the agent")
	sessionCreateCmd.Flags().StringVarP(&createMfe, "mfe", "m", "", "Target micro-frontend (see 'snabel mfes')")
	sessionCreateCmd.Flags().BoolVar(&createCopyID, "copy-id", false, "Copy the new session id to the clipboard")

	sessionStartCmd.Flags().StringVarP(&startInstructions, "instructions", "i", "", "Additional instructions for this run")
	sessionStartCmd.Flags().BoolVarP(&startFollow, "follow", "f", false, "Print the log stream until it closes")

	sessionMergeCmd.Flags().StringVarP(&mergeMessage, "message", "m", "", "Merge commit message")

	sessionViewCmd.Flags().BoolVarP(&viewFollow, "follow", "f", false, "Print the log stream until it closes")

	sessionListCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum sessions to fetch (default sessions.limit)")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionUploadCmd)
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionStopCmd)
	sessionCmd.AddCommand(sessionSendCmd)
	sessionCmd.AddCommand(sessionMergeCmd)
	sessionCmd.AddCommand(sessionViewCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionValidateCmd)
	sessionCmd.AddCommand(sessionDiffCmd)
	sessionCmd.AddCommand(sessionChangesCmd)
	sessionCmd.AddCommand(sessionWatchCmd)
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.ctl.Create(cmd.Context(), controller.CreateInput{
		Description:  createDescription,
		Instructions: createInstructions,
		TargetMfe:    createMfe,
	})
	if err != nil {
		return describeError("create session", err)
	}

	if createCopyID {
		if err := clipboard.WriteAll(id); err != nil {
			log.Warn("Could not copy session id", "err", err)
		}
	}

	if jsonOutput(cmd) {
		s, _ := a.registry.Get(id)
		return printJSON(cmd.OutOrStdout(), s)
	}
	ui.PrintSuccess("Session created")
	fmt.Fprintln(cmd.OutOrStdout(), id)
	ui.PrintDim("Next: snabel session upload %s <archive.zip>", id)
	return nil
}

func runSessionUpload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	zipPath, cleanup, err := prepareArchive(args[1])
	if err != nil {
		return err
	}
	defer cleanup()

	jsonOut := jsonOutput(cmd)
	if !jsonOut {
		ui.StartSpinner("Uploading archive...")
	}
	analysis, err := a.ctl.UploadArchive(cmd.Context(), args[0], zipPath)
	if !jsonOut {
		ui.StopSpinner()
	}
	if err != nil {
		return describeError("upload archive", err)
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), analysis)
	}
	ui.PrintSuccess("Archive uploaded")
	ui.PrintAnalysis(*analysis)
	return nil
}

// prepareArchive returns a zip ready for upload. A directory is packed into a
// temporary zip; an existing zip is checked for unsafe entries first.
func prepareArchive(p string) (string, func(), error) {
	noop := func() {}
	if strings.TrimSpace(p) == "" {
		return "", noop, controller.ErrFileRequired
	}

	info, err := os.Stat(p)
	if err != nil {
		return "", noop, fmt.Errorf("cannot read archive: %w", err)
	}

	zipPath := p
	cleanup := noop
	if info.IsDir() {
		ui.PrintDim("Packing %s (skipping %s)", p, strings.Join(archive.DefaultExcludes, ", "))
		zipPath, err = archive.ZipDirectory(p, nil)
		if err != nil {
			return "", noop, err
		}
		cleanup = func() { os.Remove(zipPath) }
	} else if !archive.IsZip(p) {
		return "", noop, fmt.Errorf("%s is not a .zip archive or a directory", p)
	}

	summary, err := archive.Inspect(zipPath)
	if err != nil {
		cleanup()
		return "", noop, err
	}
	log.Debug("Archive ready", "path", zipPath, "files", summary.TotalFiles,
		"typescript", summary.TypescriptFiles, "javascript", summary.JavascriptFiles,
		"sizeMB", fmt.Sprintf("%.2f", summary.TotalSizeMB()))
	if summary.TotalFiles == 0 {
		cleanup()
		return "", noop, fmt.Errorf("archive %s contains no files", p)
	}
	return zipPath, cleanup, nil
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	sub, unsubscribe := a.logs.Subscribe(256)
	defer unsubscribe()

	branch, err := a.ctl.Start(cmd.Context(), id, controller.StartOptions{
		AdditionalInstructions: startInstructions,
	})
	if err != nil {
		return describeError("start session", err)
	}

	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), map[string]string{"sessionId": id, "branchName": branch})
	}
	ui.PrintSuccess("Agent started on branch %s", ui.CodeStyle.Render(branch))

	if !startFollow {
		return nil
	}
	return followLogs(cmd.Context(), a, id, sub, cmd.OutOrStdout())
}

func runSessionStop(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.ctl.Stop(cmd.Context(), args[0])
	if err != nil {
		return describeError("stop session", err)
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	ui.PrintSuccess("Stop requested for %s", args[0])
	return nil
}

func runSessionSend(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	command := strings.Join(args[1:], " ")

	// A fresh process has no focus; naming the session on the command line
	// is the explicit choice.
	a.ctl.Focus(id)
	if err := a.ctl.SendCommand(cmd.Context(), id, command); err != nil {
		return describeError("send command", err)
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), map[string]string{"sessionId": id, "command": strings.TrimSpace(command)})
	}
	ui.PrintSuccess("Command sent")
	return nil
}

func runSessionMerge(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.ctl.Merge(cmd.Context(), args[0], mergeMessage)
	if err != nil {
		return describeError("merge session", err)
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	ui.PrintSuccess("Session %s merged", args[0])
	return nil
}

func runSessionView(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	sub, unsubscribe := a.logs.Subscribe(256)
	defer unsubscribe()

	res, err := a.ctl.View(cmd.Context(), id)
	if err != nil {
		return describeError("view session", err)
	}

	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), res.Session)
	}
	ui.PrintSessionDetail(res.Session)

	if !viewFollow {
		return nil
	}
	if !res.Streaming {
		ui.PrintDim("The agent is not running; there is no live log.")
		return nil
	}
	ui.Println()
	return followLogs(cmd.Context(), a, id, sub, cmd.OutOrStdout())
}

func runSessionList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	limit := listLimit
	if limit <= 0 {
		limit = a.cfg.Sessions.Limit
	}
	sessions, err := a.client.ListSessions(cmd.Context(), limit)
	if err != nil {
		return describeError("list sessions", err)
	}
	a.registry.UpsertAll(sessions)

	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), a.registry.List())
	}
	ui.RenderSessionTable(cmd.OutOrStdout(), a.registry.List(), "", time.Now())
	return nil
}

func runSessionValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	jsonOut := jsonOutput(cmd)
	if !jsonOut {
		ui.StartSpinner("Running validation...")
	}
	result, err := a.ctl.Validate(cmd.Context(), args[0])
	if !jsonOut {
		ui.StopSpinner()
	}
	if err != nil {
		return describeError("validate session", err)
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), result)
	}
	ui.PrintValidationResult(result)
	if !result.Passed {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func runSessionDiff(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	diff, err := a.ctl.Diff(cmd.Context(), args[0])
	if err != nil {
		return describeError("fetch diff", err)
	}
	if strings.TrimSpace(diff) == "" {
		ui.PrintDim("No changes.")
		return nil
	}
	if jsonOutput(cmd) || !ui.IsInteractive() {
		fmt.Fprint(cmd.OutOrStdout(), diff)
		return nil
	}
	ui.PrintDiff(diff)
	return nil
}

func runSessionChanges(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	changes, err := a.ctl.Changes(cmd.Context(), args[0])
	if err != nil {
		return describeError("fetch changes", err)
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), changes)
	}
	if len(changes) == 0 {
		ui.PrintDim("No changes.")
		return nil
	}
	for _, c := range changes {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	return nil
}

func runSessionWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id := args[0]
	tracker := ui.NewStatusTracker(cmd.OutOrStdout())
	ticker := time.NewTicker(a.cfg.Poll.Interval)
	defer ticker.Stop()

	for {
		fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.Poll.Timeout)
		s, err := a.client.GetSession(fetchCtx, id)
		cancel()
		switch {
		case err != nil && ctx.Err() == nil:
			// Keep watching through transient failures.
			log.Warn("Failed to fetch session", "session", id, "err", err)
		case err == nil:
			a.registry.Upsert(*s)
			tracker.Update(*s)
			if tracker.Settled(id) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// logPrinter writes one session's entries in Seq order. Entries the
// subscription dropped are recovered from the log store.
type logPrinter struct {
	logs      *session.Logs
	sessionID string
	out       io.Writer
	render    func(session.LogEntry) string
	last      uint64
}

func (p *logPrinter) emit(e session.LogEntry) {
	if e.SessionID != p.sessionID || e.Seq <= p.last {
		return
	}
	if e.Seq > p.last+1 {
		for _, missed := range p.logs.Since(p.sessionID, p.last) {
			if missed.Seq >= e.Seq {
				break
			}
			fmt.Fprintln(p.out, p.render(missed))
		}
	}
	fmt.Fprintln(p.out, p.render(e))
	p.last = e.Seq
}

// catchUp prints everything stored after the last printed entry.
func (p *logPrinter) catchUp() {
	for _, e := range p.logs.Since(p.sessionID, p.last) {
		fmt.Fprintln(p.out, p.render(e))
		p.last = e.Seq
	}
}

// followLogs prints the session's log entries from sub until the stream's
// reader exits or ctx is cancelled.
func followLogs(ctx context.Context, a *app, sessionID string, sub <-chan session.LogEntry, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &logPrinter{logs: a.logs, sessionID: sessionID, out: out, render: ui.FormatLogEntry}
	if ui.IsInteractive() {
		p.render = ui.RenderLogEntry
	}

	check := time.NewTicker(250 * time.Millisecond)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub:
			if !ok {
				p.catchUp()
				return nil
			}
			p.emit(e)
		case <-check.C:
			if a.streams.Connected() {
				continue
			}
			// Reader is gone; everything it wrote is already stored.
			p.catchUp()
			return nil
		}
	}
}
