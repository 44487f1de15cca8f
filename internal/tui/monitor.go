package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/snabel/cli/internal/poller"
	"github.com/snabel/cli/internal/session"
	"github.com/snabel/cli/internal/status"
	"github.com/snabel/cli/internal/ui"
)

// headerRefresh is how often the header re-reads the registry and health.
const headerRefresh = time.Second

// Commander sends commands to the focused session's agent.
type Commander interface {
	SendCommand(ctx context.Context, sessionID, command string) error
	Registry() *session.Registry
}

// MonitorOptions configures the session monitor.
type MonitorOptions struct {
	// SessionID is the session to monitor. It must already be focused.
	SessionID string

	// Health returns the latest poller health; nil hides the health line.
	Health func() poller.Health

	// CommandTimeout bounds a single SendCommand call.
	CommandTimeout time.Duration
}

// --- Messages ---

// logEntryMsg carries a log entry observed on the subscription.
type logEntryMsg struct {
	entry session.LogEntry
}

// logsClosedMsg signals the subscription channel was closed.
type logsClosedMsg struct{}

// headerTickMsg triggers a header refresh.
type headerTickMsg time.Time

// commandSentMsg reports the outcome of a SendCommand call.
type commandSentMsg struct {
	command string
	err     error
}

// monitorModel shows the live log of one session with a command prompt.
type monitorModel struct {
	ctl  Commander
	opts MonitorOptions

	// sub delivers appended log entries for every session.
	sub <-chan session.LogEntry

	// lines holds the rendered log lines of the monitored session.
	lines []string

	// lastSeq is the highest log Seq rendered so far.
	lastSeq uint64

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// sending is true while a command is in flight.
	sending bool

	// notice is the outcome line of the last command.
	notice string
	err    error

	width  int
	height int
	ready  bool
}

// newMonitorModel builds a monitor seeded with the session's existing log.
func newMonitorModel(ctl Commander, logs *session.Logs, sub <-chan session.LogEntry, opts MonitorOptions) monitorModel {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 30 * time.Second
	}

	ti := textinput.New()
	ti.Placeholder = "Send a command to the agent"
	ti.Prompt = "› "
	ti.CharLimit = 2000
	ti.Focus()

	m := monitorModel{
		ctl:     ctl,
		opts:    opts,
		sub:     sub,
		input:   ti,
		spinner: newSpinner(),
	}
	for _, e := range logs.Entries(opts.SessionID) {
		m.appendEntry(e)
	}
	return m
}

// Init starts listening for log entries and header ticks.
func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(waitForLogCmd(m.sub), headerTickCmd(), textinput.Blink)
}

// waitForLogCmd blocks until the next log entry arrives.
func waitForLogCmd(sub <-chan session.LogEntry) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-sub
		if !ok {
			return logsClosedMsg{}
		}
		return logEntryMsg{entry: e}
	}
}

func headerTickCmd() tea.Cmd {
	return tea.Tick(headerRefresh, func(t time.Time) tea.Msg {
		return headerTickMsg(t)
	})
}

// sendCommandCmd delivers a command to the agent.
func sendCommandCmd(ctl Commander, sessionID, command string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return commandSentMsg{command: command, err: ctl.SendCommand(ctx, sessionID, command)}
	}
}

// appendEntry renders e if it belongs to the monitored session and is new.
func (m *monitorModel) appendEntry(e session.LogEntry) bool {
	if e.SessionID != m.opts.SessionID || e.Seq <= m.lastSeq {
		return false
	}
	m.lastSeq = e.Seq
	m.lines = append(m.lines, ui.RenderLogEntry(e))
	return true
}

// Update handles messages for the monitor.
func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case logEntryMsg:
		if m.appendEntry(msg.entry) && m.ready {
			atBottom := m.viewport.AtBottom()
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			if atBottom {
				m.viewport.GotoBottom()
			}
		}
		return m, waitForLogCmd(m.sub)

	case logsClosedMsg:
		return m, nil

	case headerTickMsg:
		if m.sessionActive() {
			return m, tea.Batch(headerTickCmd(), m.spinner.Tick)
		}
		return m, headerTickCmd()

	case spinner.TickMsg:
		if m.sending || m.sessionActive() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case commandSentMsg:
		m.sending = false
		if msg.err != nil {
			m.err = msg.err
			m.notice = ""
			return m, nil
		}
		m.err = nil
		m.notice = fmt.Sprintf("Sent: %s", msg.command)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey processes key events.
func (m monitorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "enter":
		command := strings.TrimSpace(m.input.Value())
		if command == "" || m.sending {
			return m, nil
		}
		m.sending = true
		m.err = nil
		m.notice = ""
		m.input.SetValue("")
		return m, tea.Batch(m.spinner.Tick, sendCommandCmd(m.ctl, m.opts.SessionID, command, m.opts.CommandTimeout))

	case "pgup", "pgdown", "up", "down":
		if m.ready {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// resize fits the viewport between the header and the prompt.
func (m *monitorModel) resize() {
	h := m.height - 6
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, h)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = h
	}
	m.input.Width = m.width - 4
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// View renders the monitor.
func (m monitorModel) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(separator(m.width))
	b.WriteString("\n")

	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(strings.Join(m.lines, "\n"))
	}
	b.WriteString("\n")
	b.WriteString(separator(m.width))
	b.WriteString("\n")

	switch {
	case m.sending:
		b.WriteString(m.spinner.View() + " Sending command...")
	case m.err != nil:
		b.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	case m.notice != "":
		b.WriteString(successStyle.Render("✓ " + m.notice))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send · ↑/↓ scroll · esc quit"))
	return b.String()
}

// headerView renders the session title, status badge and service health.
func (m monitorModel) headerView() string {
	title := titleStyle.Render("SNABEL") + "  " + m.opts.SessionID
	if s, ok := m.ctl.Registry().Get(m.opts.SessionID); ok {
		title += "  " + ui.StatusBadge(s.Status)
		if status.IsActive(s.Status) {
			title += " " + m.spinner.View()
		}
		if s.Description != "" {
			title += "  " + dimStyle.Render(s.Description)
		}
	}
	if m.opts.Health == nil {
		return title
	}

	h := m.opts.Health()
	health := fmt.Sprintf("frontend %s  backend %s  sessions %d",
		upDown(h.FrontendRunning), upDown(h.BackendRunning), h.SessionCount)
	if len(h.LastErrors) > 0 {
		health += "  " + warningStyle.Render(fmt.Sprintf("%d fetch error(s)", len(h.LastErrors)))
	}
	return title + "\n" + dimStyle.Render(health)
}

// sessionActive reports whether the backend is working on the session, which
// keeps the header spinner turning.
func (m monitorModel) sessionActive() bool {
	s, ok := m.ctl.Registry().Get(m.opts.SessionID)
	return ok && status.IsActive(s.Status)
}

func upDown(running bool) string {
	if running {
		return successStyle.Render("up")
	}
	return errorStyle.Render("down")
}

// RunMonitor runs the monitor until the user quits.
//
// Parameters:
//   - ctl: Sends commands and owns the registry
//   - logs: The log store the session's stream writes to
//   - opts: Which session to show and how
//
// Returns:
//   - error: Any error from the Bubble Tea program
func RunMonitor(ctl Commander, logs *session.Logs, opts MonitorOptions) error {
	sub, unsubscribe := logs.Subscribe(256)
	defer unsubscribe()

	restoreLogs := silenceLogs()
	defer restoreLogs()

	m := newMonitorModel(ctl, logs, sub, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
