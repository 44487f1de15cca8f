package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/status"
)

// StatusTracker prints a line each time a watched session changes status.
// It remembers the last status seen per session so repeated polls of an
// unchanged session print nothing.
type StatusTracker struct {
	// last stores the last seen status per session id.
	last map[string]string

	out io.Writer
	now func() time.Time

	// mu protects concurrent access to tracker state.
	mu sync.Mutex
}

// NewStatusTracker creates a tracker writing to out.
func NewStatusTracker(out io.Writer) *StatusTracker {
	return &StatusTracker{
		last: make(map[string]string),
		out:  out,
		now:  time.Now,
	}
}

// Update records a snapshot and prints a transition line if its status moved.
//
// Parameters:
//   - s: The latest session snapshot
//
// Returns:
//   - bool: True if a transition was printed
func (t *StatusTracker) Update(s api.Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, seen := t.last[s.SessionID]
	if seen && prev == s.Status {
		return false
	}
	t.last[s.SessionID] = s.Status

	stamp := DimStyle.Render(t.now().Format("15:04:05"))
	var line string
	if !seen {
		line = fmt.Sprintf("%s %s %s", stamp, s.SessionID, StatusBadge(s.Status))
	} else {
		line = fmt.Sprintf("%s %s %s → %s", stamp, s.SessionID, StatusBadge(prev), StatusBadge(s.Status))
		if !status.CanTransition(prev, s.Status) {
			line += " " + WarningStyle.Render("(unexpected transition)")
		}
	}
	if !status.IsKnown(s.Status) {
		line += " " + DimStyle.Render(fmt.Sprintf("(backend reported %q)", s.Status))
	}
	fmt.Fprintln(t.out, line)
	return true
}

// Settled reports whether the last seen status of a session is settled.
func (t *StatusTracker) Settled(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.last[sessionID]
	return ok && status.IsSettled(s)
}
