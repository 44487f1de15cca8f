// Package status provides the migration session lifecycle states and helpers.
//
// This package centralizes all status-related logic so the poller, controller and
// renderers agree on which states exist, which are terminal, and how an unknown
// backend value is displayed. It mirrors the backend SessionStatus enum.
package status

import "strings"

// SessionStatus represents the lifecycle status of a migration session.
// Values are upper-case, matching the backend wire format.
type SessionStatus string

const (
	// StatusCreated indicates the session exists and is ready for input.
	StatusCreated SessionStatus = "CREATED"

	// StatusUnpacking indicates the uploaded archive is being unpacked.
	StatusUnpacking SessionStatus = "UNPACKING"

	// StatusAnalyzing indicates the unpacked code is being analyzed.
	StatusAnalyzing SessionStatus = "ANALYZING"

	// StatusTransforming indicates the agent is transforming code.
	StatusTransforming SessionStatus = "TRANSFORMING"

	// StatusRunning indicates the agent process is actively running.
	StatusRunning SessionStatus = "RUNNING"

	// StatusPaused indicates the agent was paused by the user.
	StatusPaused SessionStatus = "PAUSED"

	// StatusValidating indicates validation checks are running.
	StatusValidating SessionStatus = "VALIDATING"

	// StatusCompleted indicates the transformation finished successfully.
	StatusCompleted SessionStatus = "COMPLETED"

	// StatusFailed indicates the session ended with an error.
	StatusFailed SessionStatus = "FAILED"

	// StatusMerged indicates the session branch was merged.
	StatusMerged SessionStatus = "MERGED"

	// StatusUnknown is the display fallback for values outside the enumeration.
	// It is never sent by the backend.
	StatusUnknown SessionStatus = "UNKNOWN"
)

// All lists every known status in lifecycle order.
var All = []SessionStatus{
	StatusCreated,
	StatusUnpacking,
	StatusAnalyzing,
	StatusTransforming,
	StatusRunning,
	StatusPaused,
	StatusValidating,
	StatusCompleted,
	StatusFailed,
	StatusMerged,
}

var known = func() map[SessionStatus]bool {
	m := make(map[SessionStatus]bool, len(All))
	for _, s := range All {
		m[s] = true
	}
	return m
}()

// terminalStatuses contains the statuses no backend transition leaves.
var terminalStatuses = map[SessionStatus]bool{
	StatusMerged: true,
	StatusFailed: true,
}

// activeStatuses contains the statuses in which backend work is in progress.
var activeStatuses = map[SessionStatus]bool{
	StatusUnpacking:    true,
	StatusAnalyzing:    true,
	StatusTransforming: true,
	StatusRunning:      true,
	StatusPaused:       true,
	StatusValidating:   true,
}

// transitions is the legal lifecycle graph. FAILED is added for every
// non-terminal state in CanTransition.
var transitions = map[SessionStatus][]SessionStatus{
	StatusCreated:      {StatusUnpacking, StatusTransforming, StatusRunning},
	StatusUnpacking:    {StatusAnalyzing},
	StatusAnalyzing:    {StatusTransforming, StatusRunning},
	StatusTransforming: {StatusPaused, StatusValidating, StatusCompleted},
	StatusRunning:      {StatusPaused, StatusValidating, StatusCompleted},
	StatusPaused:       {StatusTransforming, StatusRunning},
	StatusValidating:   {StatusCompleted},
	StatusCompleted:    {StatusMerged},
}

// Parse normalizes a raw status string.
//
// Parameters:
//   - raw: The status string from the backend (case-insensitive)
//
// Returns:
//   - SessionStatus: The matching status, or StatusUnknown
//   - bool: True if raw named a known status
func Parse(raw string) (SessionStatus, bool) {
	s := SessionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if known[s] {
		return s, true
	}
	return StatusUnknown, false
}

// IsKnown reports whether raw names a member of the enumeration.
func IsKnown(raw string) bool {
	_, ok := Parse(raw)
	return ok
}

// Label returns the display label for raw, falling back to "UNKNOWN".
func Label(raw string) string {
	s, _ := Parse(raw)
	return string(s)
}

// IsTerminal checks if a status string indicates the session can no longer change.
//
// Parameters:
//   - raw: The status string to check (case-insensitive)
//
// Returns:
//   - bool: True for MERGED and FAILED
func IsTerminal(raw string) bool {
	s, _ := Parse(raw)
	return terminalStatuses[s]
}

// IsSettled reports whether the agent has finished its work: terminal, or
// COMPLETED and waiting for a merge.
func IsSettled(raw string) bool {
	s, _ := Parse(raw)
	return terminalStatuses[s] || s == StatusCompleted
}

// IsActive checks if a status string indicates backend work is in progress.
//
// Parameters:
//   - raw: The status string to check (case-insensitive)
//
// Returns:
//   - bool: True if the status is between CREATED and COMPLETED
func IsActive(raw string) bool {
	s, _ := Parse(raw)
	return activeStatuses[s]
}

// CanTransition reports whether the backend may move a session from one status
// to another. Unknown statuses never transition. The client uses this only for
// diagnostics; backend snapshots are accepted regardless.
func CanTransition(from, to string) bool {
	f, okFrom := Parse(from)
	t, okTo := Parse(to)
	if !okFrom || !okTo {
		return false
	}
	if f == t {
		return true
	}
	if terminalStatuses[f] {
		return false
	}
	if t == StatusFailed {
		return true
	}
	for _, next := range transitions[f] {
		if next == t {
			return true
		}
	}
	return false
}

// StatusIcon returns the appropriate icon for a status.
//
// Icons:
//   - created: ○
//   - unpacking/analyzing/validating: ⏳
//   - transforming/running: ▶
//   - paused: ⏸
//   - completed: ✓
//   - merged: ⇲
//   - failed: ✗
//   - unknown: ●
func StatusIcon(raw string) string {
	s, _ := Parse(raw)
	switch s {
	case StatusCreated:
		return "○"
	case StatusUnpacking, StatusAnalyzing, StatusValidating:
		return "⏳"
	case StatusTransforming, StatusRunning:
		return "▶"
	case StatusPaused:
		return "⏸"
	case StatusCompleted:
		return "✓"
	case StatusMerged:
		return "⇲"
	case StatusFailed:
		return "✗"
	default:
		return "●"
	}
}

// StatusCategory returns the category of a status for styling purposes.
//
// Categories:
//   - "dim": created, unknown
//   - "info": unpacking, analyzing, transforming, running, validating
//   - "warning": paused
//   - "success": completed
//   - "merged": merged
//   - "error": failed
func StatusCategory(raw string) string {
	s, _ := Parse(raw)
	switch s {
	case StatusUnpacking, StatusAnalyzing, StatusTransforming, StatusRunning, StatusValidating:
		return "info"
	case StatusPaused:
		return "warning"
	case StatusCompleted:
		return "success"
	case StatusMerged:
		return "merged"
	case StatusFailed:
		return "error"
	default:
		return "dim"
	}
}
