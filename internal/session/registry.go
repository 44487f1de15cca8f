// Package session holds the client-side view of migration sessions: the
// Registry of the latest known snapshot per session plus the focused session,
// and the per-session append-only log buffers.
//
// Nothing in this package is authoritative. Every snapshot is superseded by the
// next successful fetch for the same id, and sessions are never removed.
package session

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/status"
)

// Entry is the Registry's record for one session.
type Entry struct {
	// Session is the most recent snapshot.
	Session api.Session

	// FetchedAt is when the snapshot was stored.
	FetchedAt time.Time

	// OptimisticMerge is set while merged=true is asserted locally and not yet
	// confirmed by a backend snapshot.
	OptimisticMerge bool
}

// Registry maps session ids to their latest snapshot and tracks the single
// focused session. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
	focused string
	now     func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Upsert stores a snapshot, superseding whatever was known for that id.
// A backend snapshot always wins over an optimistic local mark.
func (r *Registry) Upsert(s api.Session) {
	if s.SessionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(s)
}

func (r *Registry) upsertLocked(s api.Session) {
	prev, ok := r.entries[s.SessionID]
	if !ok {
		r.order = append(r.order, s.SessionID)
		r.entries[s.SessionID] = &Entry{Session: s, FetchedAt: r.now()}
		return
	}

	if prev.OptimisticMerge && !s.Merged {
		log.Debug("Backend snapshot overrides optimistic merge", "session", s.SessionID)
	}
	if prev.Session.Status != "" && s.Status != "" && !status.CanTransition(prev.Session.Status, s.Status) {
		log.Debug("Unexpected status transition", "session", s.SessionID, "from", prev.Session.Status, "to", s.Status)
	}

	// Fields only present on the single-session endpoint survive list refreshes.
	merged := s
	if merged.Instructions == "" {
		merged.Instructions = prev.Session.Instructions
	}
	if merged.TargetMfe == "" {
		merged.TargetMfe = prev.Session.TargetMfe
	}
	if merged.BranchName == "" {
		merged.BranchName = prev.Session.BranchName
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = prev.Session.CreatedAt
	}

	prev.Session = merged
	prev.FetchedAt = r.now()
	prev.OptimisticMerge = false
}

// UpsertAll stores a list of snapshots and adopts the list's order. Sessions
// missing from the list are kept, after the listed ones.
func (r *Registry) UpsertAll(list []api.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listed := make(map[string]bool, len(list))
	order := make([]string, 0, len(r.order)+len(list))
	for _, s := range list {
		if s.SessionID == "" || listed[s.SessionID] {
			continue
		}
		r.upsertLocked(s)
		listed[s.SessionID] = true
		order = append(order, s.SessionID)
	}
	for _, id := range r.order {
		if !listed[id] {
			order = append(order, id)
		}
	}
	r.order = order
}

// MarkMerged optimistically sets merged=true for a session after the client's
// own merge request succeeded. It reports false for an unknown session.
func (r *Registry) MarkMerged(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[sessionID]
	if !ok {
		return false
	}
	if !e.Session.Merged {
		e.Session.Merged = true
		e.OptimisticMerge = true
	}
	return true
}

// Get returns the snapshot for a session.
func (r *Registry) Get(sessionID string) (api.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[sessionID]
	if !ok {
		return api.Session{}, false
	}
	return e.Session, true
}

// Entry returns the full record for a session.
func (r *Registry) Entry(sessionID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[sessionID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns all known snapshots in display order.
func (r *Registry) List() []api.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]api.Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].Session)
	}
	return out
}

// Focus makes sessionID the focused session and returns the previously focused
// id. Focusing does not require the session to be known yet.
func (r *Registry) Focus(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.focused
	r.focused = sessionID
	return prev
}

// ClearFocus removes the focus.
func (r *Registry) ClearFocus() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focused = ""
}

// Focused returns the focused session id.
func (r *Registry) Focused() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.focused, r.focused != ""
}

// IsFocused reports whether sessionID is the focused session.
func (r *Registry) IsFocused(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sessionID != "" && r.focused == sessionID
}
