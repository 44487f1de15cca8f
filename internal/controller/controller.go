// Package controller implements the user-facing session operations.
//
// The Controller is the only writer of focus and the only owner of the log
// stream attachment. Backend state changes are never asserted locally; the one
// exception is the optimistic merged mark set after a successful merge, which
// the next backend snapshot overrides.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/session"
	"github.com/snabel/cli/internal/status"
)

// Local validation and gate errors.
var (
	ErrDescriptionRequired = errors.New("description is required")
	ErrFileRequired        = errors.New("archive file is required")
	ErrCommandRequired     = errors.New("command is required")
	ErrNotFocused          = errors.New("session is not the focused session")
	ErrCancelled           = errors.New("cancelled")
	ErrUnknownSession      = errors.New("unknown session")
)

// Backend is the subset of the API client the Controller calls.
type Backend interface {
	CreateSession(ctx context.Context, req *api.CreateSessionRequest) (*api.CreateSessionResponse, error)
	UploadArchive(ctx context.Context, sessionID, filePath string) (*api.UploadResponse, error)
	StartSession(ctx context.Context, sessionID string, req *api.StartRequest) (*api.StartResponse, error)
	StopSession(ctx context.Context, sessionID string) (*api.StopResponse, error)
	SendCommand(ctx context.Context, sessionID, command string) error
	MergeSession(ctx context.Context, sessionID, commitMessage string) (*api.MergeResponse, error)
	GetSession(ctx context.Context, sessionID string) (*api.Session, error)
	ListSessions(ctx context.Context, limit int) ([]api.Session, error)
	ValidateSession(ctx context.Context, sessionID string) (*api.ValidationResult, error)
	GetDiff(ctx context.Context, sessionID string) (string, error)
	GetChanges(ctx context.Context, sessionID string) ([]string, error)
	ListMfes(ctx context.Context) ([]api.Mfe, error)
	GetConfig(ctx context.Context) (map[string]string, error)
	UpdateConfig(ctx context.Context, updates map[string]string) (string, error)
	ResetFrontend(ctx context.Context) (*api.ResetResponse, error)
}

// Streamer is the log stream attachment the Controller drives.
type Streamer interface {
	Attach(ctx context.Context, sessionID string) error
	Detach() string
	Active() (string, bool)
}

// Confirmer gates destructive operations. It is asked synchronously before
// the request is issued.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to a Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) (bool, error) {
	return f(prompt)
}

// AlwaysConfirm accepts every confirmation.
var AlwaysConfirm = ConfirmFunc(func(string) (bool, error) { return true, nil })

// CreateInput holds the fields captured when a session is created.
type CreateInput struct {
	Description  string
	Instructions string
	TargetMfe    string
}

// StartOptions holds the optional start parameters.
type StartOptions struct {
	AdditionalInstructions string
}

// ViewResult describes the outcome of View.
type ViewResult struct {
	// Session is the freshly fetched snapshot.
	Session api.Session

	// Focused is false when a newer focus change superseded this view.
	Focused bool

	// Streaming is true when the log stream was attached for the session.
	Streaming bool
}

// Controller runs session operations against a Backend and keeps the Registry
// and the log stream attachment consistent with them.
type Controller struct {
	backend  Backend
	registry *session.Registry
	stream   Streamer
	confirm  Confirmer

	sessionLimit int

	// mu serializes focus changes together with stream attach/detach.
	mu sync.Mutex

	// epoch is bumped by every focus-changing operation.
	epoch atomic.Uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfirmer sets the confirmation gate. The default declines everything.
func WithConfirmer(c Confirmer) Option {
	return func(ctl *Controller) { ctl.confirm = c }
}

// WithSessionLimit sets the page size used by Refresh.
func WithSessionLimit(limit int) Option {
	return func(ctl *Controller) { ctl.sessionLimit = limit }
}

// New creates a Controller.
func New(backend Backend, registry *session.Registry, stream Streamer, opts ...Option) *Controller {
	c := &Controller{
		backend:      backend,
		registry:     registry,
		stream:       stream,
		confirm:      ConfirmFunc(func(string) (bool, error) { return false, nil }),
		sessionLimit: 50,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the Registry the Controller writes into.
func (c *Controller) Registry() *session.Registry {
	return c.registry
}

// Create creates a session, records a CREATED snapshot for it and focuses it.
// An empty description fails locally without a request.
//
// Parameters:
//   - ctx: Context for cancellation
//   - in: The description, instructions and target MFE
//
// Returns:
//   - string: The new session id
//   - error: ErrDescriptionRequired or the backend error
func (c *Controller) Create(ctx context.Context, in CreateInput) (string, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return "", ErrDescriptionRequired
	}

	resp, err := c.backend.CreateSession(ctx, &api.CreateSessionRequest{
		Description:  description,
		Instructions: in.Instructions,
		TargetMfe:    in.TargetMfe,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	st := resp.Status
	if st == "" {
		st = string(status.StatusCreated)
	}
	targetMfe := in.TargetMfe
	if resp.TargetMfe != "" {
		targetMfe = resp.TargetMfe
	}
	c.registry.Upsert(api.Session{
		SessionID:    resp.SessionID,
		Description:  description,
		Instructions: in.Instructions,
		TargetMfe:    targetMfe,
		Status:       st,
		CreatedAt:    resp.CreatedAt,
	})

	c.epoch.Add(1)
	c.mu.Lock()
	c.focusLocked(resp.SessionID)
	c.mu.Unlock()

	log.Debug("Created session", "session", resp.SessionID)
	return resp.SessionID, nil
}

// UploadArchive uploads an archive for a known session and returns the
// backend's file analysis.
func (c *Controller) UploadArchive(ctx context.Context, sessionID, filePath string) (*api.Analysis, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, ErrFileRequired
	}
	if err := c.ensureKnown(ctx, sessionID); err != nil {
		return nil, err
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read archive: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cannot read archive: %s is a directory", filePath)
	}

	resp, err := c.backend.UploadArchive(ctx, sessionID, filePath)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return &resp.Analysis, nil
}

// Start starts the agent for a session, focuses it and attaches the log
// stream. A stream failure does not fail Start; it shows up in the session log.
//
// Returns:
//   - string: The branch name the agent works on
//   - error: The backend error, if any
func (c *Controller) Start(ctx context.Context, sessionID string, opts StartOptions) (string, error) {
	if err := c.ensureKnown(ctx, sessionID); err != nil {
		return "", err
	}

	resp, err := c.backend.StartSession(ctx, sessionID, &api.StartRequest{
		AdditionalInstructions: opts.AdditionalInstructions,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}

	if snap, ok := c.registry.Get(sessionID); ok && resp.BranchName != "" {
		snap.BranchName = resp.BranchName
		c.registry.Upsert(snap)
	}

	c.epoch.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.Focus(sessionID)
	if err := c.stream.Attach(ctx, sessionID); err != nil {
		log.Warn("Log stream unavailable", "session", sessionID, "err", err)
	}
	return resp.BranchName, nil
}

// Stop asks the backend to stop a session's agent after confirmation. The log
// stream stays attached so the final output is still received.
func (c *Controller) Stop(ctx context.Context, sessionID string) (*api.StopResponse, error) {
	if err := c.ensureKnown(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := c.gate(fmt.Sprintf("Stop session %s?", sessionID)); err != nil {
		return nil, err
	}

	resp, err := c.backend.StopSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to stop session: %w", err)
	}
	return resp, nil
}

// SendCommand forwards a command to the focused session's agent.
func (c *Controller) SendCommand(ctx context.Context, sessionID, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return ErrCommandRequired
	}
	if !c.registry.IsFocused(sessionID) {
		return ErrNotFocused
	}

	if err := c.backend.SendCommand(ctx, sessionID, command); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// Merge merges a session branch after confirmation, marks the session merged
// and refreshes the session list. A failed refresh is logged only.
func (c *Controller) Merge(ctx context.Context, sessionID, commitMessage string) (*api.MergeResponse, error) {
	if err := c.ensureKnown(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := c.gate(fmt.Sprintf("Merge session %s into the main branch?", sessionID)); err != nil {
		return nil, err
	}

	resp, err := c.backend.MergeSession(ctx, sessionID, commitMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to merge session: %w", err)
	}

	c.registry.MarkMerged(sessionID)
	if _, err := c.Refresh(ctx); err != nil {
		log.Warn("Session refresh after merge failed", "err", err)
	}
	return resp, nil
}

// View fetches a session from the backend and focuses it. The log stream is
// attached when the session is running; otherwise any stream bound to another
// session is detached. A response that arrives after a newer focus change is
// stored but does not move focus.
func (c *Controller) View(ctx context.Context, sessionID string) (*ViewResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrUnknownSession
	}
	epoch := c.epoch.Add(1)

	snap, err := c.backend.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", c.wrapLookup(sessionID, err))
	}
	c.registry.Upsert(*snap)

	result := &ViewResult{Session: *snap}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch.Load() != epoch {
		log.Debug("Ignoring superseded view", "session", sessionID)
		return result, nil
	}
	result.Focused = true
	c.registry.Focus(sessionID)

	if snap.IsRunning {
		if err := c.stream.Attach(ctx, sessionID); err != nil {
			log.Warn("Log stream unavailable", "session", sessionID, "err", err)
		} else {
			result.Streaming = true
		}
		return result, nil
	}

	if active, ok := c.stream.Active(); ok && active != sessionID {
		c.stream.Detach()
	}
	return result, nil
}

// Focus makes a session the focused one without fetching it. A stream bound to
// another session is detached.
func (c *Controller) Focus(sessionID string) {
	c.epoch.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focusLocked(sessionID)
}

func (c *Controller) focusLocked(sessionID string) {
	c.registry.Focus(sessionID)
	if active, ok := c.stream.Active(); ok && active != sessionID {
		c.stream.Detach()
	}
}

// Unfocus clears the focus and detaches the log stream.
func (c *Controller) Unfocus() {
	c.epoch.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.ClearFocus()
	c.stream.Detach()
}

// ResetFrontend discards uncommitted frontend changes after confirmation.
//
// Returns:
//   - string: The backend's message
//   - error: ErrCancelled or the backend error
func (c *Controller) ResetFrontend(ctx context.Context) (string, error) {
	if err := c.gate("Reset the frontend repository? All uncommitted changes will be lost."); err != nil {
		return "", err
	}
	resp, err := c.backend.ResetFrontend(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to reset frontend: %w", err)
	}
	return resp.Message, nil
}

// Validate runs the backend checks for a session and refreshes its snapshot.
func (c *Controller) Validate(ctx context.Context, sessionID string) (*api.ValidationResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrUnknownSession
	}
	result, err := c.backend.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", c.wrapLookup(sessionID, err))
	}

	if snap, err := c.backend.GetSession(ctx, sessionID); err != nil {
		log.Warn("Session refresh after validation failed", "session", sessionID, "err", err)
	} else {
		c.registry.Upsert(*snap)
	}
	return result, nil
}

// Diff returns the diff of a session branch.
func (c *Controller) Diff(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrUnknownSession
	}
	diff, err := c.backend.GetDiff(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to get diff: %w", c.wrapLookup(sessionID, err))
	}
	return diff, nil
}

// Changes returns the files changed on a session branch.
func (c *Controller) Changes(ctx context.Context, sessionID string) ([]string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrUnknownSession
	}
	changes, err := c.backend.GetChanges(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get changes: %w", c.wrapLookup(sessionID, err))
	}
	return changes, nil
}

// Mfes lists the micro-frontends a session can target.
func (c *Controller) Mfes(ctx context.Context) ([]api.Mfe, error) {
	mfes, err := c.backend.ListMfes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list MFEs: %w", err)
	}
	return mfes, nil
}

// Config returns the backend configuration.
func (c *Controller) Config(ctx context.Context) (map[string]string, error) {
	cfg, err := c.backend.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}
	return cfg, nil
}

// UpdateConfig sends configuration updates to the backend.
func (c *Controller) UpdateConfig(ctx context.Context, updates map[string]string) (string, error) {
	if len(updates) == 0 {
		return "", errors.New("no configuration changes given")
	}
	msg, err := c.backend.UpdateConfig(ctx, updates)
	if err != nil {
		return "", fmt.Errorf("failed to update configuration: %w", err)
	}
	return msg, nil
}

// Refresh fetches the session list into the Registry and returns it in
// backend order.
func (c *Controller) Refresh(ctx context.Context) ([]api.Session, error) {
	list, err := c.backend.ListSessions(ctx, c.sessionLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	c.registry.UpsertAll(list)
	return list, nil
}

// gate asks the Confirmer and maps a decline to ErrCancelled.
func (c *Controller) gate(prompt string) error {
	ok, err := c.confirm.Confirm(prompt)
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

// ensureKnown makes sure the Registry has a snapshot for sessionID, fetching
// it from the backend when this process has not seen it yet.
func (c *Controller) ensureKnown(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrUnknownSession
	}
	if _, ok := c.registry.Get(sessionID); ok {
		return nil
	}
	snap, err := c.backend.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", c.wrapLookup(sessionID, err))
	}
	c.registry.Upsert(*snap)
	return nil
}

func (c *Controller) wrapLookup(sessionID string, err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.IsNotFound() {
		return fmt.Errorf("%w %s: %v", ErrUnknownSession, sessionID, err)
	}
	return err
}
