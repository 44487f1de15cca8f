// Package logstream manages the single live log subscription of the client.
//
// The Manager owns at most one push channel at a time. Attaching to a session
// tears down the previous subscription completely (connection closed and its
// reader loop exited) before the new connection is dialed, so two channels are
// never open at once and a stale reader can never write after a re-attach.
//
// Each subscription has exactly one reader loop. It turns stream events into
// entries of the bound session's log, synthesizing an entry for every
// connectivity transition so the log is a faithful timeline.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/session"
)

// Messages written for connectivity transitions.
const (
	MsgConnected    = "Connected to log stream"
	MsgDisconnected = "Disconnected from log stream"
	MsgError        = "WebSocket connection error"
)

// Stream is a live push channel bound to one session.
type Stream interface {
	SessionID() string
	Events() <-chan api.StreamEvent
	Close() error
}

// Dialer opens a Stream for a session.
type Dialer func(ctx context.Context, sessionID string) (Stream, error)

// APIDialer returns a Dialer that connects to the backend websocket endpoint.
func APIDialer(baseURL string, handshakeTimeout time.Duration) Dialer {
	return func(ctx context.Context, sessionID string) (Stream, error) {
		s, err := api.DialLogStream(ctx, baseURL, sessionID, handshakeTimeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Options controls reconnection. The zero value never reconnects: a dropped
// channel stays dropped until the session is attached again.
type Options struct {
	// Reconnect enables exponential backoff reconnection after an unexpected drop.
	Reconnect bool

	// ReconnectInitial is the first backoff delay.
	ReconnectInitial time.Duration

	// ReconnectMax caps the backoff delay.
	ReconnectMax time.Duration

	// ReconnectAttempts bounds consecutive failed attempts.
	ReconnectAttempts int
}

func (o Options) withDefaults() Options {
	if o.ReconnectInitial <= 0 {
		o.ReconnectInitial = time.Second
	}
	if o.ReconnectMax < o.ReconnectInitial {
		o.ReconnectMax = 30 * time.Second
	}
	if o.ReconnectAttempts <= 0 {
		o.ReconnectAttempts = 5
	}
	return o
}

// ErrNoSession is returned when attaching without a session id.
var ErrNoSession = errors.New("no session to stream")

// subscription is one attachment of the Manager to a session.
type subscription struct {
	sessionID string
	ctx       context.Context
	cancel    context.CancelFunc

	mu     sync.Mutex
	stream Stream

	done chan struct{}
}

func (s *subscription) current() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func (s *subscription) replace(st Stream) {
	s.mu.Lock()
	s.stream = st
	s.mu.Unlock()
}

// Manager owns the single active log subscription.
type Manager struct {
	dial Dialer
	logs *session.Logs
	opts Options

	// mu serializes Attach and Detach.
	mu     sync.Mutex
	active *subscription
}

// NewManager creates a Manager writing into logs.
func NewManager(dial Dialer, logs *session.Logs, opts Options) *Manager {
	return &Manager{
		dial: dial,
		logs: logs,
		opts: opts.withDefaults(),
	}
}

// Logs returns the log store the Manager writes into.
func (m *Manager) Logs() *session.Logs {
	return m.logs
}

// Attach binds the Manager to sessionID. Any existing subscription, including
// one for the same session, is torn down first. A dial failure is recorded in
// the session's log and returned.
//
// Parameters:
//   - ctx: Context for the dial only; the subscription lives until Detach
//   - sessionID: The session to stream
//
// Returns:
//   - error: The dial error, if any
func (m *Manager) Attach(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.detachLocked()

	log.Debug("Attaching log stream", "session", sessionID)
	stream, err := m.dial(ctx, sessionID)
	if err != nil {
		m.logs.Append(sessionID, session.LevelError, fmt.Sprintf("%s: %v", MsgError, err), time.Now())
		m.logs.Append(sessionID, session.LevelInfo, MsgDisconnected, time.Now())
		return fmt.Errorf("failed to open log stream: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		sessionID: sessionID,
		ctx:       subCtx,
		cancel:    cancel,
		stream:    stream,
		done:      make(chan struct{}),
	}
	m.active = sub

	go m.run(sub)
	return nil
}

// Detach tears down the active subscription, if any, and waits for its reader
// loop to exit. Safe to call multiple times.
//
// Returns:
//   - string: The session that was detached, or "" if none
func (m *Manager) Detach() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detachLocked()
}

func (m *Manager) detachLocked() string {
	sub := m.active
	if sub == nil {
		return ""
	}
	m.active = nil

	sub.cancel()
	if st := sub.current(); st != nil {
		_ = st.Close()
	}
	<-sub.done

	log.Debug("Detached log stream", "session", sub.sessionID)
	return sub.sessionID
}

// Close detaches the active subscription.
func (m *Manager) Close() {
	m.Detach()
}

// Active returns the session the Manager is attached to. The subscription may
// have dropped; see Connected.
func (m *Manager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return "", false
	}
	return m.active.sessionID, true
}

// Connected reports whether the active subscription still has a live reader.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	sub := m.active
	m.mu.Unlock()
	if sub == nil {
		return false
	}
	select {
	case <-sub.done:
		return false
	default:
		return true
	}
}

// run is the single reader loop of a subscription.
func (m *Manager) run(sub *subscription) {
	defer close(sub.done)

	stream := sub.current()
	for stream != nil {
		m.consume(sub.sessionID, stream)

		if !m.opts.Reconnect || sub.ctx.Err() != nil {
			return
		}
		stream = m.reconnect(sub)
	}
}

// consume drains one stream into the session log until its channel closes.
func (m *Manager) consume(sessionID string, stream Stream) {
	for ev := range stream.Events() {
		switch ev.Kind {
		case api.EventOpen:
			m.logs.Append(sessionID, session.LevelInfo, MsgConnected, ev.ReceivedAt)
		case api.EventMessage:
			m.logs.Append(sessionID, ev.Level, ev.Message, ev.ReceivedAt)
		case api.EventError:
			log.Debug("Log stream error", "session", sessionID, "err", ev.Err)
			m.logs.Append(sessionID, session.LevelError, fmt.Sprintf("%s: %v", MsgError, ev.Err), ev.ReceivedAt)
		case api.EventClose:
			m.logs.Append(sessionID, session.LevelInfo, MsgDisconnected, ev.ReceivedAt)
		}
	}
}

// reconnect dials again with capped exponential backoff. It returns nil when
// the subscription was detached or the attempts are exhausted.
func (m *Manager) reconnect(sub *subscription) Stream {
	delay := m.opts.ReconnectInitial
	for attempt := 1; attempt <= m.opts.ReconnectAttempts; attempt++ {
		timer := time.NewTimer(delay)
		select {
		case <-sub.ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		m.logs.Append(sub.sessionID, session.LevelInfo,
			fmt.Sprintf("Reconnecting to log stream (attempt %d/%d)", attempt, m.opts.ReconnectAttempts), time.Now())

		stream, err := m.dial(sub.ctx, sub.sessionID)
		if err == nil {
			sub.replace(stream)
			if sub.ctx.Err() != nil {
				// Detached while dialing; the detacher may have missed this stream.
				_ = stream.Close()
				for range stream.Events() {
				}
				return nil
			}
			return stream
		}
		if sub.ctx.Err() != nil {
			return nil
		}

		log.Debug("Log stream reconnect failed", "session", sub.sessionID, "attempt", attempt, "err", err)
		m.logs.Append(sub.sessionID, session.LevelError, fmt.Sprintf("%s: %v", MsgError, err), time.Now())

		delay *= 2
		if delay > m.opts.ReconnectMax {
			delay = m.opts.ReconnectMax
		}
	}

	m.logs.Append(sub.sessionID, session.LevelWarn, "Giving up on log stream; view the session again to reconnect", time.Now())
	return nil
}
