// Package api provides the HTTP and WebSocket clients for the migration service.
//
// This file contains the LogStream, a read-only websocket subscription to the
// log events of one session. Frames are delivered as typed StreamEvents over a
// single channel consumed by one reader (see internal/logstream).
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// DefaultHandshakeTimeout bounds the websocket upgrade.
const DefaultHandshakeTimeout = 30 * time.Second

// StreamEventKind identifies what happened on a log stream.
type StreamEventKind int

const (
	// EventOpen is emitted once, first, after the upgrade succeeds.
	EventOpen StreamEventKind = iota

	// EventMessage carries one server frame.
	EventMessage

	// EventError reports a transport failure. EventClose always follows.
	EventError

	// EventClose is emitted once, last, before the channel is closed.
	EventClose
)

// String returns the event kind name.
func (k StreamEventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// StreamEvent is one event observed on a log stream.
type StreamEvent struct {
	// Kind is the event type.
	Kind StreamEventKind

	// Level is the log level of an EventMessage (always upper-case).
	Level string

	// Message is the log text of an EventMessage.
	Message string

	// Raw contains the original frame bytes for EventMessage.
	Raw []byte

	// Err is the transport error for EventError.
	Err error

	// ReceivedAt is when the event was observed locally.
	ReceivedAt time.Time
}

// LogStream is a live websocket subscription to one session's log events.
type LogStream struct {
	// conn is the underlying WebSocket connection.
	conn *websocket.Conn

	// sessionID is the session this stream is bound to.
	sessionID string

	// events delivers everything observed on the connection, in receipt order.
	events chan StreamEvent

	// mu protects closed and writes to conn.
	mu sync.Mutex

	// closed is set once Close has been called.
	closed bool
}

// LogStreamURL builds the push channel URL for a session. The websocket scheme
// mirrors the transport security of the base URL.
//
// Parameters:
//   - baseURL: The backend base URL (http, https, ws or wss)
//   - sessionID: The session to stream
//
// Returns:
//   - string: The websocket URL (e.g. "wss://host/ws/logs/<id>")
//   - error: If the base URL cannot be parsed
func LogStreamURL(baseURL, sessionID string) (string, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "http", "ws":
		parsedURL.Scheme = "ws"
	case "https", "wss":
		parsedURL.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base URL scheme %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return "", fmt.Errorf("base URL %q has no host", baseURL)
	}

	parsedURL.Path = strings.TrimRight(parsedURL.Path, "/") + "/ws/logs/" + url.PathEscape(sessionID)
	parsedURL.RawPath = ""
	parsedURL.RawQuery = ""
	return parsedURL.String(), nil
}

// DialLogStream opens the log stream for a session.
//
// The returned stream has already queued EventOpen and started its read loop.
//
// Parameters:
//   - ctx: Context for the handshake
//   - baseURL: The backend base URL
//   - sessionID: The session to stream
//   - handshakeTimeout: Upgrade timeout; zero uses DefaultHandshakeTimeout
//
// Returns:
//   - *LogStream: The live stream
//   - error: Any error that occurred during connection
func DialLogStream(ctx context.Context, baseURL, sessionID string, handshakeTimeout time.Duration) (*LogStream, error) {
	wsURL, err := LogStreamURL(baseURL, sessionID)
	if err != nil {
		return nil, err
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}

	header := http.Header{}
	header.Set("User-Agent", UserAgent)

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	s := &LogStream{
		conn:      conn,
		sessionID: sessionID,
		events:    make(chan StreamEvent, 64),
	}
	s.events <- StreamEvent{Kind: EventOpen, ReceivedAt: time.Now()}

	go s.readLoop()

	return s, nil
}

// SessionID returns the session this stream is bound to.
func (s *LogStream) SessionID() string {
	return s.sessionID
}

// Events returns the channel of stream events. It is closed after EventClose.
func (s *LogStream) Events() <-chan StreamEvent {
	return s.events
}

// readLoop reads frames until the connection ends. Every frame produces exactly
// one EventMessage; the loop never stops because of frame content.
func (s *LogStream) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosed() && !isNormalClose(err) {
				s.events <- StreamEvent{Kind: EventError, Err: err, ReceivedAt: time.Now()}
			}
			s.events <- StreamEvent{Kind: EventClose, ReceivedAt: time.Now()}
			return
		}

		level, message := ParseLogFrame(data)
		s.events <- StreamEvent{
			Kind:       EventMessage,
			Level:      level,
			Message:    message,
			Raw:        data,
			ReceivedAt: time.Now(),
		}
	}
}

func (s *LogStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func isNormalClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}

// Close closes the connection. The read loop then emits EventClose and closes
// the events channel. Safe to call multiple times.
//
// Returns:
//   - error: Any error that occurred during close
func (s *LogStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
		time.Now().Add(time.Second),
	)
	return s.conn.Close()
}

// ParseLogFrame decodes a `{level, message}` frame. Anything else (invalid
// JSON, a non-object, or an object whose "message" is missing or not a string)
// is returned verbatim as an INFO message.
//
// Parameters:
//   - data: The raw frame
//
// Returns:
//   - string: The upper-case level, "INFO" when absent
//   - string: The message text
func ParseLogFrame(data []byte) (string, string) {
	if !gjson.ValidBytes(data) {
		return "INFO", string(data)
	}
	frame := gjson.ParseBytes(data)
	if !frame.IsObject() {
		return "INFO", string(data)
	}
	message := frame.Get("message")
	if message.Type != gjson.String {
		return "INFO", string(data)
	}

	level := strings.ToUpper(strings.TrimSpace(frame.Get("level").String()))
	if level == "" {
		level = "INFO"
	}
	return level, message.String()
}
