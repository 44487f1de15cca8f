package logstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/session"
)

// logServer serves /ws/logs/<id>, writes the scripted frames for that id and
// then holds the connection open until the client goes away. When drop is set
// the server cuts the TCP connection right after the frames instead.
func logServer(t *testing.T, frames map[string][]string, drop bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/ws/logs/")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, f := range frames[id] {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if drop {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func messages(entries []session.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Level + " " + e.Message
	}
	return out
}

func TestManager_StreamsFramesIntoSessionLog(t *testing.T) {
	srv := logServer(t, map[string][]string{
		"s1": {
			`{"timestamp":"2026-01-01T10:00:00","level":"info","message":"agent started"}`,
			`not json at all`,
			`{"level":"WARN","message":"careful"}`,
		},
	}, false)

	logs := session.NewLogs(0)
	m := NewManager(APIDialer(srv.URL, time.Second), logs, Options{})
	require.NoError(t, m.Attach(context.Background(), "s1"))

	require.Eventually(t, func() bool { return len(logs.Entries("s1")) == 4 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{
		"INFO " + MsgConnected,
		"INFO agent started",
		"INFO not json at all",
		"WARN careful",
	}, messages(logs.Entries("s1")))

	assert.Equal(t, "s1", m.Detach())

	entries := logs.Entries("s1")
	require.Len(t, entries, 5)
	assert.Equal(t, MsgDisconnected, entries[4].Message)
	for _, e := range entries {
		assert.NotEqual(t, session.LevelError, e.Level, "a local detach is not an error")
	}

	_, ok := m.Active()
	assert.False(t, ok)
}

func TestManager_AttachTearsDownPreviousFirst(t *testing.T) {
	srv := logServer(t, map[string][]string{
		"a": {`{"level":"INFO","message":"from a"}`},
		"b": {`{"level":"INFO","message":"from b"}`},
	}, false)

	logs := session.NewLogs(0)
	feed, cancel := logs.Subscribe(256)
	defer cancel()

	m := NewManager(APIDialer(srv.URL, time.Second), logs, Options{})
	defer m.Close()

	require.NoError(t, m.Attach(context.Background(), "a"))
	require.Eventually(t, func() bool { return len(logs.Entries("a")) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Attach(context.Background(), "b"))
	require.Eventually(t, func() bool { return len(logs.Entries("b")) == 2 }, 2*time.Second, 10*time.Millisecond)

	var order []string
	for len(order) < 5 {
		select {
		case e := <-feed:
			order = append(order, e.SessionID+": "+e.Message)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for entries, got %v", order)
		}
	}
	assert.Equal(t, []string{
		"a: " + MsgConnected,
		"a: from a",
		"a: " + MsgDisconnected,
		"b: " + MsgConnected,
		"b: from b",
	}, order)

	active, ok := m.Active()
	assert.True(t, ok)
	assert.Equal(t, "b", active)

	// Nothing more arrives for the detached session.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, len(logs.Entries("a")))
}

func TestManager_ServerDropIsLoggedAsError(t *testing.T) {
	srv := logServer(t, map[string][]string{
		"s1": {`{"level":"INFO","message":"only line"}`},
	}, true)

	logs := session.NewLogs(0)
	m := NewManager(APIDialer(srv.URL, time.Second), logs, Options{})
	defer m.Close()

	require.NoError(t, m.Attach(context.Background(), "s1"))
	require.Eventually(t, func() bool { return !m.Connected() }, 2*time.Second, 10*time.Millisecond)

	entries := logs.Entries("s1")
	require.Len(t, entries, 4)
	assert.Equal(t, MsgConnected, entries[0].Message)
	assert.Equal(t, "only line", entries[1].Message)
	assert.Equal(t, session.LevelError, entries[2].Level)
	assert.True(t, strings.HasPrefix(entries[2].Message, MsgError+": "))
	assert.Equal(t, MsgDisconnected, entries[3].Message)

	// No reconnect by default; the session stays attached but idle.
	active, ok := m.Active()
	assert.True(t, ok)
	assert.Equal(t, "s1", active)
}

// fakeStream is an in-memory Stream.
type fakeStream struct {
	id     string
	events chan api.StreamEvent
	once   sync.Once
	closed atomic.Bool
}

func newFakeStream(id string) *fakeStream {
	s := &fakeStream{id: id, events: make(chan api.StreamEvent, 16)}
	s.events <- api.StreamEvent{Kind: api.EventOpen, ReceivedAt: time.Now()}
	return s
}

func (s *fakeStream) SessionID() string { return s.id }

func (s *fakeStream) Events() <-chan api.StreamEvent { return s.events }

func (s *fakeStream) Close() error {
	s.end(nil)
	return nil
}

func (s *fakeStream) send(level, message string) {
	s.events <- api.StreamEvent{Kind: api.EventMessage, Level: level, Message: message}
}

func (s *fakeStream) drop(err error) { s.end(err) }

func (s *fakeStream) end(err error) {
	s.once.Do(func() {
		s.closed.Store(true)
		if err != nil {
			s.events <- api.StreamEvent{Kind: api.EventError, Err: err}
		}
		s.events <- api.StreamEvent{Kind: api.EventClose}
		close(s.events)
	})
}

func TestManager_DialFailureWritesErrorThenDisconnect(t *testing.T) {
	logs := session.NewLogs(0)
	dial := func(ctx context.Context, id string) (Stream, error) {
		return nil, errors.New("connection refused")
	}
	m := NewManager(dial, logs, Options{})

	err := m.Attach(context.Background(), "s1")
	require.Error(t, err)

	assert.Equal(t, []string{
		"ERROR " + MsgError + ": connection refused",
		"INFO " + MsgDisconnected,
	}, messages(logs.Entries("s1")))

	_, ok := m.Active()
	assert.False(t, ok)
}

func TestManager_NeverTwoStreamsOpen(t *testing.T) {
	var mu sync.Mutex
	var opened []*fakeStream
	dial := func(ctx context.Context, id string) (Stream, error) {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range opened {
			if !s.closed.Load() {
				t.Errorf("dialing %s while %s is still open", id, s.id)
			}
		}
		s := newFakeStream(id)
		opened = append(opened, s)
		return s, nil
	}

	m := NewManager(dial, session.NewLogs(0), Options{})
	for _, id := range []string{"a", "b", "a", "c"} {
		require.NoError(t, m.Attach(context.Background(), id))
	}
	m.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, opened, 4)
	for _, s := range opened {
		assert.True(t, s.closed.Load())
	}
}

func TestManager_ReconnectWithBackoff(t *testing.T) {
	logs := session.NewLogs(0)

	first := newFakeStream("s1")
	second := newFakeStream("s1")
	var calls atomic.Int32
	dial := func(ctx context.Context, id string) (Stream, error) {
		switch calls.Add(1) {
		case 1:
			return first, nil
		case 2:
			return nil, errors.New("still down")
		default:
			return second, nil
		}
	}

	m := NewManager(dial, logs, Options{
		Reconnect:         true,
		ReconnectInitial:  5 * time.Millisecond,
		ReconnectMax:      10 * time.Millisecond,
		ReconnectAttempts: 3,
	})
	require.NoError(t, m.Attach(context.Background(), "s1"))

	first.send("INFO", "before drop")
	first.drop(errors.New("reset by peer"))

	require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	second.send("INFO", "after reconnect")
	require.Eventually(t, func() bool {
		entries := logs.Entries("s1")
		return len(entries) > 0 && entries[len(entries)-1].Message == "after reconnect"
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, m.Connected())

	m.Detach()
	assert.True(t, second.closed.Load())

	var reconnects int
	for _, e := range logs.Entries("s1") {
		if strings.HasPrefix(e.Message, "Reconnecting to log stream") {
			reconnects++
		}
	}
	assert.Equal(t, 2, reconnects)
}

func TestManager_DetachIsIdempotent(t *testing.T) {
	m := NewManager(func(ctx context.Context, id string) (Stream, error) {
		return newFakeStream(id), nil
	}, session.NewLogs(0), Options{})

	assert.Equal(t, "", m.Detach())
	require.NoError(t, m.Attach(context.Background(), "s1"))
	assert.Equal(t, "s1", m.Detach())
	assert.Equal(t, "", m.Detach())
	assert.False(t, m.Connected())
}

func TestManager_AttachRequiresSession(t *testing.T) {
	m := NewManager(nil, session.NewLogs(0), Options{})
	assert.ErrorIs(t, m.Attach(context.Background(), ""), ErrNoSession)
}
