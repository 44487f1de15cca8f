package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/logstream"
	"github.com/snabel/cli/internal/session"
)

// testBackend is an in-memory migration backend served over HTTP.
type testBackend struct {
	t   *testing.T
	srv *httptest.Server

	requests atomic.Int32

	mu       sync.Mutex
	sessions map[string]*api.Session
	order    []string
	hits     map[string]int

	// slow, when set, blocks GET /api/import/session/slow until closed.
	slow    chan struct{}
	slowHit chan struct{}
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{
		t:        t,
		sessions: make(map[string]*api.Session),
		hits:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/import/session", b.create)
	mux.HandleFunc("GET /api/import/session/{id}", b.get)
	mux.HandleFunc("GET /api/import/sessions", b.list)
	mux.HandleFunc("POST /api/import/session/{id}/upload", b.upload)
	mux.HandleFunc("POST /api/import/session/{id}/start", b.start)
	mux.HandleFunc("POST /api/import/session/{id}/stop", b.stop)
	mux.HandleFunc("POST /api/import/session/{id}/command", b.command)
	mux.HandleFunc("POST /api/import/session/{id}/merge", b.merge)
	mux.HandleFunc("POST /api/git/reset-frontend", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Frontend reset to main"})
	})
	mux.HandleFunc("POST /api/import/session/{id}/validate", func(w http.ResponseWriter, r *http.Request) {
		s, ok := b.lookup(w, r)
		if !ok {
			return
		}
		b.mu.Lock()
		s.Status = "COMPLETED"
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, api.ValidationResult{Passed: false, TypeScript: true, Build: true, Error: "2 tests failed"})
	})
	mux.HandleFunc("GET /api/import/session/{id}/diff", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.lookup(w, r); !ok {
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("+++ b/src/cart.ts\n+export {}\n"))
	})
	mux.HandleFunc("GET /api/import/session/{id}/changes", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := b.lookup(w, r); !ok {
			return
		}
		writeJSON(w, http.StatusOK, api.ChangesResponse{Changes: []string{"src/cart.ts", "src/index.ts"}})
	})
	mux.HandleFunc("GET /ws/logs/{id}", b.logs)

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		b.mu.Lock()
		b.hits[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *testBackend) add(s api.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[s.SessionID]; !ok {
		b.order = append([]string{s.SessionID}, b.order...)
	}
	cp := s
	b.sessions[s.SessionID] = &cp
}

func (b *testBackend) hitCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *testBackend) lookup(w http.ResponseWriter, r *http.Request) (*api.Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return nil, false
	}
	return s, true
}

func (b *testBackend) create(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	b.add(api.Session{
		SessionID:    "S",
		Description:  req.Description,
		Instructions: req.Instructions,
		TargetMfe:    req.TargetMfe,
		Status:       "CREATED",
	})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"sessionId":"S","status":"CREATED","targetMfe":"` + req.TargetMfe + `","createdAt":"2026-03-01T09:30:00.123456"}`))
}

func (b *testBackend) get(w http.ResponseWriter, r *http.Request) {
	if b.slow != nil && r.PathValue("id") == "slow" {
		close(b.slowHit)
		<-b.slow
	}
	s, ok := b.lookup(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	cp := *s
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, cp)
}

func (b *testBackend) list(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]api.Session, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.sessions[id])
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *testBackend) upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.lookup(w, r); !ok {
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	f.Close()
	_, _ = w.Write([]byte(`{"sessionId":"S","status":"ANALYZING","analysis":{"totalFiles":42,"typescriptFiles":10,"javascriptFiles":5,"totalSizeMB":1.23}}`))
}

func (b *testBackend) start(w http.ResponseWriter, r *http.Request) {
	s, ok := b.lookup(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	s.Status = "RUNNING"
	s.IsRunning = true
	s.BranchName = "import/" + s.SessionID
	resp := api.StartResponse{SessionID: s.SessionID, Status: s.Status, BranchName: s.BranchName}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (b *testBackend) stop(w http.ResponseWriter, r *http.Request) {
	s, ok := b.lookup(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	s.IsRunning = false
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, api.StopResponse{SessionID: s.SessionID, Status: "STOPPED"})
}

func (b *testBackend) command(w http.ResponseWriter, r *http.Request) {
	s, ok := b.lookup(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	running := s.IsRunning
	b.mu.Unlock()
	if !running {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No active process for session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (b *testBackend) merge(w http.ResponseWriter, r *http.Request) {
	s, ok := b.lookup(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.BranchName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No branch to merge"})
		return
	}
	s.Merged = true
	s.Status = "MERGED"
	s.IsRunning = false
	writeJSON(w, http.StatusOK, api.MergeResponse{SessionID: s.SessionID, Status: s.Status})
}

func (b *testBackend) logs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"level":"INFO","message":"agent started"}`))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// recordingStreamer records attach and detach calls.
type recordingStreamer struct {
	mu     sync.Mutex
	active string
	calls  []string
}

func (s *recordingStreamer) Attach(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != "" {
		s.calls = append(s.calls, "detach:"+s.active)
	}
	s.active = id
	s.calls = append(s.calls, "attach:"+id)
	return nil
}

func (s *recordingStreamer) Detach() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.active
	if prev != "" {
		s.calls = append(s.calls, "detach:"+prev)
	}
	s.active = ""
	return prev
}

func (s *recordingStreamer) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != ""
}

func (s *recordingStreamer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func TestScenario_CreateUploadStartMerge(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	reg := session.NewRegistry()
	logs := session.NewLogs(0)
	mgr := logstream.NewManager(logstream.APIDialer(b.srv.URL, time.Second), logs, logstream.Options{})
	defer mgr.Close()

	var prompts []string
	ctl := New(api.NewClient(b.srv.URL, 2*time.Second), reg, mgr, WithConfirmer(ConfirmFunc(func(p string) (bool, error) {
		prompts = append(prompts, p)
		return true, nil
	})))

	id, err := ctl.Create(ctx, CreateInput{
		Description:  "Migrate cart module",
		Instructions: "Use the new checkout API",
		TargetMfe:    "cart",
	})
	require.NoError(t, err)
	assert.Equal(t, "S", id)
	assert.True(t, reg.IsFocused("S"))
	snap, ok := reg.Get("S")
	require.True(t, ok)
	assert.Equal(t, "CREATED", snap.Status)
	assert.Equal(t, "cart", snap.TargetMfe)
	assert.Equal(t, 2026, snap.CreatedAt.Year())

	archive := filepath.Join(t.TempDir(), "cart.zip")
	require.NoError(t, os.WriteFile(archive, []byte("PK\x03\x04 fake zip"), 0o644))
	analysis, err := ctl.UploadArchive(ctx, "S", archive)
	require.NoError(t, err)
	assert.Equal(t, 42, analysis.TotalFiles)
	assert.Equal(t, 10, analysis.TypescriptFiles)
	assert.Equal(t, 5, analysis.JavascriptFiles)
	assert.InDelta(t, 1.23, analysis.TotalSizeMB, 1e-9)

	branch, err := ctl.Start(ctx, "S", StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, "import/S", branch)
	active, ok := mgr.Active()
	require.True(t, ok)
	assert.Equal(t, "S", active)

	require.Eventually(t, func() bool {
		for _, e := range logs.Entries("S") {
			if e.Level == "INFO" && e.Message == "agent started" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	_, err = ctl.Merge(ctx, "S", "")
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Merge session S")

	entry, ok := reg.Entry("S")
	require.True(t, ok)
	assert.True(t, entry.Session.Merged)
	assert.False(t, entry.OptimisticMerge, "the refreshed list confirmed the merge")

	list := reg.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].Merged)
	assert.Equal(t, "MERGED", list[0].Status)
}

func TestCreate_EmptyDescriptionMakesNoRequest(t *testing.T) {
	b := newTestBackend(t)
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{})

	for _, desc := range []string{"", "   ", "\n\t"} {
		_, err := ctl.Create(context.Background(), CreateInput{Description: desc, TargetMfe: "cart"})
		assert.ErrorIs(t, err, ErrDescriptionRequired)
	}
	assert.Equal(t, int32(0), b.requests.Load())
	assert.Equal(t, 0, len(ctl.Registry().List()))
}

func TestStop_WithoutProcessAcknowledges(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "S", Status: "COMPLETED"})

	stream := &recordingStreamer{}
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), stream, WithConfirmer(AlwaysConfirm))

	resp, err := ctl.Stop(context.Background(), "S")
	require.NoError(t, err)
	assert.Equal(t, "STOPPED", resp.Status)
	assert.Empty(t, stream.Calls(), "stop neither attaches nor detaches")
}

func TestStop_DoesNotDetachStream(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "S", Status: "RUNNING", IsRunning: true})

	stream := &recordingStreamer{}
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), stream, WithConfirmer(AlwaysConfirm))

	_, err := ctl.View(context.Background(), "S")
	require.NoError(t, err)
	_, err = ctl.Stop(context.Background(), "S")
	require.NoError(t, err)

	active, ok := stream.Active()
	assert.True(t, ok)
	assert.Equal(t, "S", active)
}

func TestDestructiveOperationsRequireConfirmation(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "S", Status: "COMPLETED", BranchName: "import/S"})

	var asked int
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{},
		WithConfirmer(ConfirmFunc(func(string) (bool, error) {
			asked++
			return false, nil
		})))
	ctx := context.Background()

	_, err := ctl.Stop(ctx, "S")
	assert.ErrorIs(t, err, ErrCancelled)
	_, err = ctl.Merge(ctx, "S", "")
	assert.ErrorIs(t, err, ErrCancelled)
	_, err = ctl.ResetFrontend(ctx)
	assert.ErrorIs(t, err, ErrCancelled)

	assert.Equal(t, 3, asked)
	assert.Zero(t, b.hitCount("POST /api/import/session/S/stop"))
	assert.Zero(t, b.hitCount("POST /api/import/session/S/merge"))
	assert.Zero(t, b.hitCount("POST /api/git/reset-frontend"))

	snap, ok := ctl.Registry().Get("S")
	require.True(t, ok)
	assert.False(t, snap.Merged)
}

func TestConfirmerErrorIsReturned(t *testing.T) {
	b := newTestBackend(t)
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{},
		WithConfirmer(ConfirmFunc(func(string) (bool, error) {
			return false, errors.New("stdin closed")
		})))

	_, err := ctl.ResetFrontend(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.Contains(t, err.Error(), "stdin closed")
}

func TestResetFrontend(t *testing.T) {
	b := newTestBackend(t)
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{}, WithConfirmer(AlwaysConfirm))

	msg, err := ctl.ResetFrontend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Frontend reset to main", msg)
}

func TestMerge_BackendErrorKeepsSessionUnmerged(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "S", Status: "COMPLETED"})

	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{}, WithConfirmer(AlwaysConfirm))
	_, err := ctl.Merge(context.Background(), "S", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No branch to merge")

	snap, ok := ctl.Registry().Get("S")
	require.True(t, ok)
	assert.False(t, snap.Merged)
}

func TestSendCommand(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "S", Status: "COMPLETED"})
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{})
	ctx := context.Background()

	assert.ErrorIs(t, ctl.SendCommand(ctx, "S", "   "), ErrCommandRequired)
	assert.ErrorIs(t, ctl.SendCommand(ctx, "S", "continue"), ErrNotFocused)
	assert.Zero(t, b.requests.Load())

	ctl.Focus("S")
	err := ctl.SendCommand(ctx, "S", "continue")
	require.Error(t, err)
	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "No active process for session", apiErr.Message)
}

func TestView_AttachesOnlyWhenRunning(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "run", Status: "RUNNING", IsRunning: true})
	b.add(api.Session{SessionID: "done", Status: "COMPLETED"})

	stream := &recordingStreamer{}
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), stream)
	ctx := context.Background()

	res, err := ctl.View(ctx, "run")
	require.NoError(t, err)
	assert.True(t, res.Focused)
	assert.True(t, res.Streaming)

	res, err = ctl.View(ctx, "done")
	require.NoError(t, err)
	assert.True(t, res.Focused)
	assert.False(t, res.Streaming)

	assert.Equal(t, []string{"attach:run", "detach:run"}, stream.Calls())
	assert.True(t, ctl.Registry().IsFocused("done"))
}

func TestView_FetchesEvenWhenCached(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "S", Status: "RUNNING", IsRunning: true})
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{})

	_, err := ctl.View(context.Background(), "S")
	require.NoError(t, err)
	b.add(api.Session{SessionID: "S", Status: "COMPLETED"})
	res, err := ctl.View(context.Background(), "S")
	require.NoError(t, err)

	assert.Equal(t, "COMPLETED", res.Session.Status)
	assert.Equal(t, 2, b.hitCount("GET /api/import/session/S"))
}

func TestView_SupersededResponseDoesNotMoveFocus(t *testing.T) {
	b := newTestBackend(t)
	b.slow = make(chan struct{})
	b.slowHit = make(chan struct{})
	b.add(api.Session{SessionID: "slow", Status: "RUNNING", IsRunning: true})
	b.add(api.Session{SessionID: "fast", Status: "COMPLETED"})

	stream := &recordingStreamer{}
	ctl := New(api.NewClient(b.srv.URL, 2*time.Second), session.NewRegistry(), stream)
	ctx := context.Background()

	type outcome struct {
		res *ViewResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := ctl.View(ctx, "slow")
		done <- outcome{res, err}
	}()
	<-b.slowHit

	_, err := ctl.View(ctx, "fast")
	require.NoError(t, err)
	close(b.slow)

	out := <-done
	require.NoError(t, out.err)
	assert.False(t, out.res.Focused)
	assert.True(t, ctl.Registry().IsFocused("fast"))
	assert.Empty(t, stream.Calls(), "a superseded view must not attach")

	_, ok := ctl.Registry().Get("slow")
	assert.True(t, ok, "the superseded snapshot is still stored")
}

func TestUnknownSession(t *testing.T) {
	b := newTestBackend(t)
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{}, WithConfirmer(AlwaysConfirm))
	ctx := context.Background()

	_, err := ctl.Stop(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = ctl.View(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = ctl.Start(ctx, "", StartOptions{})
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestUploadArchive_RequiresFile(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "S", Status: "CREATED"})
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{})
	ctx := context.Background()

	_, err := ctl.UploadArchive(ctx, "S", "")
	assert.ErrorIs(t, err, ErrFileRequired)
	assert.Zero(t, b.requests.Load())

	_, err = ctl.UploadArchive(ctx, "S", filepath.Join(t.TempDir(), "nope.zip"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, b.hitCount("POST /api/import/session/S/upload"))
}

func TestCreate_DetachesStreamOfPreviousFocus(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "old", Status: "RUNNING", IsRunning: true})

	stream := &recordingStreamer{}
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), stream)
	ctx := context.Background()

	_, err := ctl.View(ctx, "old")
	require.NoError(t, err)
	_, err = ctl.Create(ctx, CreateInput{Description: "Migrate header"})
	require.NoError(t, err)

	assert.Equal(t, []string{"attach:old", "detach:old"}, stream.Calls())
	assert.True(t, ctl.Registry().IsFocused("S"))
}

func TestValidateDiffChanges(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "S", Status: "VALIDATING"})
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{})
	ctx := context.Background()

	res, err := ctl.Validate(ctx, "S")
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.True(t, res.TypeScript)
	assert.Equal(t, "2 tests failed", res.Error)

	snap, ok := ctl.Registry().Get("S")
	require.True(t, ok, "validate refreshes the snapshot")
	assert.Equal(t, "COMPLETED", snap.Status)

	diff, err := ctl.Diff(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, "+++ b/src/cart.ts\n+export {}\n", diff)

	changes, err := ctl.Changes(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/cart.ts", "src/index.ts"}, changes)

	_, err = ctl.Diff(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = ctl.Changes(ctx, "")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestMerge_PlainTextAcknowledgmentMarksMerged(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/import/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.Session{SessionID: "S", Status: "COMPLETED"})
	})
	mux.HandleFunc("POST /api/import/session/{id}/merge", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /api/import/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctl := New(api.NewClient(srv.URL, time.Second), session.NewRegistry(), &recordingStreamer{}, WithConfirmer(AlwaysConfirm))

	resp, err := ctl.Merge(context.Background(), "S", "")
	require.NoError(t, err)
	assert.Equal(t, "S", resp.SessionID)

	snap, ok := ctl.Registry().Get("S")
	require.True(t, ok)
	assert.True(t, snap.Merged)
}

func TestUnfocus_ClearsFocusAndDetaches(t *testing.T) {
	b := newTestBackend(t)
	b.add(api.Session{SessionID: "run", Status: "RUNNING", IsRunning: true})

	stream := &recordingStreamer{}
	ctl := New(api.NewClient(b.srv.URL, time.Second), session.NewRegistry(), stream)

	_, err := ctl.View(context.Background(), "run")
	require.NoError(t, err)
	require.True(t, ctl.Registry().IsFocused("run"))

	ctl.Unfocus()
	_, focused := ctl.Registry().Focused()
	assert.False(t, focused)
	assert.Equal(t, []string{"attach:run", "detach:run"}, stream.Calls())

	ctl.Unfocus()
	assert.Equal(t, []string{"attach:run", "detach:run"}, stream.Calls(), "a second unfocus has nothing to detach")
}
