package session

import (
	"sync"
	"time"
)

// Log levels used for locally synthesized entries.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogEntry is one line of a session's log timeline.
type LogEntry struct {
	// SessionID is the session the entry belongs to.
	SessionID string `json:"sessionId"`

	// Seq is monotonic per session, starting at 1.
	Seq uint64 `json:"seq"`

	// Level is the upper-case log level.
	Level string `json:"level"`

	// Message is the log text.
	Message string `json:"message"`

	// ReceivedAt is when the entry was observed locally.
	ReceivedAt time.Time `json:"receivedAt"`
}

type sessionLog struct {
	entries []LogEntry
	nextSeq uint64
}

// retained returns the entries visible under a cap of max (zero: all).
func (sl *sessionLog) retained(max int) []LogEntry {
	if max > 0 && len(sl.entries) > max {
		return sl.entries[len(sl.entries)-max:]
	}
	return sl.entries
}

// Logs holds an append-only log per session, in local receipt order.
// Safe for concurrent use.
type Logs struct {
	mu          sync.Mutex
	logs        map[string]*sessionLog
	maxEntries  int
	subscribers map[int]chan LogEntry
	nextSubID   int
}

// NewLogs creates an empty log store. maxEntries bounds each session's log,
// evicting the oldest entries; zero means unbounded.
func NewLogs(maxEntries int) *Logs {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Logs{
		logs:        make(map[string]*sessionLog),
		maxEntries:  maxEntries,
		subscribers: make(map[int]chan LogEntry),
	}
}

// Append adds an entry to a session's log and returns it with its sequence
// number assigned.
func (l *Logs) Append(sessionID, level, message string, receivedAt time.Time) LogEntry {
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	l.mu.Lock()
	sl, ok := l.logs[sessionID]
	if !ok {
		sl = &sessionLog{}
		l.logs[sessionID] = sl
	}
	sl.nextSeq++
	entry := LogEntry{
		SessionID:  sessionID,
		Seq:        sl.nextSeq,
		Level:      level,
		Message:    message,
		ReceivedAt: receivedAt,
	}
	sl.entries = append(sl.entries, entry)
	// Evicted entries are compacted away in batches of maxEntries; until
	// then readers see only the last maxEntries.
	if l.maxEntries > 0 && len(sl.entries) >= 2*l.maxEntries {
		sl.entries = append(make([]LogEntry, 0, 2*l.maxEntries), sl.retained(l.maxEntries)...)
	}

	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default:
			// Slow subscribers miss entries; Entries() remains complete.
		}
	}
	l.mu.Unlock()

	return entry
}

// Entries returns a copy of a session's log.
func (l *Logs) Entries(sessionID string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	sl, ok := l.logs[sessionID]
	if !ok {
		return nil
	}
	kept := sl.retained(l.maxEntries)
	out := make([]LogEntry, len(kept))
	copy(out, kept)
	return out
}

// Since returns the entries of a session with Seq greater than seq.
func (l *Logs) Since(sessionID string, seq uint64) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	sl, ok := l.logs[sessionID]
	if !ok {
		return nil
	}
	var out []LogEntry
	for _, e := range sl.retained(l.maxEntries) {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// Subscribe returns a channel receiving every entry appended from now on, for
// any session, and a function that ends the subscription.
func (l *Logs) Subscribe(buffer int) (<-chan LogEntry, func()) {
	if buffer <= 0 {
		buffer = 256
	}
	ch := make(chan LogEntry, buffer)

	l.mu.Lock()
	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subscribers, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}
