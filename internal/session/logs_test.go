package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogs_AppendPreservesReceiptOrder(t *testing.T) {
	l := NewLogs(0)
	for i := 0; i < 50; i++ {
		l.Append("s1", LevelInfo, fmt.Sprintf("line %d", i), time.Time{})
	}

	entries := l.Entries("s1")
	require.Len(t, entries, 50)
	for i, e := range entries {
		assert.Equal(t, uint64(i+1), e.Seq)
		assert.Equal(t, fmt.Sprintf("line %d", i), e.Message)
		assert.False(t, e.ReceivedAt.IsZero())
	}
}

func TestLogs_SessionsAreIndependent(t *testing.T) {
	l := NewLogs(0)
	l.Append("a", LevelInfo, "a1", time.Now())
	l.Append("b", LevelError, "b1", time.Now())
	l.Append("a", LevelInfo, "a2", time.Now())

	assert.Len(t, l.Entries("a"), 2)
	assert.Len(t, l.Entries("b"), 1)
	assert.Equal(t, uint64(1), l.Entries("b")[0].Seq)
	assert.Nil(t, l.Entries("missing"))
}

func TestLogs_MaxEntriesEvictsOldest(t *testing.T) {
	l := NewLogs(3)
	for i := 1; i <= 5; i++ {
		l.Append("s1", LevelInfo, fmt.Sprintf("%d", i), time.Now())
	}

	entries := l.Entries("s1")
	require.Len(t, entries, 3)
	assert.Equal(t, "3", entries[0].Message)
	assert.Equal(t, uint64(5), entries[2].Seq)
}

func TestLogs_MaxEntriesAcrossCompactions(t *testing.T) {
	l := NewLogs(4)
	for i := 1; i <= 23; i++ {
		l.Append("s1", LevelInfo, fmt.Sprintf("%d", i), time.Now())

		entries := l.Entries("s1")
		want := min(i, 4)
		require.Len(t, entries, want)
		assert.Equal(t, uint64(i), entries[want-1].Seq)
		assert.Less(t, len(l.logs["s1"].entries), 8, "backing slice stays bounded")
	}

	got := l.Since("s1", 0)
	require.Len(t, got, 4)
	assert.Equal(t, uint64(20), got[0].Seq)
	assert.Len(t, l.Since("s1", 21), 2)
}

func TestLogs_Since(t *testing.T) {
	l := NewLogs(0)
	for i := 0; i < 4; i++ {
		l.Append("s1", LevelInfo, fmt.Sprintf("%d", i), time.Now())
	}
	got := l.Since("s1", 2)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].Seq)
}

func TestLogs_Subscribe(t *testing.T) {
	l := NewLogs(0)
	ch, cancel := l.Subscribe(4)

	l.Append("s1", LevelInfo, "hello", time.Now())
	select {
	case e := <-ch:
		assert.Equal(t, "hello", e.Message)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive entry")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Appending after cancel must not panic.
	l.Append("s1", LevelInfo, "after", time.Now())
}
