package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snabel/cli/internal/api"
)

func TestRegistry_UpsertSupersedesSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Upsert(api.Session{SessionID: "s1", Description: "Migrate cart", Status: "CREATED", TargetMfe: "cart"})
	r.Upsert(api.Session{SessionID: "s1", Description: "Migrate cart", Status: "RUNNING", IsRunning: true})

	got, ok := r.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "RUNNING", got.Status)
	assert.True(t, got.IsRunning)
	assert.Equal(t, "cart", got.TargetMfe, "list snapshots must not erase fields only the create call knows")
	assert.Equal(t, 1, len(r.List()))
}

func TestRegistry_IgnoresEmptyID(t *testing.T) {
	r := NewRegistry()
	r.Upsert(api.Session{Description: "no id"})
	assert.Equal(t, 0, len(r.List()))
}

func TestRegistry_UpsertAllKeepsListOrderAndNeverDeletes(t *testing.T) {
	r := NewRegistry()
	r.Upsert(api.Session{SessionID: "local", Status: "CREATED"})
	r.UpsertAll([]api.Session{
		{SessionID: "b", Status: "RUNNING"},
		{SessionID: "a", Status: "COMPLETED"},
	})

	ids := make([]string, 0)
	for _, s := range r.List() {
		ids = append(ids, s.SessionID)
	}
	assert.Equal(t, []string{"b", "a", "local"}, ids)

	r.UpsertAll(nil)
	assert.Equal(t, 3, len(r.List()))
}

func TestRegistry_OptimisticMergeConfirmed(t *testing.T) {
	r := NewRegistry()
	r.Upsert(api.Session{SessionID: "s1", Status: "COMPLETED"})

	require.True(t, r.MarkMerged("s1"))
	e, _ := r.Entry("s1")
	assert.True(t, e.Session.Merged)
	assert.True(t, e.OptimisticMerge)

	r.Upsert(api.Session{SessionID: "s1", Status: "MERGED", Merged: true})
	e, _ = r.Entry("s1")
	assert.True(t, e.Session.Merged)
	assert.False(t, e.OptimisticMerge)
}

func TestRegistry_BackendSnapshotOverridesOptimisticMerge(t *testing.T) {
	r := NewRegistry()
	r.Upsert(api.Session{SessionID: "s1", Status: "COMPLETED"})
	r.MarkMerged("s1")

	r.Upsert(api.Session{SessionID: "s1", Status: "COMPLETED", Merged: false})
	got, _ := r.Get("s1")
	assert.False(t, got.Merged)
}

func TestRegistry_MarkMergedUnknown(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.MarkMerged("missing"))
}

func TestRegistry_UnknownStatusIsStored(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() {
		r.Upsert(api.Session{SessionID: "s1", Status: "RUNNING"})
		r.Upsert(api.Session{SessionID: "s1", Status: "SOMETHING_NEW"})
	})
	got, _ := r.Get("s1")
	assert.Equal(t, "SOMETHING_NEW", got.Status)
}

func TestRegistry_SingleFocus(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Focused()
	assert.False(t, ok)

	assert.Equal(t, "", r.Focus("a"))
	assert.Equal(t, "a", r.Focus("b"))

	id, ok := r.Focused()
	assert.True(t, ok)
	assert.Equal(t, "b", id)
	assert.True(t, r.IsFocused("b"))
	assert.False(t, r.IsFocused("a"))

	r.ClearFocus()
	_, ok = r.Focused()
	assert.False(t, ok)
}
