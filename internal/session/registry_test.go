package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassamsdata/fsmonitor/internal/monitor"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry(monitor.DefaultConfig())
	s := r.Create(t.TempDir(), "", nil)

	got := r.Get(s.ID)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
}

func TestRegistry_CreateWithExplicitID(t *testing.T) {
	r := NewRegistry(monitor.DefaultConfig())
	s := r.Create(t.TempDir(), "fixed-id", nil)
	assert.Equal(t, "fixed-id", s.ID)
	assert.NotNil(t, r.Get("fixed-id"))
}

func TestRegistry_GetUnknownReturnsNil(t *testing.T) {
	r := NewRegistry(monitor.DefaultConfig())
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_All(t *testing.T) {
	r := NewRegistry(monitor.DefaultConfig())
	s1 := r.Create(t.TempDir(), "", nil)
	s2 := r.Create(t.TempDir(), "", nil)

	all := r.All()
	assert.Len(t, all, 2)
	assert.Contains(t, all, s1.ID)
	assert.Contains(t, all, s2.ID)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(monitor.DefaultConfig())
	s := r.Create(t.TempDir(), "", nil)
	r.Remove(s.ID)
	assert.Nil(t, r.Get(s.ID))
}

func TestRegistry_ClearAllDestroysEverySession(t *testing.T) {
	r := NewRegistry(monitor.DefaultConfig())
	r.Create(t.TempDir(), "", nil)
	r.Create(t.TempDir(), "", nil)

	r.ClearAll()
	assert.Empty(t, r.All())
}

func TestRegistry_SetupReplacesDefaultConfig(t *testing.T) {
	r := NewRegistry(monitor.DefaultConfig())
	r.Setup(monitor.Config{DebounceMs: 500})
	assert.Equal(t, 500, r.cfg.DebounceMs)
}
