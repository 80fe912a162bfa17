package fsmonitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestSession(t *testing.T, root string) *Session {
	t.Helper()
	Setup(Config{DebounceMs: 20})
	sess := CreateSession(root, CreateSessionOpts{})
	ok, err := sess.Start(context.Background(), StartOpts{Recursive: true})
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { Destroy(sess.ID) })
	return sess
}

// S1 — create then modify.
func TestScenario_CreateThenModify(t *testing.T) {
	root := t.TempDir()
	sess := startTestSession(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	FlushPendingAndGetChanges(sess.ID, func([]Change) {})

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0o644))

	var changes []Change
	FlushPendingAndGetChanges(sess.ID, func(c []Change) { changes = c })

	require.Len(t, changes, 2)
	assert.Equal(t, Created, changes[0].Kind)
	assert.Equal(t, []byte("hello"), changes[0].NewContent)
	assert.Equal(t, Modified, changes[1].Kind)
	assert.Equal(t, []byte("hello"), changes[1].OldContent)
	assert.Equal(t, []byte("hello world"), changes[1].NewContent)
}

// S2 — rename detected by inode.
func TestScenario_RenameDetectedByInode(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.txt"), []byte("X"), 0o644))

	Setup(Config{DebounceMs: 20})
	sess := CreateSession(root, CreateSessionOpts{})
	ok, err := sess.Start(context.Background(), StartOpts{Recursive: true, Prepopulate: true})
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { Destroy(sess.ID) })

	// Give the prepopulation walk a moment to finish caching x.txt.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.Rename(filepath.Join(root, "x.txt"), filepath.Join(root, "y.txt")))

	var changes []Change
	FlushPendingAndGetChanges(sess.ID, func(c []Change) { changes = c })

	require.Len(t, changes, 1)
	assert.Equal(t, Renamed, changes[0].Kind)
	assert.Equal(t, "x.txt", changes[0].Metadata.OldPath)
	assert.Equal(t, "y.txt", changes[0].Path)
	assert.Equal(t, []byte("X"), changes[0].OldContent)
	assert.Equal(t, []byte("X"), changes[0].NewContent)
}

// S3 — transient file, revert to original.
func TestScenario_TransientFileRevertToOriginal(t *testing.T) {
	root := t.TempDir()
	sess := startTestSession(t, root)

	path := filepath.Join(root, "t.txt")
	require.NoError(t, os.WriteFile(path, []byte("tmp"), 0o644))
	FlushPendingAndGetChanges(sess.ID, func([]Change) {})

	require.NoError(t, os.Remove(path))
	FlushPendingAndGetChanges(sess.ID, func([]Change) {})

	result := RevertToOriginal(sess.ID)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.RevertedCount)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, GetChanges(sess.ID))
}

// S4 — checkpointed partial revert.
func TestScenario_CheckpointedPartialRevert(t *testing.T) {
	root := t.TempDir()
	sess := startTestSession(t, root)

	path := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	FlushPendingAndGetChanges(sess.ID, func([]Change) {})
	CreateCheckpoint(sess.ID, "cp1")

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	FlushPendingAndGetChanges(sess.ID, func([]Change) {})
	CreateCheckpoint(sess.ID, "cp2")

	result := RevertToCheckpoint(sess.ID, 1)
	require.NotNil(t, result)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))

	changes := GetChanges(sess.ID)
	require.Len(t, changes, 1)
	assert.Equal(t, Created, changes[0].Kind)

	checkpoints := GetCheckpoints(sess.ID)
	require.Len(t, checkpoints, 1)
	assert.Equal(t, "cp1", checkpoints[0].Label)
}

// S5 — multi-file revert.
func TestScenario_MultiFileRevert(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("B"), 0o644))

	Setup(Config{DebounceMs: 20})
	sess := CreateSession(root, CreateSessionOpts{})
	ok, err := sess.Start(context.Background(), StartOpts{Recursive: true, Prepopulate: true})
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { Destroy(sess.ID) })
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "c.txt"), []byte("C"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("A2"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))

	FlushPendingAndGetChanges(sess.ID, func([]Change) {})

	result := RevertToOriginal(sess.ID)
	require.NotNil(t, result)
	assert.Equal(t, 3, result.RevertedCount)

	a, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "A", string(a))

	b, err := os.ReadFile(filepath.Join(root, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "B", string(b))

	_, err = os.Stat(filepath.Join(root, "c.txt"))
	assert.True(t, os.IsNotExist(err))

	assert.Empty(t, GetChanges(sess.ID))
}

// S6 — duplicate coalescing.
func TestScenario_DuplicateCoalescing(t *testing.T) {
	root := t.TempDir()
	sess := startTestSession(t, root)

	path := filepath.Join(root, "f.txt")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	var changes []Change
	FlushPendingAndGetChanges(sess.ID, func(c []Change) { changes = c })

	require.LessOrEqual(t, len(changes), 2)
	createdCount := 0
	for _, c := range changes {
		if c.Kind == Created {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)
}

func TestStats_ReflectsLoggedChanges(t *testing.T) {
	root := t.TempDir()
	sess := startTestSession(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	FlushPendingAndGetChanges(sess.ID, func([]Change) {})

	stats := GetStats(sess.ID)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.ByKind[Created])
	assert.Equal(t, 1, stats.ActiveWatches)
}

func TestTagChanges_AttributesToTool(t *testing.T) {
	root := t.TempDir()
	sess := startTestSession(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	var changes []Change
	FlushPendingAndGetChanges(sess.ID, func(c []Change) { changes = c })
	require.Len(t, changes, 1)

	ts := changes[0].Timestamp
	TagChanges(sess.ID, ts, ts, "claude", TagArgs{Filepath: "a.txt"})

	tagged := GetChanges(sess.ID)
	require.Len(t, tagged, 1)
	assert.Contains(t, tagged[0].Tools, "claude")
	assert.Equal(t, "confirmed", tagged[0].Metadata.Attribution)
}

func TestUnknownSessionOperationsAreNoops(t *testing.T) {
	assert.Nil(t, CreateCheckpoint("nonexistent", "x"))
	assert.Nil(t, GetCheckpoints("nonexistent"))
	assert.Nil(t, GetChanges("nonexistent"))
	assert.Nil(t, RevertToCheckpoint("nonexistent", 1))
	assert.Nil(t, GetStats("nonexistent"))
	assert.Nil(t, GetSession("nonexistent"))
}
