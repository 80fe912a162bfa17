package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedMonitor builds a Monitor with a real change log but no live OS watch;
// revert exercises only the log + filesystem, not the intake.
func seedMonitor(t *testing.T, root string) *Monitor {
	t.Helper()
	ignore, err := NewIgnoreFilter(nil, nil, nil)
	require.NoError(t, err)
	cfg := Config{}.WithDefaults()
	return New(root, cfg, "test-tool", ignore)
}

func TestRevert_ToCheckpointRestoresModifiedFile(t *testing.T) {
	root := t.TempDir()
	m := seedMonitor(t, root)

	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	m.Log().Append(Change{Path: "a.txt", Kind: Created, NewContent: []byte("v1"), Timestamp: m.Log().NextTimestamp()})
	cp1 := m.CreateCheckpoint("turn-1")
	_ = cp1

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	m.Log().Append(Change{Path: "a.txt", Kind: Modified, OldContent: []byte("v1"), NewContent: []byte("v2"), Timestamp: m.Log().NextTimestamp()})
	m.CreateCheckpoint("turn-2")

	result := m.RevertToCheckpoint(1)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.RevertedCount)
	assert.Equal(t, 0, result.ErrorCount)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))

	assert.Len(t, m.Log().Checkpoints(), 1)
}

func TestRevert_ToOriginalRemovesCreatedFile(t *testing.T) {
	root := t.TempDir()
	m := seedMonitor(t, root)

	path := filepath.Join(root, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("created"), 0o644))
	m.Log().Append(Change{Path: "new.txt", Kind: Created, NewContent: []byte("created"), Timestamp: m.Log().NextTimestamp()})

	result := m.RevertToOriginal()
	require.NotNil(t, result)
	assert.True(t, result.IsFullRevert)
	assert.Equal(t, 1, result.RevertedCount)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, m.Log().AllChanges())
	assert.Empty(t, m.Log().Checkpoints())
}

func TestRevert_ToOriginalRestoresDeletedFile(t *testing.T) {
	root := t.TempDir()
	m := seedMonitor(t, root)

	path := filepath.Join(root, "gone.txt")
	m.Log().Append(Change{Path: "gone.txt", Kind: Deleted, OldContent: []byte("was here"), Timestamp: m.Log().NextTimestamp()})

	result := m.RevertToOriginal()
	require.NotNil(t, result)
	assert.Equal(t, 1, result.RevertedCount)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "was here", string(content))
}

func TestRevert_RenameRestoresOldPath(t *testing.T) {
	root := t.TempDir()
	m := seedMonitor(t, root)

	newPath := filepath.Join(root, "new.txt")
	require.NoError(t, os.WriteFile(newPath, []byte("payload"), 0o644))

	m.Log().Append(Change{
		Path:       "new.txt",
		Kind:       Renamed,
		OldContent: []byte("payload"),
		NewContent: []byte("payload"),
		Timestamp:  m.Log().NextTimestamp(),
		Metadata:   Metadata{OldPath: "old.txt"},
	})

	result := m.RevertToOriginal()
	require.NotNil(t, result)
	assert.Equal(t, 1, result.RevertedCount)

	_, err := os.Stat(newPath)
	assert.True(t, os.IsNotExist(err))

	content, err := os.ReadFile(filepath.Join(root, "old.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

func TestRevert_InvalidCheckpointIndexReturnsNil(t *testing.T) {
	root := t.TempDir()
	m := seedMonitor(t, root)

	m.CreateCheckpoint("only-one")
	assert.Nil(t, m.RevertToCheckpoint(0))
	assert.Nil(t, m.RevertToCheckpoint(1))
	assert.Nil(t, m.RevertToCheckpoint(5))
}

func TestRevert_CleansUpEmptyDirectories(t *testing.T) {
	root := t.TempDir()
	m := seedMonitor(t, root)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	path := filepath.Join(sub, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	m.Log().Append(Change{Path: "sub/a.txt", Kind: Created, NewContent: []byte("x"), Timestamp: m.Log().NextTimestamp()})

	result := m.RevertToOriginal()
	require.NotNil(t, result)

	_, err := os.Stat(sub)
	assert.True(t, os.IsNotExist(err), "empty directory should have been removed")
}
