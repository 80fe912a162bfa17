package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, root string) (*Processor, *ChangeLog, []Change) {
	t.Helper()
	ignore, err := NewIgnoreFilter(nil, nil, nil)
	require.NoError(t, err)

	cache := NewCache(1024 * 1024)
	log := NewChangeLog()
	var events []Change

	proc := NewProcessor(root, ignore, NewReader(1024*1024), cache, log, func(c Change) {
		events = append(events, c)
	})
	return proc, log, events
}

func TestProcessor_CreatedThenModified(t *testing.T) {
	root := t.TempDir()
	proc, log, _ := newTestProcessor(t, root)

	file := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))
	proc.Process(file, "claude")

	require.Equal(t, 1, log.Len())
	assert.Equal(t, Created, log.AllChanges()[0].Kind)

	require.NoError(t, os.WriteFile(file, []byte("v2"), 0o644))
	proc.Process(file, "claude")

	all := log.AllChanges()
	require.Len(t, all, 2)
	assert.Equal(t, Modified, all[1].Kind)
	assert.Equal(t, []byte("v1"), all[1].OldContent)
	assert.Equal(t, []byte("v2"), all[1].NewContent)
}

func TestProcessor_NoOpWriteIsNotRecorded(t *testing.T) {
	root := t.TempDir()
	proc, log, _ := newTestProcessor(t, root)

	file := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("same"), 0o644))
	proc.Process(file, "claude")
	require.Equal(t, 1, log.Len())

	// Rewriting identical content should not add a second record.
	require.NoError(t, os.WriteFile(file, []byte("same"), 0o644))
	proc.Process(file, "claude")
	assert.Equal(t, 1, log.Len())
}

func TestProcessor_Deleted(t *testing.T) {
	root := t.TempDir()
	proc, log, _ := newTestProcessor(t, root)

	file := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))
	proc.Process(file, "claude")

	require.NoError(t, os.Remove(file))
	proc.Process(file, "claude")

	all := log.AllChanges()
	require.Len(t, all, 2)
	assert.Equal(t, Deleted, all[1].Kind)
	assert.Equal(t, []byte("v1"), all[1].OldContent)
}

func TestProcessor_IgnoredPathNeverRecorded(t *testing.T) {
	root := t.TempDir()
	proc, log, _ := newTestProcessor(t, root)

	require.NoError(t, os.Mkdir(filepath.Join(root, "node_modules"), 0o755))
	file := filepath.Join(root, "node_modules", "pkg.js")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	proc.Process(file, "claude")

	assert.Equal(t, 0, log.Len())
}

func TestProcessor_DuplicateSuppressionWithinWindow(t *testing.T) {
	root := t.TempDir()
	ignore, err := NewIgnoreFilter(nil, nil, nil)
	require.NoError(t, err)
	cache := NewCache(1024 * 1024)
	log := NewChangeLog()
	proc := NewProcessor(root, ignore, NewReader(1024*1024), cache, log, nil)

	// Directly exercise emit()'s duplicate suppression without depending on
	// real file timing: two identical created records issued back-to-back.
	proc.emit(Change{Path: "a.txt", Kind: Created})
	proc.emit(Change{Path: "a.txt", Kind: Created})

	assert.Equal(t, 1, log.Len())
}

func TestProcessor_InferRenameByFingerprint(t *testing.T) {
	root := t.TempDir()
	proc, log, _ := newTestProcessor(t, root)

	original := filepath.Join(root, "old.txt")
	content := []byte("distinctive content for fingerprinting")
	require.NoError(t, os.WriteFile(original, content, 0o644))
	proc.Process(original, "claude")
	require.Equal(t, 1, log.Len())

	require.NoError(t, os.Remove(original))
	proc.Process(original, "claude")
	require.Equal(t, 2, log.Len())
	require.Equal(t, Deleted, log.AllChanges()[1].Kind)

	renamed := filepath.Join(root, "new.txt")
	require.NoError(t, os.WriteFile(renamed, content, 0o644))
	proc.Process(renamed, "claude")

	all := log.AllChanges()
	require.Len(t, all, 2, "the synthetic delete should have been folded into a rename")
	last := all[len(all)-1]
	assert.Equal(t, Renamed, last.Kind)
	assert.Equal(t, "old.txt", last.Metadata.OldPath)
	assert.Equal(t, "new.txt", last.Path)
}

func TestFingerprint_ShortAndLongContent(t *testing.T) {
	short := fingerprint([]byte("short"))
	assert.Equal(t, 5, short.length)

	long := make([]byte, fingerprintWindow*3)
	for i := range long {
		long[i] = byte(i % 251)
	}
	fp := fingerprint(long)
	assert.Equal(t, len(long), fp.length)
	assert.Len(t, fp.head, fingerprintWindow)
	assert.Len(t, fp.tail, fingerprintWindow)
}

func TestProcessor_ToRelativeRejectsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	proc, _, _ := newTestProcessor(t, root)

	outside := filepath.Join(t.TempDir(), "outside.txt")
	assert.Equal(t, "", proc.toRelative(outside))
}
