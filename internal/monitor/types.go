// Package monitor implements the filesystem-change tracking engine: an
// OS-event-driven watch over a directory tree that captures content
// snapshots, infers renames, and supports reverting the tree to any
// previously recorded checkpoint.
package monitor

// ChangeKind identifies the kind of transition a Change record describes.
type ChangeKind string

const (
	Created  ChangeKind = "created"
	Modified ChangeKind = "modified"
	Deleted  ChangeKind = "deleted"
	Renamed  ChangeKind = "renamed"
)

// Metadata carries the fields that are meaningful for a given Change.Kind.
// Unlike the dynamically-typed source this is ported from, every field here
// is concrete; callers should only read the fields relevant to the owning
// Change's Kind (e.g. OldPath is only set for Renamed).
type Metadata struct {
	Device      uint64
	Inode       uint64
	OldPath     string // set only for Renamed
	Attribution string // "confirmed" | "ambiguous", set by TagChangesInRange
	OldSize     int64
	NewSize     int64
	Size        int64
	OriginalTool string // set on first tagging, preserves the original ToolName
}

// Change is one append to a session's change log: a single observed
// transition of a single file.
type Change struct {
	Path        string // root-relative, forward-slash separated; new path for renames
	Kind        ChangeKind
	OldContent  []byte // absent (nil) for Created
	NewContent  []byte // absent (nil) for Deleted
	Timestamp   int64  // monotonic nanoseconds, strictly increasing within a session
	ToolName    string // logical origin, defaults to the session's workspace label
	Tools       []string
	Metadata    Metadata
}

// Checkpoint is a timestamp marker delimiting a turn or batch of work.
type Checkpoint struct {
	Timestamp   int64
	ChangeCount int // informational only; Timestamp is authoritative for revert/filter
	Label       string
	Cycle       int
}

// Stats is the summary returned by ChangeLog.Stats.
type Stats struct {
	ByKind        map[ChangeKind]int
	Tools         []string
	ActiveWatches int
	BytesCached   int64
}

// RevertResult is returned by RevertToCheckpoint / RevertToOriginal.
type RevertResult struct {
	NewChanges     []Change
	NewCheckpoints []Checkpoint
	RevertedCount  int
	ErrorCount     int
	IsFullRevert   bool
}

// TagArgs are the arguments to TagChangesInRange.
type TagArgs struct {
	// Filepath, if set, is the path the tool claimed to have touched. A
	// tagged change's attribution is "confirmed" when its path equals
	// Filepath or is nested under it, "ambiguous" otherwise. Absent Filepath
	// means the tool made no path claim, so attribution is always
	// "confirmed".
	Filepath string
}
