package monitor

import (
	"bytes"
	"path/filepath"
	"time"

	"github.com/bassamsdata/fsmonitor/internal/logging"
)

const (
	duplicateWindowNs = int64(1 * 1e9) // 1s: suppress a same path+kind record within this age
	duplicateStopNs   = int64(5 * 1e9) // 5s: stop scanning for duplicates past this age
	renameWindowNs    = int64(2 * 1e9) // 2s: how far back rename inference looks
	fingerprintWindow = 1024           // 1 KiB head/tail window for content fingerprinting
)

var processorLog = logging.ForComponent(logging.CompProcessor)

// Processor implements the change-detection algorithm of spec §4.5: for
// each changed path, compare against the cache, emit a Change, update the
// cache, run rename inference, and suppress near-duplicate events.
type Processor struct {
	root    string
	ignore  *IgnoreFilter
	reader  *Reader
	cache   *Cache
	log     *ChangeLog
	onEvent func(Change)
}

// NewProcessor builds a Processor bound to a single Monitor's state.
func NewProcessor(root string, ignore *IgnoreFilter, reader *Reader, cache *Cache, log *ChangeLog, onEvent func(Change)) *Processor {
	return &Processor{root: root, ignore: ignore, reader: reader, cache: cache, log: log, onEvent: onEvent}
}

// Process handles one changed absolute path, relative to the processor's
// root, attributed to toolName.
func (p *Processor) Process(absPath, toolName string) {
	relPath := p.toRelative(absPath)
	if relPath == "" {
		return
	}
	if p.ignore.ShouldIgnore(relPath) {
		return
	}

	cached, wasCached := p.cache.Get(relPath)

	result, err := p.reader.Read(absPath)
	if err != nil {
		readErr, ok := err.(*ReadError)
		if !ok {
			return
		}
		switch readErr.Kind {
		case NotFound:
			if wasCached {
				device, inode, _ := p.cache.Identity(relPath)
				p.cache.Remove(relPath)
				p.emit(Change{
					Path:       relPath,
					Kind:       Deleted,
					OldContent: cached,
					ToolName:   toolName,
					Metadata:   Metadata{Device: device, Inode: inode, OldSize: int64(len(cached))},
				})
			}
		default:
			// TooLarge, Binary, IoError: file is effectively unobservable
			// right now. The event is dropped without a record; no counter
			// tracks these errors.
		}
		return
	}

	if wasCached && bytes.Equal(cached, result.Content) {
		return // no-op write
	}

	var change Change
	if !wasCached {
		change = Change{
			Path:       relPath,
			Kind:       Created,
			NewContent: result.Content,
			ToolName:   toolName,
			Metadata: Metadata{
				Device: result.Device, Inode: result.Inode,
				NewSize: int64(len(result.Content)), Size: int64(len(result.Content)),
			},
		}
	} else {
		change = Change{
			Path:       relPath,
			Kind:       Modified,
			OldContent: cached,
			NewContent: result.Content,
			ToolName:   toolName,
			Metadata: Metadata{
				Device: result.Device, Inode: result.Inode,
				OldSize: int64(len(cached)), NewSize: int64(len(result.Content)), Size: int64(len(result.Content)),
			},
		}
	}

	p.cache.Set(relPath, result.Content, result.Device, result.Inode)

	if change.Kind == Created {
		if renamed, ok := p.inferRename(change, result.Device, result.Inode); ok {
			p.emit(renamed)
			return
		}
	}

	p.emit(change)
}

// emit applies duplicate suppression, appends the record, and notifies
// subscribers.
func (p *Processor) emit(c Change) {
	if p.isDuplicate(c) {
		return
	}
	c.Timestamp = p.log.NextTimestamp()
	p.log.Append(c)
	if p.onEvent != nil {
		p.onEvent(c)
	}
}

// isDuplicate scans the log backward for a record with the same path and
// kind (spec §4.5 step 4).
func (p *Processor) isDuplicate(c Change) bool {
	all := p.log.AllChanges()
	nowTs := time.Now().UnixNano()

	for i := len(all) - 1; i >= 0; i-- {
		existing := all[i]
		if existing.Path != c.Path || existing.Kind != c.Kind {
			continue
		}
		age := nowTs - existing.Timestamp
		if age <= duplicateWindowNs {
			return true
		}
		if age > duplicateStopNs {
			break
		}
	}
	return false
}

// inferRename walks the log backward for a `deleted` record matching the
// new file by inode or content fingerprint (spec §4.5 step 5).
func (p *Processor) inferRename(created Change, device, inode uint64) (Change, bool) {
	all := p.log.AllChanges()
	nowTs := time.Now().UnixNano()
	newFP := fingerprint(created.NewContent)

	for i := len(all) - 1; i >= 0; i-- {
		existing := all[i]
		if nowTs-existing.Timestamp > renameWindowNs {
			break
		}
		if existing.Kind != Deleted {
			continue
		}

		inodeMatch := device != 0 && inode != 0 &&
			existing.Metadata.Device == device && existing.Metadata.Inode == inode
		contentMatch := !inodeMatch && fingerprint(existing.OldContent) == newFP

		if inodeMatch || contentMatch {
			p.log.RemoveByTimestamp(existing.Timestamp)
			renamed := Change{
				Path:       created.Path,
				Kind:       Renamed,
				OldContent: existing.OldContent,
				NewContent: created.NewContent,
				ToolName:   created.ToolName,
				Metadata: Metadata{
					Device: device, Inode: inode,
					OldPath: existing.Path,
					OldSize: int64(len(existing.OldContent)),
					NewSize: int64(len(created.NewContent)),
					Size:    int64(len(created.NewContent)),
				},
			}
			return renamed, true
		}
	}
	return Change{}, false
}

type contentFingerprint struct {
	length int
	head   string
	tail   string
}

func fingerprint(content []byte) contentFingerprint {
	head := content
	if len(head) > fingerprintWindow {
		head = head[:fingerprintWindow]
	}
	tail := content
	if len(tail) > fingerprintWindow {
		tail = tail[len(tail)-fingerprintWindow:]
	}
	return contentFingerprint{length: len(content), head: string(head), tail: string(tail)}
}

// toRelative converts an absolute path to a root-relative, forward-slash
// path, or "" if it falls outside the root.
func (p *Processor) toRelative(absPath string) string {
	rel, err := filepath.Rel(p.root, absPath)
	if err != nil {
		return ""
	}
	if rel == "." || len(rel) >= 2 && rel[:2] == ".." {
		return ""
	}
	return filepath.ToSlash(rel)
}
