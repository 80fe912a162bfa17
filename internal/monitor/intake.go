package monitor

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bassamsdata/fsmonitor/internal/logging"
)

var intakeLog = logging.ForComponent(logging.CompIntake)

// intake owns one *fsnotify.Watcher for a single watched root, debouncing
// raw OS events into batches dispatched to dispatchBatch. Grounded directly
// on the teacher's StatusFileWatcher debounce loop
// (internal/session/hook_watcher.go).
type intake struct {
	root         string
	debounceMs   int
	watcher      *fsnotify.Watcher
	dispatch     func(batch map[string]struct{})

	mu       sync.Mutex
	pending  map[string]struct{}
	timer    *time.Timer
	disabled bool

	stopOnce sync.Once
	done     chan struct{}
}

func newIntake(root string, debounceMs int, dispatch func(batch map[string]struct{})) (*intake, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &intake{
		root:       root,
		debounceMs: debounceMs,
		watcher:    watcher,
		dispatch:   dispatch,
		pending:    make(map[string]struct{}),
		done:       make(chan struct{}),
	}, nil
}

// start establishes the OS watch and begins the event loop. Must be called
// once; returns an error if the watch could not be added (spec §7,
// WatchStartFailure).
func (in *intake) start(recursive bool, shouldSkipDir func(relPath string) bool) error {
	if err := addWatchRecursive(in.watcher, in.root, recursive, shouldSkipDir); err != nil {
		in.watcher.Close()
		return err
	}
	go in.loop()
	return nil
}

func (in *intake) loop() {
	for {
		select {
		case <-in.done:
			return

		case event, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			in.handleEvent(event)

		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			intakeLog.Warn("watch_error", slog.String("root", in.root), slog.String("error", err.Error()))
		}
	}
}

func (in *intake) handleEvent(event fsnotify.Event) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.disabled {
		return
	}

	absPath := event.Name
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(in.root, absPath)
	}
	in.pending[absPath] = struct{}{}

	if in.timer != nil {
		in.timer.Stop()
	}
	in.timer = time.AfterFunc(time.Duration(in.debounceMs)*time.Millisecond, in.fire)
}

// fire snapshots and clears the pending set, then dispatches it. Running on
// the timer's own goroutine, never the event-loop goroutine, matches the
// teacher's debounce timer callback shape.
func (in *intake) fire() {
	in.mu.Lock()
	if len(in.pending) == 0 {
		in.mu.Unlock()
		return
	}
	batch := in.pending
	in.pending = make(map[string]struct{})
	in.mu.Unlock()

	in.dispatch(batch)
}

// flush forces the debounce timer to fire immediately and blocks until the
// dispatched batch has been handed off (spec §4.7 flush_pending_and_get).
// The caller is responsible for then waiting on outstanding processor work.
func (in *intake) flush() {
	in.mu.Lock()
	if in.timer != nil {
		in.timer.Stop()
	}
	in.mu.Unlock()
	in.fire()
}

// disable stops accepting new events without tearing down the watcher,
// used by Pause (spec §4.9: "halts event intake... destroys the watch
// handle").
func (in *intake) disable() {
	in.mu.Lock()
	in.disabled = true
	if in.timer != nil {
		in.timer.Stop()
	}
	in.mu.Unlock()
}

// stop tears down the OS watch and the event loop. Safe to call once.
func (in *intake) stop() {
	in.stopOnce.Do(func() {
		in.disable()
		close(in.done)
		in.watcher.Close()
	})
}

// addWatchRecursive adds root (and, if recursive, every subdirectory not
// excluded by shouldSkipDir) to watcher. Fine-grained per-file ignore
// filtering happens later in the processor; this only avoids descending
// into directories the ignore filter already knows to drop (e.g. .git,
// node_modules) to keep the OS watch handle count bounded.
func addWatchRecursive(watcher *fsnotify.Watcher, root string, recursive bool, shouldSkipDir func(relPath string) bool) error {
	if err := watcher.Add(root); err != nil {
		return err
	}
	if !recursive {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if shouldSkipDir != nil && shouldSkipDir(rel) {
			return filepath.SkipDir
		}
		if addErr := watcher.Add(path); addErr != nil {
			intakeLog.Warn("watch_add_failed", slog.String("path", path), slog.String("error", addErr.Error()))
		}
		return nil
	})
}
