// Package fsmonitor tracks filesystem changes under a working directory
// while an external agent mutates it, grouping observed creations,
// modifications, deletions, and renames into ordered checkpoints and
// supporting selective revert back to any of them, or to the original
// pre-session state.
//
// This is the public API surface named in the specification's External
// Interfaces section; it is a thin wrapper over internal/session.Registry,
// the same "root package is the library's public entry point" shape
// agilira-argus uses for its own root package around internal/cli.
package fsmonitor

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/bassamsdata/fsmonitor/internal/logging"
	"github.com/bassamsdata/fsmonitor/internal/monitor"
	"github.com/bassamsdata/fsmonitor/internal/session"
)

// Re-exported types so callers never need to import internal packages.
type (
	Change           = monitor.Change
	ChangeKind       = monitor.ChangeKind
	Checkpoint       = monitor.Checkpoint
	Config           = monitor.Config
	Event            = monitor.Event
	EventKind        = monitor.EventKind
	Metadata         = monitor.Metadata
	PrepopulateStats = monitor.PrepopulateStats
	RevertResult     = monitor.RevertResult
	Stats            = monitor.Stats
	StartOpts        = monitor.StartOpts
	TagArgs          = monitor.TagArgs
	Session          = session.Session
	SessionMeta      = session.Metadata
	StopOptions      = session.StopOptions
)

const (
	Created  = monitor.Created
	Modified = monitor.Modified
	Deleted  = monitor.Deleted
	Renamed  = monitor.Renamed

	EventStarted     = monitor.EventStarted
	EventStopped     = monitor.EventStopped
	EventCheckpoint  = monitor.EventCheckpoint
	EventFileChanged = monitor.EventFileChanged
)

var (
	globalMu sync.RWMutex
	registry = session.NewRegistry(monitor.DefaultConfig())
)

// Setup installs global configuration for every session created afterward.
// Idempotent.
func Setup(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	registry.Setup(cfg)
	logDir := ""
	if cfg.DebugFile != "" {
		logDir = filepath.Dir(cfg.DebugFile)
	}
	logging.Init(logging.Config{
		Debug:  cfg.Debug,
		LogDir: logDir,
	})
}

// CreateSessionOpts are the optional arguments to CreateSession.
type CreateSessionOpts struct {
	ID       string
	Metadata SessionMeta
}

// CreateSession creates a new idle session rooted at root. IDs are unique;
// auto-generated when opts.ID is empty.
func CreateSession(root string, opts CreateSessionOpts) *Session {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return registry.Create(root, opts.ID, opts.Metadata)
}

// GetSession returns the session with id, or nil.
func GetSession(id string) *Session {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return registry.Get(id)
}

// GetAllSessions returns every currently registered session, keyed by id.
func GetAllSessions() map[string]*Session {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return registry.All()
}

// Start begins watching for session id. ok is false (with SessionNotFound
// implied by a nil session) if id is unknown.
func Start(ctx context.Context, id string, opts StartOpts) (ok bool, err error) {
	s := GetSession(id)
	if s == nil {
		return false, session.ErrSessionNotFound
	}
	return s.Start(ctx, opts)
}

// Pause halts intake for session id and invokes callback with the changes
// produced during the watch interval just ended.
func Pause(id string, callback func([]Change)) {
	s := GetSession(id)
	if s == nil {
		return
	}
	s.Pause(callback)
}

// Resume restarts watching for a paused session.
func Resume(ctx context.Context, id string, opts StartOpts) (bool, error) {
	s := GetSession(id)
	if s == nil {
		return false, session.ErrSessionNotFound
	}
	return s.Resume(ctx, opts)
}

// Stop destroys session id, gated by StopOptions.Confirm unless Force is
// set or the log is empty.
func Stop(id string, opts StopOptions) bool {
	s := GetSession(id)
	if s == nil {
		return false
	}
	ok := s.Stop(opts)
	if ok {
		globalMu.Lock()
		registry.Remove(id)
		globalMu.Unlock()
	}
	return ok
}

// Destroy unconditionally ends session id.
func Destroy(id string) {
	s := GetSession(id)
	if s == nil {
		return
	}
	s.Destroy()
	globalMu.Lock()
	registry.Remove(id)
	globalMu.Unlock()
}

// ClearAll destroys every registered session.
func ClearAll() {
	globalMu.Lock()
	defer globalMu.Unlock()
	registry.ClearAll()
}

// CreateCheckpoint stamps a checkpoint for session id, or returns nil if id
// is unknown or has never been started.
func CreateCheckpoint(id string, label string) *Checkpoint {
	mon := monitorFor(id)
	if mon == nil {
		return nil
	}
	cp := mon.CreateCheckpoint(label)
	return &cp
}

// GetCheckpoints returns the checkpoint list for session id.
func GetCheckpoints(id string) []Checkpoint {
	mon := monitorFor(id)
	if mon == nil {
		return nil
	}
	return mon.Log().Checkpoints()
}

// GetChanges returns a snapshot of the change log for session id.
func GetChanges(id string) []Change {
	mon := monitorFor(id)
	if mon == nil {
		return nil
	}
	return mon.Log().AllChanges()
}

// FlushPendingAndGetChanges forces pending debounce timers to fire, awaits
// in-flight reads, and invokes callback with the resulting log snapshot.
func FlushPendingAndGetChanges(id string, callback func([]Change)) {
	mon := monitorFor(id)
	if mon == nil {
		if callback != nil {
			callback(nil)
		}
		return
	}
	changes := mon.FlushPendingAndGet()
	if callback != nil {
		callback(changes)
	}
}

// RevertToCheckpoint reverts session id's filesystem to the state captured
// at checkpoints[index] (1-based, per spec §4.8).
func RevertToCheckpoint(id string, index int) *RevertResult {
	mon := monitorFor(id)
	if mon == nil {
		return nil
	}
	return mon.RevertToCheckpoint(index)
}

// RevertToOriginal reverts session id's filesystem to its pre-session
// state.
func RevertToOriginal(id string) *RevertResult {
	mon := monitorFor(id)
	if mon == nil {
		return nil
	}
	return mon.RevertToOriginal()
}

// TagChanges attributes every change between startNs and endNs to tool.
func TagChanges(id string, startNs, endNs int64, tool string, args TagArgs) {
	mon := monitorFor(id)
	if mon == nil {
		return
	}
	mon.TagChangesInRange(startNs, endNs, tool, args)
}

// GetStats returns the Stats snapshot for session id, or nil if unknown.
func GetStats(id string) *Stats {
	mon := monitorFor(id)
	if mon == nil {
		return nil
	}
	stats := mon.Stats()
	return &stats
}

func monitorFor(id string) *monitor.Monitor {
	s := GetSession(id)
	if s == nil {
		return nil
	}
	return s.Monitor()
}
