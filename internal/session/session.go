// Package session implements the Session facade of spec §4.9: lifecycle
// operations (create/start/pause/resume/stop/destroy) layered over a single
// internal/monitor.Monitor, plus the process-wide Registry spec §6's public
// API operates against.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bassamsdata/fsmonitor/internal/logging"
	"github.com/bassamsdata/fsmonitor/internal/monitor"
)

var sessionLog = logging.ForComponent(logging.CompSession)

// ErrSessionNotFound is returned (or signaled via a nil/empty result, per
// spec §7) when an operation names an id the registry doesn't recognize.
var ErrSessionNotFound = errors.New("session: not found")

type sessionState string

const (
	stateIdle     sessionState = "idle"
	stateWatching sessionState = "watching"
	stateTerminal sessionState = "terminal"
)

// Metadata is caller-supplied, opaque bookkeeping attached to a session at
// creation time.
type Metadata map[string]string

// Session is one watched working directory plus its Monitor (spec §3,
// §4.9).
type Session struct {
	ID        string
	Root      string
	StartedAt time.Time
	Metadata  Metadata

	mu    sync.Mutex
	state sessionState
	mon   *monitor.Monitor
	cfg   monitor.Config

	ignoreFileLoaded bool

	// intervalStart is the log length when the current watch interval began.
	intervalStart int
}

// StopOptions configures Stop.
type StopOptions struct {
	// Force skips the confirmation callback even when the log is non-empty.
	Force bool
	// Confirm is invoked when the log is non-empty and Force is false; the
	// session is only destroyed if it returns true. This is the one
	// user-visible side effect the core surfaces through a caller-supplied
	// decision function rather than coupling to a UI (spec §4.9).
	Confirm func(changeCount int) bool
}

// New constructs an idle Session. Use Registry.Create to obtain one bound
// into the process-wide registry.
func New(root string, cfg monitor.Config, metadata Metadata) *Session {
	id := uuid.NewString()
	return &Session{
		ID:       id,
		Root:     root,
		Metadata: metadata,
		state:    stateIdle,
		cfg:      cfg,
	}
}

// Subscribe forwards to the underlying Monitor once one exists. Calling
// before the first Start is a no-op; callers that need events from the very
// first Start should call Start first, or rely on the registry-level
// subscription (not provided by this package — host-integration concern).
func (s *Session) Subscribe(fn func(monitor.Event)) {
	s.mu.Lock()
	mon := s.mon
	s.mu.Unlock()
	if mon != nil {
		mon.Subscribe(fn)
	}
}

// Start transitions idle -> watching. Only valid from idle; starting an
// already-watching session returns the existing handle rather than an
// error (spec §4.9).
func (s *Session) Start(ctx context.Context, opts monitor.StartOpts) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateTerminal {
		return false, ErrSessionNotFound
	}
	if s.state == stateWatching {
		return true, nil
	}

	if s.mon == nil {
		cfg, err := monitor.LoadProjectConfig(s.Root, s.cfg)
		if err != nil {
			sessionLog.Warn("project_config_load_failed", slog.String("root", s.Root), slog.String("error", err.Error()))
			cfg = s.cfg
		}
		s.cfg = cfg.WithDefaults()

		ignoreFilter, err := s.buildIgnoreFilter()
		if err != nil {
			return false, err
		}
		s.mon = monitor.New(s.Root, s.cfg, s.defaultToolName(), ignoreFilter)
	}

	ok, err := s.mon.Start(ctx, opts)
	if err != nil {
		return false, err
	}
	if ok {
		s.state = stateWatching
		s.intervalStart = s.mon.Log().Len()
		if s.StartedAt.IsZero() {
			s.StartedAt = time.Now()
		}
	}
	return ok, nil
}

// buildIgnoreFilter loads ignore-file patterns rooted at the watch root
// (idempotent per root, per spec §4.9) and combines them with the
// session's configured user/never-ignore patterns.
func (s *Session) buildIgnoreFilter() (*monitor.IgnoreFilter, error) {
	var ignoreFilePatterns []monitor.GitignorePattern
	if s.cfg.RespectGitignore {
		patterns, err := monitor.LoadIgnoreFile(s.Root + "/.gitignore")
		if err != nil {
			sessionLog.Warn("ignore_file_load_failed", slog.String("root", s.Root), slog.String("error", err.Error()))
		} else {
			ignoreFilePatterns = patterns
		}
	}
	return monitor.NewIgnoreFilter(ignoreFilePatterns, s.cfg.IgnorePatterns, s.cfg.NeverIgnore)
}

func (s *Session) defaultToolName() string {
	if tool, ok := s.Metadata["workspace_label"]; ok && tool != "" {
		return tool
	}
	return "session:" + s.ID
}

// Pause transitions watching -> idle, flushing pending changes and invoking
// callback with the changes produced during this watch interval (spec
// §4.9).
func (s *Session) Pause(callback func([]monitor.Change)) {
	s.mu.Lock()
	mon := s.mon
	wasWatching := s.state == stateWatching
	before := s.intervalStart
	s.mu.Unlock()

	if mon == nil || !wasWatching {
		return
	}

	mon.Pause()

	s.mu.Lock()
	s.state = stateIdle
	s.mu.Unlock()

	if callback != nil {
		all := mon.Log().AllChanges()
		interval := all
		if before <= len(all) {
			interval = all[before:]
		}
		callback(interval)
	}
}

// Resume is equivalent to Start on a paused session.
func (s *Session) Resume(ctx context.Context, opts monitor.StartOpts) (bool, error) {
	return s.Start(ctx, opts)
}

// Stop destroys the session from any state. If the log is non-empty and
// opts.Force is false, opts.Confirm gates the destruction (spec §4.9).
func (s *Session) Stop(opts StopOptions) bool {
	s.mu.Lock()
	mon := s.mon
	alreadyTerminal := s.state == stateTerminal
	s.mu.Unlock()

	if alreadyTerminal {
		return true
	}

	if mon != nil && !opts.Force {
		count := mon.Log().Len()
		if count > 0 {
			if opts.Confirm == nil || !opts.Confirm(count) {
				return false
			}
		}
	}

	s.Destroy()
	return true
}

// Destroy stops the watch if any, clears the cache, and marks the session
// terminal (spec §4.9).
func (s *Session) Destroy() {
	s.mu.Lock()
	mon := s.mon
	s.state = stateTerminal
	s.mu.Unlock()

	if mon != nil {
		mon.Destroy()
	}
}

// IsTerminal reports whether Stop/Destroy has already ended this session.
func (s *Session) IsTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateTerminal
}

// Monitor exposes the underlying engine for the package-level API wrapper
// (root package fsmonitor) to call Checkpoint/Revert/Tag/Stats operations
// against. Returns nil if Start has never been called.
func (s *Session) Monitor() *monitor.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mon
}
