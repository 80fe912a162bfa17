package session

import (
	"sync"

	"github.com/bassamsdata/fsmonitor/internal/monitor"
)

// Registry is the process-wide session table (spec §6, §9: "Model it as an
// explicit object owned by the host; do not make it a singleton"). Every
// mutation happens under a single mutex, grounded on the teacher's
// globalPool/globalHTTPPool guard pattern
// (internal/session/pool_manager.go).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      monitor.Config
}

// NewRegistry creates an empty registry using cfg as the default
// per-session configuration.
func NewRegistry(cfg monitor.Config) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg.WithDefaults(),
	}
}

// Setup replaces the registry's default configuration. Idempotent: later
// calls simply overwrite earlier ones.
func (r *Registry) Setup(cfg monitor.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg.WithDefaults()
}

// Create adds a new idle session rooted at root, with an auto-generated id
// unless a non-empty id is supplied.
func (r *Registry) Create(root string, id string, metadata Metadata) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := New(root, r.cfg, metadata)
	if id != "" {
		s.ID = id
	}
	r.sessions[s.ID] = s
	return s
}

// Get returns the session with id, or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// All returns a defensive copy of the id -> Session map.
func (r *Registry) All() map[string]*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Session, len(r.sessions))
	for id, s := range r.sessions {
		out[id] = s
	}
	return out
}

// Remove drops id from the registry without touching the session itself
// (callers are expected to have already called Destroy).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// ClearAll destroys every session and empties the registry.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Destroy()
	}
}
