package services

import (
	"errors"
	"sync"
)

// ErrDuplicateSession means the session id is already tracking a live external
// edit. Callers drop the new request silently; two resources must never share
// an id.
var ErrDuplicateSession = errors.New("edit session already registered")

// editSession is one live external-edit round trip. The path never changes
// after registration; releases are attached once the editor pane is open.
type editSession struct {
	id       string
	path     string
	surface  string
	original string
	releases []func()
}

// editSessionRegistry owns the at-most-one-session-per-id invariant. Claim is
// the single linearization point for terminal events: whichever caller removes
// the entry runs cleanup, everyone else observes absence and no-ops.
type editSessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*editSession
}

func newEditSessionRegistry() *editSessionRegistry {
	return &editSessionRegistry{sessions: make(map[string]*editSession)}
}

func (r *editSessionRegistry) register(s *editSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.id]; exists {
		return ErrDuplicateSession
	}
	r.sessions[s.id] = s
	return nil
}

func (r *editSessionRegistry) lookup(id string) (*editSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// claim atomically checks and removes the entry for id. Exactly one caller
// gets the session back; later callers get nil.
func (r *editSessionRegistry) claim(id string) (*editSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	return s, true
}

// setReleases records the listener release funcs on a still-registered
// session. A session claimed in the meantime keeps them out of the registry;
// the caller must release them itself.
func (r *editSessionRegistry) setReleases(id string, releases []func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.releases = releases
	return true
}

func (r *editSessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
