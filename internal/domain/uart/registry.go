package uart

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/uartd/internal/shared/id"
)

// Registry tracks live sessions by ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[id.SessionID]*Session)}
}

// Add registers a session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

// Get looks up a session.
func (r *Registry) Get(sid id.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	return s, ok
}

// List returns live sessions in creation order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	// ULIDs sort by creation time.
	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
	return list
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove unregisters a session without closing it.
func (r *Registry) Remove(sid id.SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if ok {
		delete(r.sessions, sid)
	}
	return s, ok
}

// Close unregisters and closes a session.
func (r *Registry) Close(sid id.SessionID) error {
	s, ok := r.Remove(sid)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	return s.Close()
}

// CloseAll closes every session, collecting errors.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for sid, s := range r.sessions {
		list = append(list, s)
		delete(r.sessions, sid)
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range list {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
