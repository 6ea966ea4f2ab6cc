package session

import (
	"sort"
	"sync"
)

// Store holds the public snapshots of all known sessions. Reads return
// copies so callers can never mutate shared state. The *AndNotify variants
// run their callback under the store lock so that HTTP readers cannot
// observe a state change before WebSocket clients have been queued the
// corresponding delta.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*SessionState),
	}
}

func (s *Store) Get(id string) (*SessionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// GetAll returns copies of every session, ordered by id for stable output.
func (s *Store) GetAll() []*SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*SessionState, 0, len(s.sessions))
	for _, st := range s.sessions {
		result = append(result, st.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) Update(state *SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.ID] = state.Clone()
}

// UpdateAndNotify commits a state update and invokes notify while still
// holding the write lock.
func (s *Store) UpdateAndNotify(state *SessionState, notify func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.ID] = state.Clone()
	if notify != nil {
		notify()
	}
}

// BatchUpdateAndNotify commits several updates atomically, then invokes
// notify under the same lock.
func (s *Store) BatchUpdateAndNotify(states []*SessionState, notify func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range states {
		s.sessions[state.ID] = state.Clone()
	}
	if notify != nil {
		notify()
	}
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// BatchRemoveAndNotify removes several sessions atomically, then invokes
// notify under the same lock.
func (s *Store) BatchRemoveAndNotify(ids []string, notify func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.sessions, id)
	}
	if notify != nil {
		notify()
	}
}

// Len returns the number of known sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ActiveCount returns the number of sessions currently working or waiting.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, st := range s.sessions {
		if st.IsActive() {
			count++
		}
	}
	return count
}

// AttentionCount returns the number of sessions blocked on the user.
func (s *Store) AttentionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, st := range s.sessions {
		if st.NeedsAttention() {
			count++
		}
	}
	return count
}
