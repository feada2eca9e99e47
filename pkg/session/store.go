package session

import (
	"errors"
	"image"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("session not found")

// Store keeps live sessions in memory. Nothing is persisted.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
}

func NewStore(cfg Config) *Store {
	return &Store{sessions: make(map[string]*Session), cfg: cfg.withDefaults()}
}

// Create starts a session on src.
func (st *Store) Create(src image.Image) (*Session, error) {
	s, err := New(src, st.cfg)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sessions[s.ID()] = s
	st.mu.Unlock()
	return s, nil
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete drops a session and its results.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(st.sessions, id)
	return nil
}

// IDs returns the live session ids, sorted.
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
