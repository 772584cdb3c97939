package bridge

import "sync"

// DeletedSet holds the stream ids of incidents whose delete notice was
// delivered. It only grows and lives as long as the process.
type DeletedSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewDeletedSet creates an empty set.
func NewDeletedSet() *DeletedSet {
	return &DeletedSet{ids: make(map[string]struct{})}
}

// Contains reports whether id was recorded.
func (s *DeletedSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Add records id.
func (s *DeletedSet) Add(id string) {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

// Len returns the number of recorded ids.
func (s *DeletedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
