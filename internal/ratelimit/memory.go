package ratelimit

import (
	"sync"
	"time"
)

// MemoryStore is the default in-process Store backed by a locked map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Update applies fn to the entry for key under the store lock.
func (s *MemoryStore) Update(key string, fn func(e *Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &Entry{}
		s.entries[key] = e
	}
	fn(e)
	return nil
}

// Get returns a copy of the entry for key.
func (s *MemoryStore) Get(key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	cp := *e
	cp.Violations = append([]time.Time(nil), e.Violations...)
	return cp, true, nil
}

// Sweep drops entries whose window ended before cutoff and whose violations
// are all older than cutoff.
func (s *MemoryStore) Sweep(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if !e.WindowEnd.Before(cutoff) {
			continue
		}
		stale := true
		for _, v := range e.Violations {
			if !v.Before(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
