package throttle

import (
	"context"
	"sync"
	"time"
)

type dayKey struct {
	day     string
	subject string
}

// MemoryStore keeps throttle state for the lifetime of the process.
type MemoryStore struct {
	mu    sync.Mutex
	last  map[string]time.Time
	daily map[dayKey]int
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		last:  make(map[string]time.Time),
		daily: make(map[dayKey]int),
	}
}

// LastAction implements Store.
func (s *MemoryStore) LastAction(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.last[key]
	return t, ok, nil
}

// MarkAction implements Store.
func (s *MemoryStore) MarkAction(_ context.Context, key string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.last[key]; ok && prev.After(t) {
		return nil
	}
	s.last[key] = t
	return nil
}

// DailyCount implements Store.
func (s *MemoryStore) DailyCount(_ context.Context, day, subject string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.daily[dayKey{day, subject}], nil
}

// IncrementDaily implements Store. Counters of past days are dropped on the
// first write of a new day.
func (s *MemoryStore) IncrementDaily(_ context.Context, day, subject string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.daily {
		if k.day < day {
			delete(s.daily, k)
		}
	}
	k := dayKey{day, subject}
	s.daily[k]++
	return s.daily[k], nil
}
