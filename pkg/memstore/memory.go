package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Hosts and tests fill it directly.
type MemoryStore struct {
	memories map[string]Memory
	entities map[string]*Entity
	order    []string // entity names in insertion order
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		memories: make(map[string]Memory),
		entities: make(map[string]*Entity),
		now:      time.Now,
	}
}

// Add stores a new memory and returns it with id and timestamp filled in.
func (s *MemoryStore) Add(content string, tags []string) (Memory, error) {
	if strings.TrimSpace(content) == "" {
		return Memory{}, fmt.Errorf("%w: content cannot be empty", ErrInvalid)
	}
	m := Memory{
		ID:        NewMemoryID(),
		Content:   content,
		Tags:      NormalizeTags(tags),
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[m.ID] = m
	return m, nil
}

// AddEntity inserts an entity or merges observations into an existing one
// with the same name.
func (s *MemoryStore) AddEntity(e Entity) error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return fmt.Errorf("%w: entity name cannot be empty", ErrInvalid)
	}
	key := strings.ToLower(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entities[key]
	if !ok {
		cp := Entity{Name: name, EntityType: e.EntityType, Observations: append([]string(nil), e.Observations...)}
		s.entities[key] = &cp
		s.order = append(s.order, key)
		return nil
	}
	seen := make(map[string]bool, len(existing.Observations))
	for _, o := range existing.Observations {
		seen[o] = true
	}
	for _, o := range e.Observations {
		if !seen[o] {
			existing.Observations = append(existing.Observations, o)
			seen[o] = true
		}
	}
	return nil
}

// Len returns the number of memories.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.memories)
}

// SearchStructured implements Store.
func (s *MemoryStore) SearchStructured(_ context.Context, q Query) ([]Memory, error) {
	s.mu.RLock()
	all := make([]Memory, 0, len(s.memories))
	for _, m := range s.memories {
		all = append(all, m)
	}
	s.mu.RUnlock()
	return filterMemories(all, q), nil
}

// SearchEntities implements Store.
func (s *MemoryStore) SearchEntities(_ context.Context, query string, opts EntityOptions) ([]Entity, error) {
	s.mu.RLock()
	all := make([]Entity, 0, len(s.order))
	for _, key := range s.order {
		e := s.entities[key]
		all = append(all, Entity{Name: e.Name, EntityType: e.EntityType, Observations: append([]string(nil), e.Observations...)})
	}
	s.mu.RUnlock()
	return filterEntities(all, query, opts), nil
}
