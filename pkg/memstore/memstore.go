// Package memstore is the companion's memory store: tagged episodic memories
// plus named entities with observations. The claim verifier only reads from
// it; hosts write to it.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyExists is returned when a memory id is reused.
	ErrAlreadyExists = errors.New("memstore: memory already exists")
	// ErrInvalid is returned for memories missing required fields.
	ErrInvalid = errors.New("memstore: invalid memory")
)

// DefaultLimit caps searches that do not set one.
const DefaultLimit = 10

// Memory is one episodic memory.
type Memory struct {
	ID        string    `yaml:"id" json:"id"`
	Content   string    `yaml:"-" json:"content"`
	Tags      []string  `yaml:"tags" json:"tags"`
	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
}

// Text returns the content followed by the tags, the form claim matching
// runs against.
func (m Memory) Text() string {
	if len(m.Tags) == 0 {
		return m.Content
	}
	return m.Content + " " + strings.Join(m.Tags, " ")
}

// Entity is a named node of the knowledge graph.
type Entity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`
}

// Text returns the name followed by all observations.
func (e Entity) Text() string {
	parts := append([]string{e.Name}, e.Observations...)
	return strings.Join(parts, " ")
}

// Query selects memories carrying any of Tags.
type Query struct {
	Tags  []string
	Limit int
}

// EntityOptions bounds entity searches.
type EntityOptions struct {
	Limit int
}

// Store is the read side of the memory store.
type Store interface {
	// SearchStructured returns memories sharing at least one tag with
	// q.Tags, newest first.
	SearchStructured(ctx context.Context, q Query) ([]Memory, error)
	// SearchEntities returns entities whose name or observations mention a
	// word of query.
	SearchEntities(ctx context.Context, query string, opts EntityOptions) ([]Entity, error)
}

// NewMemoryID generates a new unique memory identifier.
func NewMemoryID() string {
	return "mem_" + uuid.NewString()
}

// NormalizeTags lowercases, trims and de-duplicates tags, keeping order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func hasAnyTag(m Memory, want map[string]bool) bool {
	for _, t := range m.Tags {
		if want[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

func filterMemories(all []Memory, q Query) []Memory {
	want := make(map[string]bool)
	for _, t := range NormalizeTags(q.Tags) {
		want[t] = true
	}
	if len(want) == 0 {
		return nil
	}
	var out []Memory
	for _, m := range all {
		if hasAnyTag(m, want) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return truncate(out, q.Limit)
}

func queryWords(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
}

func entityMatches(e Entity, words []string) bool {
	text := strings.ToLower(e.Text())
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func filterEntities(all []Entity, query string, opts EntityOptions) []Entity {
	words := queryWords(query)
	if len(words) == 0 {
		return nil
	}
	var out []Entity
	for _, e := range all {
		if entityMatches(e, words) {
			out = append(out, e)
		}
	}
	return truncate(out, opts.Limit)
}

func truncate[T any](items []T, limit int) []T {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
