package memstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSearchStructured(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	clock := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	}

	_, err := s.Add("Plays guitar on weekends", []string{"Guitar", "hobby", "guitar"})
	require.NoError(t, err)
	_, err = s.Add("Started piano lessons", []string{"piano", "hobby"})
	require.NoError(t, err)
	_, err = s.Add("Works at a bakery", []string{"work"})
	require.NoError(t, err)

	_, err = s.Add("  ", nil)
	assert.True(t, errors.Is(err, ErrInvalid))

	got, err := s.SearchStructured(ctx, Query{Tags: []string{"HOBBY"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Started piano lessons", got[0].Content, "newest first")
	assert.Equal(t, []string{"guitar", "hobby"}, got[1].Tags)

	got, _ = s.SearchStructured(ctx, Query{Tags: []string{"hobby"}, Limit: 1})
	assert.Len(t, got, 1)

	got, _ = s.SearchStructured(ctx, Query{})
	assert.Empty(t, got, "no tags, no results")
}

func TestMemoryStoreEntities(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.AddEntity(Entity{Name: "Alex", EntityType: "person", Observations: []string{"plays guitar"}}))
	require.NoError(t, s.AddEntity(Entity{Name: "alex", Observations: []string{"plays guitar", "lives in Berlin"}}))
	require.NoError(t, s.AddEntity(Entity{Name: "Synthwave", EntityType: "genre"}))
	assert.Error(t, s.AddEntity(Entity{}))

	got, err := s.SearchEntities(ctx, "berlin", EntityOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"plays guitar", "lives in Berlin"}, got[0].Observations)

	got, _ = s.SearchEntities(ctx, "guitar synthwave", EntityOptions{Limit: 5})
	assert.Len(t, got, 2)

	got, _ = s.SearchEntities(ctx, "", EntityOptions{})
	assert.Empty(t, got)
}

func TestParseSerialize(t *testing.T) {
	m := Memory{
		ID:        "mem_1",
		Content:   "Loves synthwave",
		Tags:      []string{"music"},
		CreatedAt: time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC),
	}
	b, err := Serialize(m)
	require.NoError(t, err)

	got, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Content, got.Content)
	assert.Equal(t, m.Tags, got.Tags)
	assert.True(t, m.CreatedAt.Equal(got.CreatedAt))

	_, err = Parse([]byte("no front matter"))
	assert.Error(t, err)
	_, err = Parse([]byte("---\nid: x\n"))
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFileStore(filepath.Join(root, "memories"), filepath.Join(root, GraphFile), nil)
	require.NoError(t, err)

	m := Memory{ID: NewMemoryID(), Content: "Plays guitar", Tags: []string{"Guitar", "hobby"}, CreatedAt: time.Now()}
	require.NoError(t, fs.Add(ctx, m))
	assert.True(t, errors.Is(fs.Add(ctx, m), ErrAlreadyExists))
	assert.Error(t, fs.Add(ctx, Memory{ID: "../x", Content: "x"}))

	// Corrupt files are skipped.
	require.NoError(t, os.WriteFile(filepath.Join(root, "memories", "broken.md"), []byte("nope"), 0o600))

	got, err := fs.SearchStructured(ctx, Query{Tags: []string{"guitar"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Plays guitar", got[0].Content)
	assert.Equal(t, []string{"guitar", "hobby"}, got[0].Tags)
}

func TestFileStoreGraph(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	graph := filepath.Join(root, GraphFile)
	fs, err := NewFileStore(filepath.Join(root, "memories"), graph, nil)
	require.NoError(t, err)

	entities, err := fs.Entities(ctx)
	require.NoError(t, err)
	assert.Empty(t, entities, "missing graph is empty")

	require.NoError(t, os.WriteFile(graph, []byte(
		`{"type":"entity","name":"Alex","entityType":"person","observations":["plays guitar"]}`+"\n"+
			`{"type":"relation","from":"Alex","to":"Sam","relationType":"knows"}`+"\n"+
			"garbage\n"), 0o600))
	require.NoError(t, fs.AddEntity(ctx, Entity{Name: "alex", Observations: []string{"quit smoking"}}))

	got, err := fs.SearchEntities(ctx, "smoking", EntityOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alex", got[0].Name)
	assert.Equal(t, []string{"plays guitar", "quit smoking"}, got[0].Observations)
}
