package soulfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDir(t *testing.T) *Dir {
	t.Helper()
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	return d
}

func TestNewDirRejectsMissingAndFiles(t *testing.T) {
	_, err := NewDir("")
	assert.Error(t, err)

	_, err = NewDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = NewDir(file)
	assert.Error(t, err)
}

func TestReadWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := newTestDir(t)

	require.NoError(t, d.Write(ctx, "relationships/alex.md", "# Alex\n"))
	assert.True(t, d.Exists(ctx, "relationships/alex.md"))

	got, err := d.Read(ctx, "relationships/alex.md")
	require.NoError(t, err)
	assert.Equal(t, "# Alex\n", got)

	_, err = os.Stat(filepath.Join(d.Root(), "relationships", "alex.md.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestReadMissing(t *testing.T) {
	d := newTestDir(t)
	_, err := d.Read(context.Background(), "INTERESTS.md")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, d.Exists(context.Background(), "INTERESTS.md"))
}

func TestPathConfinement(t *testing.T) {
	ctx := context.Background()
	d := newTestDir(t)

	for _, rel := range []string{"../escape.md", "a/../../escape.md", "/etc/passwd"} {
		t.Run(rel, func(t *testing.T) {
			_, err := d.Read(ctx, rel)
			assert.True(t, errors.Is(err, ErrOutsideRoot), "read %s: %v", rel, err)
			err = d.Write(ctx, rel, "x")
			assert.True(t, errors.Is(err, ErrOutsideRoot), "write %s: %v", rel, err)
		})
	}
}

func TestSymlinkEscape(t *testing.T) {
	ctx := context.Background()
	d := newTestDir(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.md"), []byte("s"), 0o600))
	if err := os.Symlink(filepath.Join(outside, "secret.md"), filepath.Join(d.Root(), "link.md")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := d.Read(ctx, "link.md")
	assert.True(t, errors.Is(err, ErrOutsideRoot))
}

func TestWritePolicy(t *testing.T) {
	ctx := context.Background()
	d := newTestDir(t)

	for _, rel := range []string{".env", "SEED.md", "SOUL.md", "relationships/.env", ".git/config"} {
		err := d.Write(ctx, rel, "x")
		assert.True(t, errors.Is(err, ErrDenied), "%s should be denied, got %v", rel, err)
	}
	assert.NoError(t, d.Write(ctx, "INTERESTS.md", "x"))
}

func TestCustomWritePolicy(t *testing.T) {
	p, err := NewWritePolicy([]string{"relationships/*.md", ".soul-route-log.json"}, DeniedByDefault)
	require.NoError(t, err)

	assert.True(t, p.IsAllowed("relationships/alex.md"))
	assert.True(t, p.IsAllowed(".soul-route-log.json"))
	assert.False(t, p.IsAllowed("relationships/nested/alex.md"))
	assert.False(t, p.IsAllowed("INTERESTS.md"))

	_, err = NewWritePolicy([]string{"[unclosed"}, nil)
	assert.Error(t, err)
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	d := newTestDir(t)

	require.NoError(t, d.Append(ctx, ".soul-events/current.jsonl", "one\n"))
	require.NoError(t, d.Append(ctx, ".soul-events/current.jsonl", "two\n"))

	got, err := d.Read(ctx, ".soul-events/current.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", got)
}

func TestGlob(t *testing.T) {
	ctx := context.Background()
	d := newTestDir(t)
	require.NoError(t, d.Write(ctx, "relationships/alex-miller.md", "a"))
	require.NoError(t, d.Write(ctx, "relationships/alex.md", "b"))
	require.NoError(t, d.Write(ctx, "relationships/sam.md", "c"))

	got, err := d.Glob(ctx, "relationships", "alex*.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"relationships/alex-miller.md", "relationships/alex.md"}, got)

	got, err = d.Glob(ctx, "beziehungen", "*.md")
	require.NoError(t, err)
	assert.Empty(t, got)
}
