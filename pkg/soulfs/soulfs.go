// Package soulfs confines reads and writes to a single soul directory.
// All paths handed to an FS are relative to the soul root and use forward
// slashes; anything resolving outside the root is rejected.
package soulfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

var (
	// ErrNotFound is returned when a file does not exist.
	ErrNotFound = errors.New("soulfs: file not found")
	// ErrOutsideRoot is returned for paths that escape the soul root.
	ErrOutsideRoot = errors.New("soulfs: path outside soul root")
	// ErrDenied is returned when the write policy rejects a path.
	ErrDenied = errors.New("soulfs: write denied by policy")
)

// FS is the file layer the core components work against. Implementations
// may add transparent encryption at rest; callers only ever see plain text.
type FS interface {
	Read(ctx context.Context, rel string) (string, error)
	Write(ctx context.Context, rel, content string) error
	Exists(ctx context.Context, rel string) bool
	// Glob lists the files directly inside dir whose base name matches
	// pattern. A missing dir yields no matches.
	Glob(ctx context.Context, dir, pattern string) ([]string, error)
}

// Dir is an FS rooted at a directory on local disk.
type Dir struct {
	root   string
	policy *WritePolicy
	mu     sync.Mutex // serializes appends
}

// Option configures a Dir.
type Option func(*Dir)

// WithWritePolicy replaces the default write policy.
func WithWritePolicy(p *WritePolicy) Option {
	return func(d *Dir) {
		d.policy = p
	}
}

// NewDir opens root as a soul directory. The root must exist.
func NewDir(root string, opts ...Option) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("soul directory cannot be empty")
	}
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve soul directory: %w", err)
	}
	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate soul directory symlinks: %w", err)
	}
	info, err := os.Stat(evalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat soul directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("soul path %s is not a directory", evalPath)
	}

	d := &Dir{root: evalPath, policy: DefaultWritePolicy()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Root returns the absolute soul root.
func (d *Dir) Root() string {
	return d.root
}

// Resolve maps rel onto an absolute path inside the root.
func (d *Dir) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %s is absolute", ErrOutsideRoot, rel)
	}
	clean := path.Clean(filepath.ToSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	abs := filepath.Join(d.root, filepath.FromSlash(clean))
	if !d.within(abs) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}

	// A symlink inside the root may still point elsewhere.
	if eval, err := filepath.EvalSymlinks(abs); err == nil && !d.within(eval) {
		return "", fmt.Errorf("%w: %s resolves to %s", ErrOutsideRoot, rel, eval)
	}
	return abs, nil
}

func (d *Dir) within(abs string) bool {
	rel, err := filepath.Rel(d.root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Read returns the content of rel.
func (d *Dir) Read(_ context.Context, rel string) (string, error) {
	abs, err := d.Resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return string(data), nil
}

// Write replaces rel with content atomically, creating parent directories
// as needed.
func (d *Dir) Write(_ context.Context, rel, content string) error {
	abs, err := d.writable(rel)
	if err != nil {
		return err
	}

	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", rel, err)
	}
	return nil
}

// Append adds data to the end of rel, creating it if needed.
func (d *Dir) Append(_ context.Context, rel, data string) error {
	abs, err := d.writable(rel)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", rel, err)
	}
	if _, err := f.WriteString(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append to %s: %w", rel, err)
	}
	return f.Close()
}

func (d *Dir) writable(rel string) (string, error) {
	abs, err := d.Resolve(rel)
	if err != nil {
		return "", err
	}
	if d.policy != nil && !d.policy.IsAllowed(path.Clean(filepath.ToSlash(rel))) {
		return "", fmt.Errorf("%w: %s", ErrDenied, rel)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	return abs, nil
}

// Exists reports whether rel is an existing regular file.
func (d *Dir) Exists(_ context.Context, rel string) bool {
	abs, err := d.Resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// Glob lists files in dir whose names match pattern, sorted.
func (d *Dir) Glob(_ context.Context, dir, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	abs, err := d.Resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() || !g.Match(e.Name()) {
			continue
		}
		matches = append(matches, path.Join(dir, e.Name()))
	}
	sort.Strings(matches)
	return matches, nil
}
