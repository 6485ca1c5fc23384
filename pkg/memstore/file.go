package memstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/soulcore/pkg/logging"
)

const frontMatterDelimiter = "---"

// GraphFile is the knowledge graph file name inside the soul directory.
const GraphFile = "knowledge-graph.jsonl"

// FileStore reads memories from Markdown files with YAML front-matter in a
// memories directory, and entities from a JSONL knowledge graph.
type FileStore struct {
	memDir    string
	graphPath string
	logger    *logging.Logger
	mu        sync.Mutex // guards graph appends
}

// NewFileStore creates a store over memDir and graphPath. memDir is created
// when missing; the graph file is optional.
func NewFileStore(memDir, graphPath string, logger *logging.Logger) (*FileStore, error) {
	if err := os.MkdirAll(memDir, 0o750); err != nil {
		return nil, fmt.Errorf("memstore: init directory %s: %w", memDir, err)
	}
	if logger == nil {
		logger = logging.Nop("memstore")
	}
	return &FileStore{memDir: memDir, graphPath: graphPath, logger: logger}, nil
}

func (fs *FileStore) pathForID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrInvalid)
	}
	if strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return "", fmt.Errorf("%w: id %q contains a path separator", ErrInvalid, id)
	}
	dir, err := filepath.Abs(fs.memDir)
	if err != nil {
		return "", fmt.Errorf("memstore: abs dir: %w", err)
	}
	return filepath.Join(dir, id+".md"), nil
}

// Add writes m as a new memory file. Existing ids are never overwritten.
func (fs *FileStore) Add(_ context.Context, m Memory) error {
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: content cannot be empty", ErrInvalid)
	}
	m.Tags = NormalizeTags(m.Tags)
	b, err := Serialize(m)
	if err != nil {
		return err
	}
	path, err := fs.pathForID(m.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return ErrAlreadyExists
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("memstore: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("memstore: atomic rename %s: %w", path, err)
	}
	return nil
}

// List returns every readable memory. Corrupt files are skipped.
func (fs *FileStore) List(_ context.Context) ([]Memory, error) {
	entries, err := os.ReadDir(fs.memDir)
	if err != nil {
		return nil, fmt.Errorf("memstore: list %s: %w", fs.memDir, err)
	}
	var out []Memory
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		path := filepath.Join(fs.memDir, e.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			fs.logger.Debugf("skipping unreadable memory file %s: %v", path, err)
			continue
		}
		m, err := Parse(b)
		if err != nil {
			fs.logger.Debugf("skipping corrupt memory file %s: %v", path, err)
			continue
		}
		if m.ID == "" {
			m.ID = strings.TrimSuffix(e.Name(), ".md")
		}
		out = append(out, m)
	}
	return out, nil
}

// SearchStructured implements Store.
func (fs *FileStore) SearchStructured(ctx context.Context, q Query) ([]Memory, error) {
	all, err := fs.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterMemories(all, q), nil
}

type graphRecord struct {
	Type string `json:"type"`
	Entity
}

// Entities reads every entity record of the knowledge graph. Records for
// the same name are merged in file order.
func (fs *FileStore) Entities(_ context.Context) ([]Entity, error) {
	f, err := os.Open(fs.graphPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memstore: open graph: %w", err)
	}
	defer f.Close()

	index := make(map[string]int)
	var out []Entity
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec graphRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			fs.logger.Debugf("skipping malformed graph line %d: %v", n, err)
			continue
		}
		if rec.Type != "entity" || rec.Name == "" {
			continue
		}
		key := strings.ToLower(rec.Name)
		if i, ok := index[key]; ok {
			out[i].Observations = append(out[i].Observations, rec.Observations...)
			continue
		}
		index[key] = len(out)
		out = append(out, rec.Entity)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("memstore: read graph: %w", err)
	}
	return out, nil
}

// AddEntity appends an entity record to the knowledge graph.
func (fs *FileStore) AddEntity(_ context.Context, e Entity) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: entity name cannot be empty", ErrInvalid)
	}
	line, err := json.Marshal(graphRecord{Type: "entity", Entity: e})
	if err != nil {
		return fmt.Errorf("memstore: encode entity: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, err := os.OpenFile(fs.graphPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("memstore: open graph: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("memstore: append graph: %w", err)
	}
	return f.Close()
}

// SearchEntities implements Store.
func (fs *FileStore) SearchEntities(ctx context.Context, query string, opts EntityOptions) ([]Entity, error) {
	all, err := fs.Entities(ctx)
	if err != nil {
		return nil, err
	}
	return filterEntities(all, query, opts), nil
}

// Parse reads a memory file: YAML front-matter followed by the content.
func Parse(raw []byte) (Memory, error) {
	s := string(raw)
	if !strings.HasPrefix(s, frontMatterDelimiter) {
		return Memory{}, fmt.Errorf("memstore: missing front-matter delimiter")
	}
	rest := s[len(frontMatterDelimiter):]
	idx := strings.Index(rest, "\n"+frontMatterDelimiter)
	if idx == -1 {
		return Memory{}, fmt.Errorf("memstore: unclosed front-matter block")
	}
	body := strings.TrimLeft(rest[idx+len("\n"+frontMatterDelimiter):], "\n")

	var m Memory
	if err := yaml.Unmarshal([]byte(rest[:idx]), &m); err != nil {
		return Memory{}, fmt.Errorf("memstore: front-matter parse error: %w", err)
	}
	m.Content = strings.TrimRight(body, "\n")
	return m, nil
}

// Serialize renders m in the on-disk format read by Parse.
func Serialize(m Memory) ([]byte, error) {
	meta, err := yaml.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("memstore: serialize error: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(frontMatterDelimiter + "\n")
	sb.Write(meta)
	sb.WriteString(frontMatterDelimiter + "\n\n")
	sb.WriteString(m.Content)
	sb.WriteString("\n")
	return []byte(sb.String()), nil
}
