// Package core wires the soulcore components over one soul directory: the
// file layer, the event sink, the memory store, the embedding provider, the
// claim verifier and the knowledge router.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/entrhq/soulcore/pkg/config"
	"github.com/entrhq/soulcore/pkg/embedding"
	"github.com/entrhq/soulcore/pkg/events"
	"github.com/entrhq/soulcore/pkg/lang"
	"github.com/entrhq/soulcore/pkg/logging"
	"github.com/entrhq/soulcore/pkg/memstore"
	"github.com/entrhq/soulcore/pkg/router"
	"github.com/entrhq/soulcore/pkg/soulfs"
	"github.com/entrhq/soulcore/pkg/throttle"
	"github.com/entrhq/soulcore/pkg/verify"
)

// Core holds the wired components for one soul.
type Core struct {
	Config   *config.Config
	Files    *soulfs.Dir
	Events   *events.FileSink
	Memories *memstore.FileStore
	Embedder *embedding.Provider
	Verifier *verify.Verifier
	Router   *router.Router

	state   throttle.Store
	closers []func() error
	logger  *logging.Logger
	now     func() time.Time
}

// Option configures Core construction.
type Option func(*options)

type options struct {
	newLogger func(component string) *logging.Logger
	now       func() time.Time
}

// WithLoggerFactory replaces the session file loggers, e.g. with
// logging.Nop in tests.
func WithLoggerFactory(fn func(component string) *logging.Logger) Option {
	return func(o *options) {
		o.newLogger = fn
	}
}

// WithClock overrides time.Now for throttling and memory timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New builds a Core from cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Core, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Core{Config: cfg, now: o.now}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()
	newLogger := o.newLogger
	if newLogger == nil {
		newLogger = func(component string) *logging.Logger {
			// NewLogger falls back to stderr and reports why; keep going.
			l, _ := logging.NewLogger(component)
			c.closers = append(c.closers, l.Close)
			return l
		}
	}
	c.logger = newLogger("core")
	language := cfg.Lang()

	policy, err := writePolicy()
	if err != nil {
		return nil, err
	}
	files, err := soulfs.NewDir(cfg.SoulPath, soulfs.WithWritePolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("failed to open soul directory: %w", err)
	}
	c.Files = files
	c.Events = events.NewFileSink(files, newLogger("events"))

	memDir := memoriesDir(files.Root(), language)
	c.Memories, err = memstore.NewFileStore(memDir, filepath.Join(files.Root(), memstore.GraphFile), newLogger("memstore"))
	if err != nil {
		return nil, err
	}

	switch cfg.State.Backend {
	case config.BackendSQLite:
		store, err := throttle.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			return nil, err
		}
		c.state = store
		c.closers = append(c.closers, store.Close)
	default:
		c.state = throttle.NewMemoryStore()
	}

	c.Embedder = embedding.NewProvider(ctx, cfg.EmbeddingSettings(), embedding.WithLogger(newLogger("embedding")))

	c.Verifier = verify.New(c.Memories,
		verify.WithEnabled(cfg.Verifier.Enabled),
		verify.WithBudget(cfg.Verifier.Budget),
		verify.WithLimits(cfg.Verifier.TagLimit, cfg.Verifier.EntityLimit),
		verify.WithLanguage(language),
		verify.WithEventBus(c.Events),
		verify.WithLogger(newLogger("verifier")),
	)

	c.Router = router.New(files,
		router.WithThrottleStore(c.state),
		router.WithClock(o.now),
		router.WithClusters(cfg.Router.Clusters),
		router.WithLanguage(language),
		router.WithEventBus(c.Events),
		router.WithLogger(newLogger("router")),
		router.WithInterestThrottle(cfg.Router.InterestThrottle),
		router.WithPersonalThrottle(cfg.Router.PersonalThrottle),
		router.WithDailyCap(cfg.Router.DailyPersonalCap),
		router.WithMaxFactLength(cfg.Router.MaxFactLength),
		router.WithDedupPrefix(cfg.Router.DedupPrefix),
		router.WithRouteLogCapacity(cfg.Router.RouteLogCapacity),
	)

	c.logger.Infof("soul %s ready (language %s, embedding %s, state %s)",
		files.Root(), language, c.Embedder.Name(), cfg.State.Backend)
	return c, nil
}

// writePolicy limits writes to the documents the router owns, the route log
// and the event log.
func writePolicy() (*soulfs.WritePolicy, error) {
	allowed := []string{router.RouteLogFile, events.CurrentLog}
	for _, l := range lang.All() {
		t := l.Table()
		allowed = append(allowed, t.InterestsFile, t.RelationshipsDir+"/**")
	}
	return soulfs.NewWritePolicy(allowed, soulfs.DeniedByDefault)
}

// memoriesDir returns the existing memories directory, preferring the
// configured language.
func memoriesDir(root string, l lang.Language) string {
	for _, cand := range []lang.Language{l, l.Other()} {
		dir := filepath.Join(root, cand.Table().MemoriesDir)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return filepath.Join(root, l.Table().MemoriesDir)
}

// Verify checks a generated reply against the soul's memories.
func (c *Core) Verify(ctx context.Context, reply, query string) verify.Result {
	return c.Verifier.Check(ctx, reply, query)
}

// Route files the signals of one conversational turn.
func (c *Core) Route(ctx context.Context, learned router.Learned, rawText, subject string) router.Report {
	return c.Router.RouteAll(ctx, learned, rawText, subject)
}

// Remember stores a new memory in the soul's memory store.
func (c *Core) Remember(ctx context.Context, content string, tags []string) (memstore.Memory, error) {
	m := memstore.Memory{
		ID:        memstore.NewMemoryID(),
		Content:   content,
		Tags:      memstore.NormalizeTags(tags),
		CreatedAt: c.now(),
	}
	if err := c.Memories.Add(ctx, m); err != nil {
		return memstore.Memory{}, err
	}
	return m, nil
}

// Close releases the state store and log files.
func (c *Core) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
