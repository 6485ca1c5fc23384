// Package router files newly observed conversational facts into the soul's
// markdown documents. Interest keywords become cluster updates or suggestions
// in the interests file; personal disclosures become dated bullets in the
// subject's relationship file. Both tracks are throttled and every decision
// is recorded in the route log.
package router

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/soulcore/pkg/events"
	"github.com/entrhq/soulcore/pkg/lang"
	"github.com/entrhq/soulcore/pkg/logging"
	"github.com/entrhq/soulcore/pkg/soulfs"
	"github.com/entrhq/soulcore/pkg/throttle"
)

// Defaults for the routing limits.
const (
	DefaultInterestThrottle = 6 * time.Hour
	DefaultPersonalThrottle = 8 * time.Hour
	DefaultDailyCap         = 3
	DefaultMaxFactLength    = 200
	DefaultDedupPrefix      = 30
)

// Learned carries the signals a host detected in the latest turn.
type Learned struct {
	Interests []string `json:"interests"`
}

// Report is the outcome of one Route call, per track.
type Report struct {
	Interests []RouteLogEntry `json:"interests"`
	Personal  []RouteLogEntry `json:"personal"`
}

// Router routes learned facts into soul documents.
type Router struct {
	files    soulfs.FS
	store    throttle.Store
	now      func() time.Time
	gate     *throttle.Gate
	clusters *ClusterIndex
	log      *RouteLog
	bus      events.Bus
	logger   *logging.Logger
	language lang.Language

	interestThrottle time.Duration
	personalThrottle time.Duration
	dailyCap         int
	maxFactLen       int
	dedupPrefix      int
	logCapacity      int
}

// Option configures a Router.
type Option func(*Router)

// WithThrottleStore sets where throttle and quota state is kept.
func WithThrottleStore(s throttle.Store) Option {
	return func(r *Router) {
		r.store = s
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// WithClusters replaces the built-in cluster table.
func WithClusters(clusters []Cluster) Option {
	return func(r *Router) {
		if len(clusters) > 0 {
			r.clusters = NewClusterIndex(clusters)
		}
	}
}

// WithLanguage sets the preferred document language.
func WithLanguage(l lang.Language) Option {
	return func(r *Router) {
		r.language = l
	}
}

// WithEventBus sets where routing events are emitted.
func WithEventBus(b events.Bus) Option {
	return func(r *Router) {
		r.bus = b
	}
}

// WithLogger sets the router logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// WithInterestThrottle sets the minimum interval between edits of one cluster.
func WithInterestThrottle(d time.Duration) Option {
	return func(r *Router) {
		r.interestThrottle = d
	}
}

// WithPersonalThrottle sets the minimum interval between writes for one subject.
func WithPersonalThrottle(d time.Duration) Option {
	return func(r *Router) {
		r.personalThrottle = d
	}
}

// WithDailyCap sets how many personal facts may be written per subject per day.
func WithDailyCap(n int) Option {
	return func(r *Router) {
		r.dailyCap = n
	}
}

// WithMaxFactLength caps the length of a stored personal fact.
func WithMaxFactLength(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxFactLen = n
		}
	}
}

// WithDedupPrefix sets how many leading characters are compared when looking
// for same-day duplicates.
func WithDedupPrefix(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.dedupPrefix = n
		}
	}
}

// WithRouteLogCapacity sets how many route log entries are kept.
func WithRouteLogCapacity(n int) Option {
	return func(r *Router) {
		r.logCapacity = n
	}
}

// New creates a Router writing through files.
func New(files soulfs.FS, opts ...Option) *Router {
	r := &Router{
		files:            files,
		now:              time.Now,
		clusters:         NewClusterIndex(DefaultClusters),
		bus:              events.Nop{},
		language:         lang.Default,
		interestThrottle: DefaultInterestThrottle,
		personalThrottle: DefaultPersonalThrottle,
		dailyCap:         DefaultDailyCap,
		maxFactLen:       DefaultMaxFactLength,
		dedupPrefix:      DefaultDedupPrefix,
		logCapacity:      DefaultRouteLogCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Nop("router")
	}
	if r.store == nil {
		r.store = throttle.NewMemoryStore()
	}
	r.gate = throttle.NewGate(r.store, throttle.WithClock(r.now))
	r.log = NewRouteLog(files, r.logCapacity, r.logger)
	return r
}

// RouteLog returns the router's route log.
func (r *Router) RouteLog() *RouteLog {
	return r.log
}

// Clusters returns the cluster index in use.
func (r *Router) Clusters() *ClusterIndex {
	return r.clusters
}

// Route runs the interest and personal tracks concurrently and waits for
// both. Failures are logged; a failing track never affects the other.
func (r *Router) Route(ctx context.Context, learned Learned, rawText, subject string) {
	r.RouteAll(ctx, learned, rawText, subject)
}

// RouteAll is Route returning the decisions each track made.
func (r *Router) RouteAll(ctx context.Context, learned Learned, rawText, subject string) Report {
	var rep Report
	var g errgroup.Group

	g.Go(func() error {
		entries, err := r.RouteInterests(ctx, learned.Interests)
		if err != nil {
			r.logger.Errorf("interest routing failed: %v", err)
		}
		rep.Interests = entries
		return nil
	})
	g.Go(func() error {
		entries, err := r.RoutePersonal(ctx, rawText, subject)
		if err != nil {
			r.logger.Errorf("personal routing for %q failed: %v", subject, err)
		}
		rep.Personal = entries
		return nil
	})

	_ = g.Wait()
	return rep
}

func (r *Router) entry(route Route, trigger, target string, action Action) RouteLogEntry {
	return RouteLogEntry{
		Time:    r.gate.Now(),
		Route:   route,
		Trigger: trigger,
		Target:  target,
		Action:  action,
	}
}

// record appends entries to the route log. A log failure does not undo the
// routing that already happened.
func (r *Router) record(ctx context.Context, entries []RouteLogEntry) {
	if err := r.log.Append(ctx, entries...); err != nil {
		r.logger.Warnf("failed to record %d route log entries: %v", len(entries), err)
	}
}

// languages returns the configured language followed by the other one.
func (r *Router) languages() []lang.Language {
	return []lang.Language{r.language, r.language.Other()}
}
