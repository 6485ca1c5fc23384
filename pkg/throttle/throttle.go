// Package throttle keeps the per-key cooldown and per-day write counters the
// knowledge router uses to rate-limit edits to soul documents.
package throttle

import (
	"context"
	"fmt"
	"time"
)

// Store persists throttle state. Implementations must be safe for
// concurrent use.
type Store interface {
	// LastAction returns the time of the most recent action for key.
	LastAction(ctx context.Context, key string) (time.Time, bool, error)
	// MarkAction records an action for key at t. Earlier times never
	// overwrite later ones.
	MarkAction(ctx context.Context, key string, t time.Time) error
	// DailyCount returns the number of writes recorded for subject on day.
	DailyCount(ctx context.Context, day, subject string) (int, error)
	// IncrementDaily adds one write for subject on day and returns the new count.
	IncrementDaily(ctx context.Context, day, subject string) (int, error)
}

// InterestKey is the throttle key for an interest cluster.
func InterestKey(cluster string) string {
	return "interest:" + cluster
}

// PersonalKey is the throttle key for a relationship subject.
func PersonalKey(subject string) string {
	return "personal:" + subject
}

// DayFormat is the calendar-day layout used for daily counters and bullets.
const DayFormat = "2006-01-02"

// Gate answers throttle questions against a Store using an injectable clock.
type Gate struct {
	store Store
	now   func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// NewGate creates a Gate over store.
func NewGate(store Store, opts ...GateOption) *Gate {
	g := &Gate{store: store, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Now returns the gate's current time.
func (g *Gate) Now() time.Time {
	return g.now()
}

// Today returns the current local calendar day.
func (g *Gate) Today() string {
	return g.now().Format(DayFormat)
}

// Throttled reports whether key acted less than window ago.
func (g *Gate) Throttled(ctx context.Context, key string, window time.Duration) (bool, error) {
	last, ok, err := g.store.LastAction(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read throttle for %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	return g.now().Sub(last) < window, nil
}

// Mark records an action for key now.
func (g *Gate) Mark(ctx context.Context, key string) error {
	if err := g.store.MarkAction(ctx, key, g.now()); err != nil {
		return fmt.Errorf("failed to record throttle for %s: %w", key, err)
	}
	return nil
}

// Used returns how many writes subject has consumed today.
func (g *Gate) Used(ctx context.Context, subject string) (int, error) {
	n, err := g.store.DailyCount(ctx, g.Today(), subject)
	if err != nil {
		return 0, fmt.Errorf("failed to read daily count for %s: %w", subject, err)
	}
	return n, nil
}

// Consume records one write for subject today and returns the new total.
func (g *Gate) Consume(ctx context.Context, subject string) (int, error) {
	n, err := g.store.IncrementDaily(ctx, g.Today(), subject)
	if err != nil {
		return 0, fmt.Errorf("failed to update daily count for %s: %w", subject, err)
	}
	return n, nil
}
