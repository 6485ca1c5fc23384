package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/soulcore/pkg/logging"
	"github.com/entrhq/soulcore/pkg/soulfs"
)

// RouteLogFile is the route log location relative to the soul root.
const RouteLogFile = ".soul-route-log.json"

// DefaultRouteLogCapacity is the number of entries kept in the route log.
const DefaultRouteLogCapacity = 200

// Route names a routing track.
type Route string

const (
	RouteInterests Route = "interests"
	RoutePersonal  Route = "personal"
)

// Action is the outcome of one routing decision.
type Action string

const (
	ActionUpdated      Action = "updated"
	ActionSuggested    Action = "suggested"
	ActionWritten      Action = "written"
	ActionThrottled    Action = "throttled"
	ActionDailyLimit   Action = "daily_limit"
	ActionFileNotFound Action = "file_not_found"
)

// RouteLogEntry records one routing decision.
type RouteLogEntry struct {
	Time    time.Time `json:"time"`
	Route   Route     `json:"route"`
	Trigger string    `json:"trigger"`
	Target  string    `json:"target"`
	Action  Action    `json:"action"`
}

// RouteLog is a bounded log of routing decisions stored as one JSON array.
// The newest entries are kept.
type RouteLog struct {
	files    soulfs.FS
	path     string
	capacity int
	logger   *logging.Logger
	mu       sync.Mutex
}

// NewRouteLog creates a route log stored at RouteLogFile in files.
func NewRouteLog(files soulfs.FS, capacity int, logger *logging.Logger) *RouteLog {
	if capacity <= 0 {
		capacity = DefaultRouteLogCapacity
	}
	if logger == nil {
		logger = logging.Nop("routelog")
	}
	return &RouteLog{files: files, path: RouteLogFile, capacity: capacity, logger: logger}
}

// Path returns the log location relative to the soul root.
func (l *RouteLog) Path() string {
	return l.path
}

// Append adds entries and evicts the oldest ones past capacity.
func (l *RouteLog) Append(ctx context.Context, entries ...RouteLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.load(ctx)
	all = append(all, entries...)
	if over := len(all) - l.capacity; over > 0 {
		all = all[over:]
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode route log: %w", err)
	}
	if err := l.files.Write(ctx, l.path, string(data)+"\n"); err != nil {
		return fmt.Errorf("failed to write route log: %w", err)
	}
	return nil
}

// Entries returns the stored entries, oldest first.
func (l *RouteLog) Entries(ctx context.Context) []RouteLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// load reads the log. A missing or corrupt log reads as empty.
func (l *RouteLog) load(ctx context.Context) []RouteLogEntry {
	raw, err := l.files.Read(ctx, l.path)
	if err != nil {
		if !errors.Is(err, soulfs.ErrNotFound) {
			l.logger.Warnf("failed to read route log: %v", err)
		}
		return nil
	}
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var entries []RouteLogEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.logger.Warnf("discarding corrupt route log: %v", err)
		return nil
	}
	return entries
}
