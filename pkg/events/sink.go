package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/entrhq/soulcore/pkg/logging"
)

// CurrentLog is the soul-relative JSONL file a watcher tails.
const CurrentLog = ".soul-events/current.jsonl"

// Bus receives events. Emit must not block for long and never fails the
// caller; delivery problems are the sink's to log.
type Bus interface {
	Emit(ctx context.Context, e Event)
}

// Nop drops every event.
type Nop struct{}

// Emit implements Bus.
func (Nop) Emit(context.Context, Event) {}

// Appender is the part of soulfs.Dir the file sink needs.
type Appender interface {
	Append(ctx context.Context, rel, data string) error
}

type wireEvent struct {
	TS     int64                  `json:"ts"`
	Type   Type                   `json:"type"`
	Source string                 `json:"source"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// FileSink appends events as JSON lines to CurrentLog.
type FileSink struct {
	files  Appender
	logger *logging.Logger
	now    func() time.Time
}

// NewFileSink creates a sink writing through files.
func NewFileSink(files Appender, logger *logging.Logger) *FileSink {
	if logger == nil {
		logger = logging.Nop("events")
	}
	return &FileSink{files: files, logger: logger, now: time.Now}
}

// Emit implements Bus.
func (s *FileSink) Emit(ctx context.Context, e Event) {
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	line, err := json.Marshal(wireEvent{
		TS:     e.Time.UnixMilli(),
		Type:   e.Type,
		Source: e.Source,
		Data:   e.Data,
	})
	if err != nil {
		s.logger.Warnf("failed to encode %s event: %v", e.Type, err)
		return
	}
	if err := s.files.Append(ctx, CurrentLog, string(line)+"\n"); err != nil {
		s.logger.Warnf("failed to append %s event: %v", e.Type, err)
	}
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Bus.
func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
