package audit

import (
	"context"
	"log/slog"
	"sync"
)

// LogSink writes events to a structured logger. It is the sink of last resort
// when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "audit_event",
		"audit_id", e.ID,
		"component", e.Component,
		"action", e.Action,
		"subject", e.Subject,
		"decision", e.Decision,
		"reason", e.Reason,
		"request_id", e.RequestID,
	)
	return nil
}

// MemorySink keeps events in memory for tests and the feature suite.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Actions lists the Action of every event, in order.
func (s *MemorySink) Actions() []string {
	events := s.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

// MultiSink appends to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
