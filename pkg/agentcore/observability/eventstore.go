package observability

import (
	"sync"
	"time"
)

// EventStore holds TracedEvents and exposes synchronous, read-only queries
// over them. It is the in-memory analogue of the Python original's
// EventStore: no durable backend, no network surface, just slice filtering
// behind a mutex.
type EventStore struct {
	mu     sync.RWMutex
	events []TracedEvent
	max    int
}

// NewEventStore creates a store that keeps at most max events (0 = unbounded).
func NewEventStore(max int) *EventStore {
	return &EventStore{max: max}
}

// Append adds an event, evicting the oldest entry if max is exceeded.
func (s *EventStore) Append(e TracedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if s.max > 0 && len(s.events) > s.max {
		s.events = s.events[len(s.events)-s.max:]
	}
}

// All returns a copy of every recorded event, oldest first.
func (s *EventStore) All() []TracedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TracedEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ByKind returns events matching the given kind, oldest first.
func (s *EventStore) ByKind(kind EventKind) []TracedEvent {
	return filter(s.All(), func(e TracedEvent) bool { return e.Kind == kind })
}

// ByCorrelation returns events sharing a correlation ID, oldest first.
func (s *EventStore) ByCorrelation(correlationID string) []TracedEvent {
	return filter(s.All(), func(e TracedEvent) bool { return e.CorrelationID == correlationID })
}

// InWindow returns events whose timestamp falls within [since, until].
func (s *EventStore) InWindow(since, until time.Time) []TracedEvent {
	return filter(s.All(), func(e TracedEvent) bool {
		return !e.Timestamp.Before(since) && !e.Timestamp.After(until)
	})
}

// LastN returns the most recent n events, oldest first within that slice.
func (s *EventStore) LastN(n int) []TracedEvent {
	all := s.All()
	if n >= len(all) {
		return all
	}
	if n <= 0 {
		return nil
	}
	return all[len(all)-n:]
}

// Where returns events for which predicate evaluates true against a
// variable set derived from the event's fields. Expressions use the same
// boolean grammar as Evaluator.Evaluate (==, !=, <, >, and, or, not, contains).
func (s *EventStore) Where(predicate string) ([]TracedEvent, error) {
	evaluator := NewEvaluator()
	all := s.All()
	out := make([]TracedEvent, 0, len(all))
	for _, e := range all {
		vars := eventVars(e)
		ok, err := evaluator.Evaluate(predicate, vars)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func eventVars(e TracedEvent) map[string]any {
	return map[string]any{
		"kind":           string(e.Kind),
		"correlation_id": e.CorrelationID,
		"source":         e.Source,
		"model":          e.Model,
		"tool_name":      e.ToolName,
		"from_event":     e.FromEvent,
		"to_event":       e.ToEvent,
	}
}

func filter(events []TracedEvent, pred func(TracedEvent) bool) []TracedEvent {
	out := make([]TracedEvent, 0, len(events))
	for _, e := range events {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}
