package observability

import (
	"sync"
	"time"
)

// EventKind identifies the kind of activity a TracedEvent records.
type EventKind string

const (
	KindLLMCall         EventKind = "llm_call"
	KindLLMResponse     EventKind = "llm_response"
	KindToolCall        EventKind = "tool_call"
	KindAgentInteraction EventKind = "agent_interaction"
)

// TracedEvent is one entry in the tracer's in-memory log. It is never
// persisted: the tracer is an observation aid, not a durable audit trail.
type TracedEvent struct {
	Kind           EventKind
	Timestamp      time.Time
	CorrelationID  string
	Source         string
	Model          string
	Messages       []any
	ToolName       string
	ToolArguments  map[string]any
	ToolResult     any
	FromEvent      string
	ToEvent        string
	Data           map[string]any
}

// Tracer observes broker and dispatcher activity. Core code never checks
// whether a Tracer is present — callers always hold a real Tracer or the
// NoopTracer, matching the null-object pattern used throughout this module.
type Tracer interface {
	RecordLLMCall(correlationID, source, model string, messages []any)
	RecordLLMResponse(correlationID, source, model string, response any)
	RecordToolCall(correlationID, source, toolName string, args map[string]any, result any)
	RecordAgentInteraction(correlationID, fromEvent, toEvent string, data map[string]any)

	// Enabled reports whether recording is active. Callers may use this to
	// skip building expensive event payloads when tracing is off.
	Enabled() bool

	// Events returns a queryable snapshot of recorded events.
	Events() *EventStore
}

// NoopTracer discards everything. It is the default when no tracer is
// configured, so core code can call Tracer methods unconditionally.
type NoopTracer struct{}

var _ Tracer = NoopTracer{}

func (NoopTracer) RecordLLMCall(string, string, string, []any)                    {}
func (NoopTracer) RecordLLMResponse(string, string, string, any)                  {}
func (NoopTracer) RecordToolCall(string, string, string, map[string]any, any)     {}
func (NoopTracer) RecordAgentInteraction(string, string, string, map[string]any) {}
func (NoopTracer) Enabled() bool                                                 { return false }
func (NoopTracer) Events() *EventStore                                           { return NewEventStore(0) }

// InMemoryTracer records TracedEvents in a bounded ring buffer guarded by a
// mutex, matching the Python original's TracerSystem: a thin recorder in
// front of an in-process event store with an enabled flag.
type InMemoryTracer struct {
	mu      sync.Mutex
	enabled bool
	store   *EventStore
}

// NewInMemoryTracer creates a Tracer that keeps up to maxEvents in memory
// (0 means unbounded).
func NewInMemoryTracer(maxEvents int) *InMemoryTracer {
	return &InMemoryTracer{enabled: true, store: NewEventStore(maxEvents)}
}

var _ Tracer = (*InMemoryTracer)(nil)

func (t *InMemoryTracer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetEnabled toggles recording without discarding previously recorded events.
func (t *InMemoryTracer) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *InMemoryTracer) RecordLLMCall(correlationID, source, model string, messages []any) {
	if !t.Enabled() {
		return
	}
	t.store.Append(TracedEvent{
		Kind: KindLLMCall, Timestamp: time.Now(), CorrelationID: correlationID,
		Source: source, Model: model, Messages: messages,
	})
}

func (t *InMemoryTracer) RecordLLMResponse(correlationID, source, model string, response any) {
	if !t.Enabled() {
		return
	}
	t.store.Append(TracedEvent{
		Kind: KindLLMResponse, Timestamp: time.Now(), CorrelationID: correlationID,
		Source: source, Model: model, Data: map[string]any{"response": response},
	})
}

func (t *InMemoryTracer) RecordToolCall(correlationID, source, toolName string, args map[string]any, result any) {
	if !t.Enabled() {
		return
	}
	t.store.Append(TracedEvent{
		Kind: KindToolCall, Timestamp: time.Now(), CorrelationID: correlationID,
		Source: source, ToolName: toolName, ToolArguments: args, ToolResult: result,
	})
}

func (t *InMemoryTracer) RecordAgentInteraction(correlationID, fromEvent, toEvent string, data map[string]any) {
	if !t.Enabled() {
		return
	}
	t.store.Append(TracedEvent{
		Kind: KindAgentInteraction, Timestamp: time.Now(), CorrelationID: correlationID,
		FromEvent: fromEvent, ToEvent: toEvent, Data: data,
	})
}

func (t *InMemoryTracer) Events() *EventStore {
	return t.store
}
