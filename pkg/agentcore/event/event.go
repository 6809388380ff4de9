// Package event provides the event-driven core of the runtime: typed
// events, a pure routing table, cooperative and concurrent dispatchers,
// and a needed-event-type-set correlation aggregator.
//
// Design Influences:
//   - Apache Kafka (correlation IDs, fan-out/fan-in)
//   - Temporal (signals, causation chains)
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the core interface every event in the system implements.
// Events are immutable once created; deriving an event creates a new one.
type Event interface {
	ID() string
	Type() string
	Source() string

	// CorrelationKey groups causally-related events for aggregation and
	// tracing. Unless overridden, it defaults to the root event's own ID.
	CorrelationKey() string
	CausationID() string

	Timestamp() time.Time
	Data() any
	DataBytes() []byte
}

// TerminateEvent is a sentinel event type a dispatcher recognizes as a
// signal to stop draining its queue once the batch it arrived in has been
// delivered.
const TerminateEvent = "_terminate"

// Metadata holds the common fields every event carries.
type Metadata struct {
	EventID        string    `json:"id"`
	EventType      string    `json:"type"`
	EventSource    string    `json:"source"`
	CorrelationKey string    `json:"correlation_key"`
	CausationID    string    `json:"causation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// BaseEvent is the generic event implementation. T is the payload type.
type BaseEvent[T any] struct {
	Meta    Metadata `json:"metadata"`
	Payload T        `json:"payload"`

	cachedBytes []byte
}

func (e *BaseEvent[T]) ID() string               { return e.Meta.EventID }
func (e *BaseEvent[T]) Type() string             { return e.Meta.EventType }
func (e *BaseEvent[T]) Source() string           { return e.Meta.EventSource }
func (e *BaseEvent[T]) CorrelationKey() string   { return e.Meta.CorrelationKey }
func (e *BaseEvent[T]) CausationID() string      { return e.Meta.CausationID }
func (e *BaseEvent[T]) Timestamp() time.Time     { return e.Meta.Timestamp }
func (e *BaseEvent[T]) Data() any                { return e.Payload }
func (e *BaseEvent[T]) TypedData() T             { return e.Payload }

// DataBytes returns the serialized payload, cached after first call.
func (e *BaseEvent[T]) DataBytes() []byte {
	if e.cachedBytes == nil {
		e.cachedBytes, _ = json.Marshal(e.Payload)
	}
	return e.cachedBytes
}

// EventOption configures event creation.
type EventOption func(*eventConfig)

type eventConfig struct {
	id             string
	correlationKey string
	causationID    string
	timestamp      time.Time
}

func WithEventID(id string) EventOption {
	return func(cfg *eventConfig) { cfg.id = id }
}

func WithCorrelationKey(key string) EventOption {
	return func(cfg *eventConfig) { cfg.correlationKey = key }
}

func WithCausationID(id string) EventOption {
	return func(cfg *eventConfig) { cfg.causationID = id }
}

func WithTimestamp(t time.Time) EventOption {
	return func(cfg *eventConfig) { cfg.timestamp = t }
}

// New creates a new root event. Its correlation key defaults to its own ID.
func New[T any](eventType, source string, payload T, opts ...EventOption) *BaseEvent[T] {
	cfg := &eventConfig{id: uuid.New().String(), timestamp: time.Now()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.correlationKey == "" {
		cfg.correlationKey = cfg.id
	}
	return &BaseEvent[T]{
		Meta: Metadata{
			EventID:        cfg.id,
			EventType:      eventType,
			EventSource:    source,
			CorrelationKey: cfg.correlationKey,
			CausationID:    cfg.causationID,
			Timestamp:      cfg.timestamp,
		},
		Payload: payload,
	}
}

// NewFromParent creates an event caused by parent, inheriting its
// correlation key and recording parent's ID as the causation ID.
func NewFromParent[T any](parent Event, eventType, source string, payload T, opts ...EventOption) *BaseEvent[T] {
	parentOpts := []EventOption{
		WithCorrelationKey(parent.CorrelationKey()),
		WithCausationID(parent.ID()),
	}
	return New(eventType, source, payload, append(parentOpts, opts...)...)
}

// NewAny creates a root event with an untyped payload.
func NewAny(eventType, source string, payload any, opts ...EventOption) *BaseEvent[any] {
	return New(eventType, source, payload, opts...)
}

// NewTerminate creates a TerminateEvent instructing a dispatcher to stop
// after draining its current batch.
func NewTerminate(source string) *BaseEvent[any] {
	return New[any](TerminateEvent, source, nil)
}

// Handler processes events synchronously and optionally returns derived
// events for fan-out.
type Handler interface {
	Handle(ctx context.Context, evt Event) ([]Event, error)
	// Handles returns the event types this handler accepts. An empty
	// slice means the handler is a wildcard that accepts every type.
	Handles() []string
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, evt Event) ([]Event, error)

func (f HandlerFunc) Handle(ctx context.Context, evt Event) ([]Event, error) { return f(ctx, evt) }
func (f HandlerFunc) Handles() []string                                     { return nil }

// AsyncHandler is the async-capable counterpart of Handler. The concurrent
// dispatcher type-asserts for this interface and awaits it directly instead
// of running the handler on a worker goroutine, avoiding the duck-typing
// hasattr() check the reference implementation relies on.
type AsyncHandler interface {
	Handler
	HandleAsync(ctx context.Context, evt Event) ([]Event, error)
}

// TypedHandler wraps a function handling a specific payload type, matching
// JSON-object payloads by re-marshaling into T when a direct type assertion
// misses (e.g. after transport round-trips through map[string]any).
func TypedHandler[T any](eventTypes []string, fn func(ctx context.Context, payload T, meta Metadata) ([]Event, error)) Handler {
	return &typedHandler[T]{eventTypes: eventTypes, fn: fn}
}

type typedHandler[T any] struct {
	eventTypes []string
	fn         func(ctx context.Context, payload T, meta Metadata) ([]Event, error)
}

func (h *typedHandler[T]) Handle(ctx context.Context, evt Event) ([]Event, error) {
	var payload T
	switch d := evt.Data().(type) {
	case T:
		payload = d
	case map[string]any:
		bytes, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(bytes, &payload); err != nil {
			return nil, err
		}
	}

	meta := Metadata{
		EventID:        evt.ID(),
		EventType:      evt.Type(),
		EventSource:    evt.Source(),
		CorrelationKey: evt.CorrelationKey(),
		CausationID:    evt.CausationID(),
		Timestamp:      evt.Timestamp(),
	}
	return h.fn(ctx, payload, meta)
}

func (h *typedHandler[T]) Handles() []string { return h.eventTypes }

// MiddlewareFunc wraps a Handler to add cross-cutting concerns (logging,
// retry, tracing).
type MiddlewareFunc func(next Handler) Handler

// ChainMiddleware applies middleware in order, the first being outermost.
func ChainMiddleware(handler Handler, middleware ...MiddlewareFunc) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}
