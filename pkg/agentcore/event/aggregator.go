package event

import (
	"context"
	"sync"
	"time"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
	"github.com/agentcore/agentcore/pkg/agentcore/observability"
)

// Store persists the buffered events awaiting correlation, keyed by
// correlation key. The in-memory implementation below is the default; a
// Redis-backed Store lives in pkg/agentcore/aggregator for multi-process
// deployments.
type Store interface {
	// Append adds evt to the buffer for key and returns the buffer's
	// current contents.
	Append(ctx context.Context, key string, evt Event) ([]Event, error)

	// Get returns the current buffer contents for key, without mutating it.
	Get(ctx context.Context, key string) ([]Event, error)

	// Reset clears the buffer for key.
	Reset(ctx context.Context, key string) error
}

// MemoryStore is the default in-process Store implementation.
type MemoryStore struct {
	mu      sync.Mutex
	buffers map[string][]Event
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buffers: make(map[string][]Event)}
}

func (s *MemoryStore) Append(_ context.Context, key string, evt Event) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffers[key] = append(s.buffers[key], evt)
	out := make([]Event, len(s.buffers[key]))
	copy(out, s.buffers[key])
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.buffers[key]))
	copy(out, s.buffers[key])
	return out, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, key)
	return nil
}

// OnComplete is invoked once a correlation key's buffer covers every
// needed event type. It receives the full buffered set (in arrival order,
// duplicates included) and returns any derived events to submit next.
type OnComplete func(ctx context.Context, correlationKey string, events []Event) ([]Event, error)

// CorrelationAggregator buffers events by correlation key until the
// buffer's set of distinct event types covers NeededTypes, then resets the
// buffer and fires OnComplete. Arrival order is irrelevant and duplicate
// event types are tolerated — only set coverage matters, matching the
// reference aggregator's event_types_needed check.
type CorrelationAggregator struct {
	Store      Store
	Needed     []string
	OnComplete OnComplete

	Tracer  observability.Tracer
	Metrics observability.MetricsRecorder

	mu      sync.Mutex
	waiters map[string][]chan []Event
}

// NewCorrelationAggregator creates an aggregator waiting on neededTypes,
// buffering in store (a MemoryStore if nil), and invoking onComplete when
// a correlation key's buffer is covered.
func NewCorrelationAggregator(neededTypes []string, store Store, onComplete OnComplete) *CorrelationAggregator {
	if store == nil {
		store = NewMemoryStore()
	}
	return &CorrelationAggregator{
		Store:      store,
		Needed:     neededTypes,
		OnComplete: onComplete,
		Tracer:     observability.NoopTracer{},
		Metrics:    observability.NoopMetrics{},
		waiters:    make(map[string][]chan []Event),
	}
}

var _ Handler = (*CorrelationAggregator)(nil)

// Handles reports the Needed event types, so a single Router.Register call
// subscribes the aggregator to every type it waits for.
func (a *CorrelationAggregator) Handles() []string {
	return a.Needed
}

// Handle buffers evt under its correlation key, and if the buffer now
// covers every needed type, resets the buffer, fires OnComplete, and
// releases any waiters blocked in WaitForEvents.
func (a *CorrelationAggregator) Handle(ctx context.Context, evt Event) ([]Event, error) {
	key := evt.CorrelationKey()
	buffered, err := a.Store.Append(ctx, key, evt)
	if err != nil {
		return nil, err
	}

	if !coversAll(buffered, a.Needed) {
		return nil, nil
	}

	if err := a.Store.Reset(ctx, key); err != nil {
		return nil, err
	}
	a.releaseWaiters(key, buffered)
	a.Metrics.RecordAggregation(ctx, true, 0)

	if a.OnComplete == nil {
		return nil, nil
	}
	return a.OnComplete(ctx, key, buffered)
}

// coversAll reports whether events contains at least one event whose Type
// matches every entry in needed. Order and duplicates don't matter.
func coversAll(events []Event, needed []string) bool {
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		seen[e.Type()] = true
	}
	for _, t := range needed {
		if !seen[t] {
			return false
		}
	}
	return true
}

// WaitForEvents blocks until the correlation key's buffer covers every
// needed type, or timeout elapses. On timeout it returns the partial
// buffer observed so far alongside an AggregatorTimeoutError, matching the
// reference implementation's best-effort return.
func (a *CorrelationAggregator) WaitForEvents(ctx context.Context, correlationKey string, timeout time.Duration) ([]Event, error) {
	existing, err := a.Store.Get(ctx, correlationKey)
	if err != nil {
		return nil, err
	}
	if coversAll(existing, a.Needed) {
		return existing, nil
	}

	ch := make(chan []Event, 1)
	a.mu.Lock()
	a.waiters[correlationKey] = append(a.waiters[correlationKey], ch)
	a.mu.Unlock()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case events := <-ch:
		return events, nil
	case <-timeoutCh:
		partial, _ := a.Store.Get(ctx, correlationKey)
		a.Metrics.RecordAggregation(ctx, false, 0)
		return partial, &agentcoreerrors.AggregatorTimeoutError{CorrelationKey: correlationKey}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *CorrelationAggregator) releaseWaiters(key string, events []Event) {
	a.mu.Lock()
	chans := a.waiters[key]
	delete(a.waiters, key)
	a.mu.Unlock()

	for _, ch := range chans {
		ch <- events
	}
}
