package event

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agentcore/agentcore/pkg/agentcore/observability"
)

// ConcurrentDispatcher is the async counterpart of Dispatcher: the same
// single worker loop draining one MPSC queue, except the worker may await
// asynchronous handlers and gateway calls instead of running everything
// synchronously. Handlers implementing AsyncHandler are awaited directly
// via HandleAsync; all others run Handle in place. This is a type-assertion
// in place of the reference implementation's
// hasattr(agent, 'receive_event_async') duck-typing check. Multiple
// producers may Submit concurrently, but events are drained and delivered
// one at a time, and handlers for a single event run strictly in the
// router's registration order — concurrency here buys asynchronous I/O,
// not parallel event or handler execution.
type ConcurrentDispatcher struct {
	router   *Router
	queue    chan Event
	inFlight atomic.Int64

	Logger  *slog.Logger
	Tracer  observability.Tracer
	Metrics observability.MetricsRecorder

	// Signals, when set, lets DispatchSignal record delivery outcomes so
	// an external caller can poll status instead of blocking on the
	// wrapping event's handlers.
	Signals SignalStore
}

// ConcurrentDispatcherOption configures a ConcurrentDispatcher.
type ConcurrentDispatcherOption func(*ConcurrentDispatcher)

func WithConcurrentQueueSize(n int) ConcurrentDispatcherOption {
	return func(d *ConcurrentDispatcher) { d.queue = make(chan Event, n) }
}

func WithConcurrentLogger(l *slog.Logger) ConcurrentDispatcherOption {
	return func(d *ConcurrentDispatcher) { d.Logger = l }
}

func WithConcurrentTracer(t observability.Tracer) ConcurrentDispatcherOption {
	return func(d *ConcurrentDispatcher) { d.Tracer = t }
}

func WithConcurrentMetrics(m observability.MetricsRecorder) ConcurrentDispatcherOption {
	return func(d *ConcurrentDispatcher) { d.Metrics = m }
}

// WithSignalStore enables DispatchSignal's status tracking.
func WithSignalStore(store SignalStore) ConcurrentDispatcherOption {
	return func(d *ConcurrentDispatcher) { d.Signals = store }
}

// NewConcurrentDispatcher creates a ConcurrentDispatcher bound to router.
func NewConcurrentDispatcher(router *Router, opts ...ConcurrentDispatcherOption) *ConcurrentDispatcher {
	d := &ConcurrentDispatcher{
		router:  router,
		queue:   make(chan Event, 256),
		Logger:  slog.Default(),
		Tracer:  observability.NoopTracer{},
		Metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit enqueues an event, blocking if the queue is full.
func (d *ConcurrentDispatcher) Submit(evt Event) {
	d.inFlight.Add(1)
	d.queue <- evt
}

// DispatchSignal wraps sig in a "signal.received" Event (correlation key =
// sig.TargetCorrelationKey) and submits it through the ordinary dispatch
// path. It is pure sugar over Submit: no new delivery semantics, just a
// signal.received event whose handlers a caller registers like any other.
// If a SignalStore is configured (WithSignalStore), sig's status moves to
// Processed or Failed once every handler for that event returns, letting
// an external caller poll the store instead of blocking here.
func (d *ConcurrentDispatcher) DispatchSignal(ctx context.Context, sig *Signal) error {
	if d.Signals != nil {
		if err := d.Signals.Save(ctx, sig); err != nil {
			return err
		}
	}
	evt := New(SignalEventType, "signal", SignalPayload{SignalID: sig.ID, Payload: sig.Payload},
		WithCorrelationKey(sig.TargetCorrelationKey))
	d.Submit(evt)
	return nil
}

// Run drains the queue on a single consumer goroutine until ctx is
// canceled or a TerminateEvent arrives. Multiple producers may Submit
// concurrently (the queue is MPSC), but events are delivered one at a
// time — the concurrency this type adds over Dispatcher is the ability
// to await asynchronous handlers and gateway calls, not parallel event
// processing.
func (d *ConcurrentDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-d.queue:
			if !ok {
				return
			}
			if evt.Type() == TerminateEvent {
				d.markDone()
				return
			}
			d.deliver(ctx, evt)
			d.markDone()
		}
	}
}

func (d *ConcurrentDispatcher) markDone() {
	d.inFlight.Add(-1)
}

// deliver invokes every handler resolved for evt strictly in registration
// order, awaiting each before moving to the next.
func (d *ConcurrentDispatcher) deliver(ctx context.Context, evt Event) {
	handlers := d.router.Resolve(evt.Type())
	var faulted bool
	for _, h := range handlers {
		d.Tracer.RecordAgentInteraction(evt.CorrelationKey(), evt.Type(), handlerName(h), map[string]any{
			"event_id": evt.ID(),
		})
		if err := d.invoke(ctx, h, evt); err != nil {
			faulted = true
		}
	}

	if evt.Type() == SignalEventType {
		d.resolveSignal(ctx, evt, faulted)
	}
}

// resolveSignal marks the signal a "signal.received" event wrapped as
// Processed or Failed once every handler for that event has finished.
// This is the "small internal hook" DispatchSignal relies on instead of
// holding a caller connection open across dispatch.
func (d *ConcurrentDispatcher) resolveSignal(ctx context.Context, evt Event, faulted bool) {
	if d.Signals == nil {
		return
	}
	payload, ok := evt.Data().(SignalPayload)
	if !ok {
		return
	}
	if faulted {
		_ = d.Signals.MarkFailed(ctx, payload.SignalID, errHandlerFault)
		return
	}
	_ = d.Signals.MarkProcessed(ctx, payload.SignalID)
}

var errHandlerFault = errors.New("one or more handlers faulted on the wrapping event")

func (d *ConcurrentDispatcher) invoke(ctx context.Context, h Handler, evt Event) error {
	done := observability.TimedOperation()
	var derived []Event
	var err error

	if async, ok := h.(AsyncHandler); ok {
		derived, err = d.safeHandleAsync(ctx, async, evt)
	} else {
		derived, err = d.safeHandle(ctx, h, evt)
	}

	d.Metrics.RecordDispatch(ctx, evt.Type(), time.Duration(done())*time.Millisecond, err)
	if err != nil {
		observability.LogHandlerFault(d.Logger, handlerName(h), evt.Type(), err)
		return err
	}
	for _, next := range derived {
		d.Submit(next)
	}
	return nil
}

func (d *ConcurrentDispatcher) safeHandle(ctx context.Context, h Handler, evt Event) (derived []Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &handlerPanic{name: handlerName(h), eventType: evt.Type(), recovered: r}
		}
	}()
	return h.Handle(ctx, evt)
}

func (d *ConcurrentDispatcher) safeHandleAsync(ctx context.Context, h AsyncHandler, evt Event) (derived []Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &handlerPanic{name: handlerName(h), eventType: evt.Type(), recovered: r}
		}
	}()
	return h.HandleAsync(ctx, evt)
}

// WaitForEmpty blocks until the queue and all in-flight handlers have
// drained, or timeout elapses. Mirrors the reference implementation's
// wait_for_empty_queue(timeout), used by tests and callers that need a
// synchronization point after a burst of Submit calls.
func (d *ConcurrentDispatcher) WaitForEmpty(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	const pollInterval = time.Millisecond
	for d.inFlight.Load() != 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
	return true
}

type handlerPanic struct {
	name      string
	eventType string
	recovered any
}

func (p *handlerPanic) Error() string {
	return "handler " + p.name + " panicked on event " + p.eventType
}
