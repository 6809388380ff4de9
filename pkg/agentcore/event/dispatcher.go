package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
	"github.com/agentcore/agentcore/pkg/agentcore/observability"
)

// Dispatcher drains a single FIFO queue of events on one goroutine,
// delivering each to every handler the Router resolves for its type. It is
// the cooperative execution model: handlers never run concurrently with
// each other, and a handler panic or error never stops the loop.
type Dispatcher struct {
	router    *Router
	queue     []Event
	mu        sync.Mutex
	notEmpty  chan struct{}
	stopped   bool

	BatchSize      int
	InterBatchWait time.Duration

	Logger  *slog.Logger
	Tracer  observability.Tracer
	Metrics observability.MetricsRecorder
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.BatchSize = n }
}

// WithInterBatchWait sets the longest time Run waits for a Submit when the
// queue is empty before checking it again. The reference implementation
// polls every second; this is kept
// as the default but made configurable since a hard-coded sleep has no
// place in a library.
func WithInterBatchWait(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) { disp.InterBatchWait = d }
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.Logger = l }
}

func WithDispatcherTracer(t observability.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.Tracer = t }
}

func WithDispatcherMetrics(m observability.MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) { d.Metrics = m }
}

// NewDispatcher creates a cooperative Dispatcher bound to router.
func NewDispatcher(router *Router, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		router:         router,
		notEmpty:       make(chan struct{}, 1),
		BatchSize:      10,
		InterBatchWait: time.Second,
		Logger:         slog.Default(),
		Tracer:         observability.NoopTracer{},
		Metrics:        observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit enqueues an event for delivery. Safe to call from any goroutine,
// including from within a handler (fan-out).
func (d *Dispatcher) Submit(evt Event) {
	d.mu.Lock()
	d.queue = append(d.queue, evt)
	d.mu.Unlock()
	select {
	case d.notEmpty <- struct{}{}:
	default:
	}
}

// Run drains the queue in FIFO batches of at most BatchSize until ctx is
// canceled or a batch containing a TerminateEvent has been drained (the rest
// of that batch is still delivered). When the queue is empty, Run blocks
// until a Submit wakes it or InterBatchWait elapses, whichever comes first,
// rather than busy-looping.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch := d.drainBatch()
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-d.notEmpty:
			case <-time.After(d.InterBatchWait):
			}
			continue
		}

		observability.LogDispatchStart(d.Logger, len(batch))
		terminate := false
		for _, evt := range batch {
			if evt.Type() == TerminateEvent {
				terminate = true
				continue
			}
			d.deliver(ctx, evt)
		}
		if terminate {
			return
		}
	}
}

func (d *Dispatcher) drainBatch() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.BatchSize
	if n <= 0 || n > len(d.queue) {
		n = len(d.queue)
	}
	batch := d.queue[:n]
	d.queue = d.queue[n:]
	return batch
}

func (d *Dispatcher) deliver(ctx context.Context, evt Event) {
	handlers := d.router.Resolve(evt.Type())
	for _, h := range handlers {
		d.Tracer.RecordAgentInteraction(evt.CorrelationKey(), evt.Type(), handlerName(h), map[string]any{
			"event_id": evt.ID(),
		})
		d.invoke(ctx, h, evt)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, evt Event) {
	done := observability.TimedOperation()
	derived, err := d.safeHandle(ctx, h, evt)
	d.Metrics.RecordDispatch(ctx, evt.Type(), time.Duration(done())*time.Millisecond, err)

	if err != nil {
		observability.LogHandlerFault(d.Logger, handlerName(h), evt.Type(), err)
		return
	}
	for _, next := range derived {
		d.Submit(next)
	}
}

// safeHandle recovers from handler panics, converting them into
// HandlerFaultErrors so one misbehaving handler can never bring down the
// dispatch loop.
func (d *Dispatcher) safeHandle(ctx context.Context, h Handler, evt Event) (derived []Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &agentcoreerrors.HandlerFaultError{
				HandlerName: handlerName(h),
				EventType:   evt.Type(),
				Err:         panicToError(r),
			}
		}
	}()
	derived, err = h.Handle(ctx, evt)
	if err != nil {
		err = &agentcoreerrors.HandlerFaultError{HandlerName: handlerName(h), EventType: evt.Type(), Err: err}
	}
	return derived, err
}

// QueueLen reports the number of events currently waiting.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func handlerName(h Handler) string {
	if named, ok := h.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "handler"
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicValue{r}
}

type panicValue struct{ v any }

func (p *panicValue) Error() string {
	return "panic: " + toString(p.v)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if stringer, ok := v.(interface{ String() string }); ok {
		return stringer.String()
	}
	return "non-string panic value"
}
