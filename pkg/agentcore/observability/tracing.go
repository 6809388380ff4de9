package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("agentcore")

// SpanManager handles OTel trace span lifecycle for dispatch and broker
// activity. Use NewSpanManager() for OTel tracing or NoopSpanManager{} when
// disabled.
type SpanManager interface {
	// StartDispatchSpan starts a span for one dispatch batch.
	StartDispatchSpan(ctx context.Context, dispatcherName string) (context.Context, trace.Span)

	// StartLLMSpan starts a span for a single gateway call within the
	// tool-call loop.
	StartLLMSpan(ctx context.Context, model string, depth int) (context.Context, trace.Span)

	// StartToolSpan starts a span for a tool invocation.
	StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager backed by OpenTelemetry. Configure
// the global tracer provider before calling this:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartDispatchSpan(ctx context.Context, dispatcherName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "agentcore.dispatch",
		trace.WithAttributes(attribute.String("dispatcher.name", dispatcherName)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartLLMSpan(ctx context.Context, model string, depth int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "agentcore.llm.generate",
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.Int("llm.loop_depth", depth),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (m *otelSpanManager) StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "agentcore.tool."+toolName,
		trace.WithAttributes(attribute.String("tool.name", toolName)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// EndSpanWithError completes a span, optionally recording an error. Exposed
// as a free function for callers that hold a bare trace.Span.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
