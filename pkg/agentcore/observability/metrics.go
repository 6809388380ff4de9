package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records runtime metrics for dispatch and LLM activity.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records one event dispatch to a handler, its handling
	// duration, and whether the handler faulted.
	RecordDispatch(ctx context.Context, eventType string, duration time.Duration, err error)

	// RecordAggregation records a correlation key completing (or timing out).
	RecordAggregation(ctx context.Context, success bool, duration time.Duration)

	// RecordLLMCall records a gateway round trip, its duration, and token usage.
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, promptTokens, completionTokens int64, err error)

	// RecordToolCall records a tool invocation.
	RecordToolCall(ctx context.Context, toolName string, duration time.Duration, err error)
}

type otelMetrics struct {
	dispatchCount   metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	dispatchErrors  metric.Int64Counter

	aggregations metric.Int64Counter

	llmCalls       metric.Int64Counter
	llmLatency     metric.Float64Histogram
	llmPromptToks  metric.Int64Counter
	llmCompleteTok metric.Int64Counter

	toolCalls   metric.Int64Counter
	toolLatency metric.Float64Histogram
	toolErrors  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("agentcore")

	dispatchCount, err := meter.Int64Counter("agentcore.dispatch.count",
		metric.WithDescription("Number of events dispatched to handlers"))
	if err != nil {
		return nil, err
	}
	dispatchLatency, err := meter.Float64Histogram("agentcore.dispatch.latency_ms",
		metric.WithDescription("Handler execution latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	dispatchErrors, err := meter.Int64Counter("agentcore.dispatch.errors",
		metric.WithDescription("Number of handler faults"))
	if err != nil {
		return nil, err
	}
	aggregations, err := meter.Int64Counter("agentcore.aggregator.completions",
		metric.WithDescription("Number of correlation aggregations completed or timed out"))
	if err != nil {
		return nil, err
	}
	llmCalls, err := meter.Int64Counter("agentcore.llm.calls",
		metric.WithDescription("Number of LLM gateway calls"))
	if err != nil {
		return nil, err
	}
	llmLatency, err := meter.Float64Histogram("agentcore.llm.latency_ms",
		metric.WithDescription("LLM gateway call latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	llmPromptToks, err := meter.Int64Counter("agentcore.llm.prompt_tokens",
		metric.WithDescription("Prompt tokens consumed"))
	if err != nil {
		return nil, err
	}
	llmCompleteTok, err := meter.Int64Counter("agentcore.llm.completion_tokens",
		metric.WithDescription("Completion tokens produced"))
	if err != nil {
		return nil, err
	}
	toolCalls, err := meter.Int64Counter("agentcore.tool.calls",
		metric.WithDescription("Number of tool invocations"))
	if err != nil {
		return nil, err
	}
	toolLatency, err := meter.Float64Histogram("agentcore.tool.latency_ms",
		metric.WithDescription("Tool invocation latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	toolErrors, err := meter.Int64Counter("agentcore.tool.errors",
		metric.WithDescription("Number of tool faults"))
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatchCount:   dispatchCount,
		dispatchLatency: dispatchLatency,
		dispatchErrors:  dispatchErrors,
		aggregations:    aggregations,
		llmCalls:        llmCalls,
		llmLatency:      llmLatency,
		llmPromptToks:   llmPromptToks,
		llmCompleteTok:  llmCompleteTok,
		toolCalls:       toolCalls,
		toolLatency:     toolLatency,
		toolErrors:      toolErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder. Configure the
// global meter provider before calling this:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder", slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, eventType string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{attribute.String("event_type", eventType)}
	m.dispatchCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.dispatchLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.dispatchErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *otelMetrics) RecordAggregation(ctx context.Context, success bool, duration time.Duration) {
	m.aggregations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func (m *otelMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, promptTokens, completionTokens int64, err error) {
	attrs := []attribute.KeyValue{attribute.String("model", model)}
	m.llmCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.llmLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.llmPromptToks.Add(ctx, promptTokens, metric.WithAttributes(attrs...))
	m.llmCompleteTok.Add(ctx, completionTokens, metric.WithAttributes(attrs...))
}

func (m *otelMetrics) RecordToolCall(ctx context.Context, toolName string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{attribute.String("tool", toolName)}
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.toolErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
