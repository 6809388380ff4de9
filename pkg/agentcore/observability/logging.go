// Package observability provides structured logging, metrics, and tracing
// for the event dispatcher and LLM broker.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//   - An in-memory, queryable Tracer for agent-interaction auditing
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds dispatch context to a logger, returning a new logger
// with correlation_key and event_type fields attached.
func EnrichLogger(logger *slog.Logger, correlationKey, eventType string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("correlation_key", correlationKey),
		slog.String("event_type", eventType),
	)
}

// LogDispatchStart logs the start of a dispatch batch.
func LogDispatchStart(logger *slog.Logger, batchSize int) {
	if logger == nil {
		return
	}
	logger.Debug("dispatch batch starting", slog.Int("batch_size", batchSize))
}

// LogHandlerFault logs a handler that returned an error or panicked.
// Handler faults are absorbed by the dispatcher, never propagated to the
// caller, so this is the only record of the failure.
func LogHandlerFault(logger *slog.Logger, handlerName, eventType string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler faulted",
		slog.String("handler", handlerName),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// LogAggregatorTimeout logs a correlation waiter that expired before its
// needed event-type set was covered.
func LogAggregatorTimeout(logger *slog.Logger, correlationKey string, missing []string) {
	if logger == nil {
		return
	}
	logger.Warn("aggregator wait timed out",
		slog.String("correlation_key", correlationKey),
		slog.Any("missing_event_types", missing),
	)
}

// LogLLMCall logs the start of an LLM gateway call.
func LogLLMCall(logger *slog.Logger, model string, messageCount, toolCount int) {
	if logger == nil {
		return
	}
	logger.Debug("llm call starting",
		slog.String("model", model),
		slog.Int("message_count", messageCount),
		slog.Int("tool_count", toolCount),
	)
}

// LogLLMResponse logs a completed LLM gateway call.
func LogLLMResponse(logger *slog.Logger, model string, durationMs float64, toolCallCount int, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("llm call failed",
			slog.String("model", model),
			slog.Float64("duration_ms", durationMs),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("llm call completed",
		slog.String("model", model),
		slog.Float64("duration_ms", durationMs),
		slog.Int("tool_calls", toolCallCount),
	)
}

// LogParameterIncompatibility logs a parameter the capability adapter had
// to rewrite or drop for the target model's bucket.
func LogParameterIncompatibility(logger *slog.Logger, model, parameter, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("parameter incompatible with model bucket",
		slog.String("model", model),
		slog.String("parameter", parameter),
		slog.String("reason", reason),
	)
}

// LogToolCall logs a tool invocation.
func LogToolCall(logger *slog.Logger, toolName string, depth int) {
	if logger == nil {
		return
	}
	logger.Debug("tool call",
		slog.String("tool", toolName),
		slog.Int("depth", depth),
	)
}

// LogToolFault logs a tool invocation error.
func LogToolFault(logger *slog.Logger, toolName string, err error) {
	if logger == nil {
		return
	}
	logger.Error("tool faulted",
		slog.String("tool", toolName),
		slog.String("error", err.Error()),
	)
}

// LogLoopExceeded logs the tool-call loop hitting its max depth.
func LogLoopExceeded(logger *slog.Logger, maxDepth int) {
	if logger == nil {
		return
	}
	logger.Error("tool-call loop exceeded max depth", slog.Int("max_depth", maxDepth))
}

// LogSessionEviction logs a chat session evicting a message to stay within
// its token budget.
func LogSessionEviction(logger *slog.Logger, evictedTokens, totalTokensAfter, maxContext int) {
	if logger == nil {
		return
	}
	logger.Debug("chat session evicted message",
		slog.Int("evicted_tokens", evictedTokens),
		slog.Int("total_tokens_after", totalTokensAfter),
		slog.Int("max_context", maxContext),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds.
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
