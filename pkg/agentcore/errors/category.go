// Package errors provides the error taxonomy and retry machinery shared
// by the dispatcher, broker, and gateway adapters.
//
// The package implements a layered error handling approach:
//   - Categorization: classify errors for appropriate handling
//   - Retry: handle transient failures with exponential backoff
package errors

import (
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: rate limits, timeouts, temporary network issues.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: authentication failures, invalid configuration.
	CategoryPermanent

	// CategoryEscalatable indicates a different model or adapter might succeed.
	// Examples: schema parse failures, tool-not-found.
	CategoryEscalatable

	// CategoryHumanRequired indicates human intervention is needed.
	CategoryHumanRequired
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryEscalatable:
		return "escalatable"
	case CategoryHumanRequired:
		return "human_required"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	Err      error
	Category Category
	Retries  int
	Context  string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)", e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: category, Context: context}
}

// RoutingMissError: no handlers registered for an event type. Not raised as
// an error in practice (the router returns an empty slice), but kept so
// callers that want to log at debug level have a typed marker to match on.
type RoutingMissError struct {
	EventType string
}

func (e *RoutingMissError) Error() string {
	return fmt.Sprintf("routing miss: no handlers for event type %q", e.EventType)
}

// HandlerFaultError wraps a panic or returned error from a handler.
type HandlerFaultError struct {
	HandlerName string
	EventType   string
	Err         error
}

func (e *HandlerFaultError) Error() string {
	return fmt.Sprintf("handler %s faulted on event %q: %s", e.HandlerName, e.EventType, e.Err)
}

func (e *HandlerFaultError) Unwrap() error { return e.Err }

// GatewayError indicates the LLM gateway's underlying transport call failed.
type GatewayError struct {
	Provider  string
	Model     string
	Err       error
	Retryable bool
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s/%s: %s", e.Provider, e.Model, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ParameterIncompatibilityError records a request parameter the adapter had
// to rewrite or drop because the target model's capability bucket rejects it.
type ParameterIncompatibilityError struct {
	Model     string
	Parameter string
	Reason    string
}

func (e *ParameterIncompatibilityError) Error() string {
	return fmt.Sprintf("model %s does not support parameter %q: %s", e.Model, e.Parameter, e.Reason)
}

// ToolNotFoundError indicates the model requested a tool the registry does
// not have. This is not fatal: the broker appends an error Tool message and
// continues the loop.
type ToolNotFoundError struct {
	ToolName string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.ToolName)
}

// ToolFaultError wraps an error raised by a tool's Invoke.
type ToolFaultError struct {
	ToolName string
	Err      error
}

func (e *ToolFaultError) Error() string {
	return fmt.Sprintf("tool %s faulted: %s", e.ToolName, e.Err)
}

func (e *ToolFaultError) Unwrap() error { return e.Err }

// SchemaParseFailureError indicates structured-output parsing failed.
// The raw text remains accessible via RawText.
type SchemaParseFailureError struct {
	RawText string
	Err     error
}

func (e *SchemaParseFailureError) Error() string {
	return fmt.Sprintf("schema parse failure: %s", e.Err)
}

func (e *SchemaParseFailureError) Unwrap() error { return e.Err }

// LoopExceededError indicates the tool-call loop exceeded its configured
// maximum recursion depth.
type LoopExceededError struct {
	MaxDepth int
}

func (e *LoopExceededError) Error() string {
	return fmt.Sprintf("tool-call loop exceeded max depth %d", e.MaxDepth)
}

// AggregatorTimeoutError indicates a waiter's deadline expired before the
// needed event-type set was covered.
type AggregatorTimeoutError struct {
	CorrelationKey string
}

func (e *AggregatorTimeoutError) Error() string {
	return fmt.Sprintf("aggregator timeout waiting for correlation key %s", e.CorrelationKey)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var humanErr *AggregatorTimeoutError
	if errors.As(err, &humanErr) {
		return CategoryPermanent
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		if gwErr.Retryable {
			return CategoryTransient
		}
		return CategoryPermanent
	}

	var schemaErr *SchemaParseFailureError
	if errors.As(err, &schemaErr) {
		return CategoryEscalatable
	}

	var toolNotFound *ToolNotFoundError
	if errors.As(err, &toolNotFound) {
		return CategoryEscalatable
	}

	var toolFault *ToolFaultError
	if errors.As(err, &toolFault) {
		return CategoryPermanent
	}

	var loopErr *LoopExceededError
	if errors.As(err, &loopErr) {
		return CategoryPermanent
	}

	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
