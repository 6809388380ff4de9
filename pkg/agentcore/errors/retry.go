package errors

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig controls exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

// DefaultRetryConfig returns sensible defaults: 3 attempts, 100ms initial
// delay, 10s cap, 2x multiplier, 20% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// delay computes the backoff delay for the given attempt (1-indexed).
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= c.Multiplier
	}
	if max := float64(c.MaxDelay); d > max {
		d = max
	}
	if c.Jitter > 0 {
		jitter := d * c.Jitter
		d += (rand.Float64()*2 - 1) * jitter
		if d < 0 {
			d = 0
		}
	}
	return time.Duration(d)
}

// WithRetryContext executes fn, retrying on transient errors up to
// MaxAttempts times with exponential backoff. When every attempt fails with
// a transient error, the last one is wrapped in a CategorizedError recording
// the attempt count; a non-transient error is returned as is, and a ctx
// canceled during backoff returns ctx.Err().
func WithRetryContext(ctx context.Context, cfg RetryConfig, context string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.delay(attempt)):
		}
	}

	return &CategorizedError{
		Err:      lastErr,
		Category: Categorize(lastErr),
		Retries:  cfg.MaxAttempts,
		Context:  context,
	}
}

// ExecuteWithValue is the generic counterpart of WithRetryContext for
// functions that return a value alongside an error.
func ExecuteWithValue[T any](ctx context.Context, cfg RetryConfig, context string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := WithRetryContext(ctx, cfg, context, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// SimpleHandler retries a fallible operation under a fixed RetryConfig.
// It is the adaptation target for the teacher's escalation-chain handler:
// that feature depended on a model-selection package absent from this
// module's domain, so only the retry-only behavior survives here.
type SimpleHandler struct {
	Config RetryConfig
}

// NewSimpleHandler constructs a SimpleHandler with the given retry config.
func NewSimpleHandler(cfg RetryConfig) *SimpleHandler {
	return &SimpleHandler{Config: cfg}
}

// Execute runs fn under the handler's retry policy.
func (h *SimpleHandler) Execute(ctx context.Context, context string, fn func(ctx context.Context) error) error {
	return WithRetryContext(ctx, h.Config, context, fn)
}
