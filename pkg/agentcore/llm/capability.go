package llm

import (
	"log/slog"

	"github.com/agentcore/agentcore/pkg/agentcore/observability"
	"github.com/agentcore/agentcore/pkg/agentcore/registry"
)

// Bucket groups models sharing the same parameter-support profile, so the
// adapter layer can classify a model once at registry time rather than
// special-casing every model name at call time.
type Bucket struct {
	Name string

	// SupportsTemperature, SupportsMaxTokens, SupportsTools,
	// SupportsStructuredOutput gate whether the corresponding
	// CompletionRequest field is forwarded as-is, or rewritten/dropped.
	SupportsTemperature      bool
	SupportsMaxTokens        bool
	SupportsTools            bool
	SupportsStructuredOutput bool

	// AllowedOptions restricts which Options keys this bucket accepts.
	// A nil map means no restriction beyond the flags above.
	AllowedOptions map[string]bool
}

// Well-known buckets. Concrete gateways register their models against one
// of these (or a custom Bucket) at construction time.
var (
	BucketStandardChat = Bucket{
		Name:                     "standard-chat",
		SupportsTemperature:      true,
		SupportsMaxTokens:        true,
		SupportsTools:            true,
		SupportsStructuredOutput: true,
	}
	BucketReasoning = Bucket{
		Name:                     "reasoning",
		SupportsTemperature:      false,
		SupportsMaxTokens:        true,
		SupportsTools:            true,
		SupportsStructuredOutput: true,
	}
	BucketLegacyCompletion = Bucket{
		Name:                     "legacy-completion",
		SupportsTemperature:      true,
		SupportsMaxTokens:        true,
		SupportsTools:            false,
		SupportsStructuredOutput: false,
	}
)

// CapabilityRegistry classifies models into Buckets and adapts requests to
// match their target model's bucket before the gateway sends them.
type CapabilityRegistry struct {
	buckets *registry.Registry[string, Bucket]
	Logger  *slog.Logger
}

// NewCapabilityRegistry creates a registry with no models classified.
// Unclassified models default to BucketStandardChat.
func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{
		buckets: registry.New[string, Bucket](),
		Logger:  slog.Default(),
	}
}

// Classify associates a model name with a bucket.
func (c *CapabilityRegistry) Classify(model string, bucket Bucket) {
	c.buckets.Register(model, bucket)
}

// BucketFor returns the bucket a model was classified into, defaulting to
// BucketStandardChat for unknown models.
func (c *CapabilityRegistry) BucketFor(model string) Bucket {
	if b, ok := c.buckets.Get(model); ok {
		return b
	}
	return BucketStandardChat
}

// Adapt returns a copy of req adapted to model's bucket, dropping or
// zeroing incompatible fields and logging a ParameterIncompatibility
// warning for each one it touches. The returned request is safe to send
// to any gateway implementation for that model.
func (c *CapabilityRegistry) Adapt(model string, req CompletionRequest) CompletionRequest {
	bucket := c.BucketFor(model)

	if !bucket.SupportsTemperature && req.Temperature != 0 {
		observability.LogParameterIncompatibility(c.Logger, model, "temperature", "bucket "+bucket.Name+" does not support sampling temperature")
		req.Temperature = 0
	}
	if !bucket.SupportsMaxTokens && req.MaxTokens != 0 {
		observability.LogParameterIncompatibility(c.Logger, model, "max_tokens", "bucket "+bucket.Name+" does not support a max token cap")
		req.MaxTokens = 0
	}
	if !bucket.SupportsTools && len(req.Tools) > 0 {
		observability.LogParameterIncompatibility(c.Logger, model, "tools", "bucket "+bucket.Name+" does not support tool calling")
		req.Tools = nil
	}
	if !bucket.SupportsStructuredOutput && len(req.ObjectSchema) > 0 {
		observability.LogParameterIncompatibility(c.Logger, model, "object_schema", "bucket "+bucket.Name+" does not support structured output")
		req.ObjectSchema = nil
	}

	if bucket.AllowedOptions != nil && len(req.Options) > 0 {
		filtered := make(map[string]any, len(req.Options))
		for k, v := range req.Options {
			if bucket.AllowedOptions[k] {
				filtered[k] = v
				continue
			}
			observability.LogParameterIncompatibility(c.Logger, model, k, "bucket "+bucket.Name+" does not allow this option")
		}
		req.Options = filtered
	}

	return req
}
