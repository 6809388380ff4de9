package llm

import (
	"context"
	"encoding/json"
	"time"
)

// CompletionRequest configures one gateway call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDescriptor
	MaxTokens   int
	Temperature float64

	// ObjectSchema, when set, asks the gateway for structured output
	// conforming to this JSON Schema instead of free-form text.
	ObjectSchema json.RawMessage

	// Options carries provider-specific extras. The capability adapter
	// rewrites or drops entries here that the target model's bucket
	// doesn't support, logging a ParameterIncompatibility warning for each.
	Options map[string]any
}

// CompletionResponse is one gateway call's result.
type CompletionResponse struct {
	Content      string
	Object       json.RawMessage
	ToolCalls    []ToolCall
	Usage        TokenUsage
	Model        string
	FinishReason string
	Duration     time.Duration
}

// HasToolCalls reports whether the model asked to invoke any tools.
func (r *CompletionResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Gateway is the provider-agnostic contract every LLM backend adapter
// implements: Claude CLI, the Anthropic API, OpenAI, Gemini, or a Mock for
// tests. The broker and chat session depend only on this interface, never
// on a concrete provider SDK.
type Gateway interface {
	// Complete performs one completion call.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the gateway for logging and capability-bucket lookup
	// (e.g. "anthropic", "openai", "gemini", "claude-cli").
	Name() string
}
