// Package llm implements the provider-agnostic LLM gateway, the
// capability-bucket parameter adapter, the recursive tool-call broker, and
// the bounded token-budget chat session.
package llm

import "encoding/json"

// Role identifies the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn in a conversation. ToolCallID links a tool-role
// message back to the assistant ToolCall it answers.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDescriptor is the JSON-Schema-based function descriptor sent to a
// gateway so the model knows what tools it may call, matching the
// `{"type":"function","function":{...}}` envelope most chat-completion
// APIs expect.
type ToolDescriptor struct {
	Type     string           `json:"type"`
	Function ToolDescriptorFn `json:"function"`
}

type ToolDescriptorFn struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolResultEnvelope is the standardized shape a tool result is wrapped in
// before being appended as a tool-role Message's content.
type ToolResultEnvelope struct {
	Content []ToolResultContent `json:"content"`
}

// ToolResultContent is one content block within a ToolResultEnvelope.
type ToolResultContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextResult builds a ToolResultEnvelope wrapping a single text block.
func NewTextResult(text string) ToolResultEnvelope {
	return ToolResultEnvelope{Content: []ToolResultContent{{Type: "text", Text: text}}}
}

// Marshal serializes the envelope, falling back to an empty envelope on
// failure (the caller already has the raw error if it needs to surface it).
func (e ToolResultEnvelope) Marshal() string {
	b, err := json.Marshal(e)
	if err != nil {
		return `{"content":[]}`
	}
	return string(b)
}

// TokenUsage tracks prompt/completion token consumption for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
