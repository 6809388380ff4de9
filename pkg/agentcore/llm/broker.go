package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
	"github.com/agentcore/agentcore/pkg/agentcore/observability"
)

// Broker drives the recursive tool-call loop: submit a request, detect
// tool_calls in the response, invoke the matching registered tools, append
// the assistant and tool messages, and recurse until the model returns
// terminal text (or a structured object) or the loop exceeds MaxDepth.
type Broker struct {
	Gateway      Gateway
	Capabilities *CapabilityRegistry
	Tools        *ToolRegistry
	Model        string
	MaxDepth     int

	Logger  *slog.Logger
	Tracer  observability.Tracer
	Metrics observability.MetricsRecorder
	Spans   observability.SpanManager

	// ArgumentExpander, when set, rewrites tool arguments before Invoke,
	// e.g. expanding "${VAR}"/"$VAR" references against a caller-provided
	// variable set. Optional — most deployments leave this nil.
	ArgumentExpander func(args map[string]any) map[string]any
}

// BrokerOption configures a Broker at construction time.
type BrokerOption func(*Broker)

// WithArgumentExpansion installs expand as the Broker's ArgumentExpander,
// run on tool arguments before each tool invocation (template.
// WithArgumentExpansion builds one that expands "${VAR}"/"$VAR" in
// string-valued arguments against a variable map). Without this option,
// arguments reach tools byte-for-byte as the model supplied them.
func WithArgumentExpansion(expand func(args map[string]any) map[string]any) BrokerOption {
	return func(b *Broker) {
		b.ArgumentExpander = expand
	}
}

// NewBroker creates a Broker against gateway, using model by default and
// capping the tool-call loop at maxDepth recursive calls.
func NewBroker(gateway Gateway, capabilities *CapabilityRegistry, tools *ToolRegistry, model string, maxDepth int, opts ...BrokerOption) *Broker {
	if capabilities == nil {
		capabilities = NewCapabilityRegistry()
	}
	if tools == nil {
		tools = NewToolRegistry()
	}
	b := &Broker{
		Gateway:      gateway,
		Capabilities: capabilities,
		Tools:        tools,
		Model:        model,
		MaxDepth:     maxDepth,
		Logger:       slog.Default(),
		Tracer:       observability.NoopTracer{},
		Metrics:      observability.NoopMetrics{},
		Spans:        observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Generate runs the tool-call loop starting from messages and returns the
// model's final text content. The correlationID scopes tracer events (chat
// session ID, dispatch correlation key, or any caller-chosen identifier).
func (b *Broker) Generate(ctx context.Context, correlationID string, messages []Message, toolDescriptors []ToolDescriptor) (string, []Message, error) {
	resp, finalMessages, err := b.loop(ctx, correlationID, messages, toolDescriptors, nil, 0)
	if err != nil {
		return "", finalMessages, err
	}
	return resp.Content, finalMessages, nil
}

// GenerateObject runs the tool-call loop and parses the final response as
// structured output conforming to schema.
func (b *Broker) GenerateObject(ctx context.Context, correlationID string, messages []Message, toolDescriptors []ToolDescriptor, schema json.RawMessage) (json.RawMessage, []Message, error) {
	resp, finalMessages, err := b.loop(ctx, correlationID, messages, toolDescriptors, schema, 0)
	if err != nil {
		return nil, finalMessages, err
	}
	if len(resp.Object) == 0 {
		return nil, finalMessages, &agentcoreerrors.SchemaParseFailureError{RawText: resp.Content}
	}
	return resp.Object, finalMessages, nil
}

// executedStep records one successfully-invoked Compensatable tool call,
// kept so loop() can roll them back in reverse order if a later step fails.
type executedStep struct {
	tool   Compensatable
	args   map[string]any
	result any
}

func (b *Broker) loop(ctx context.Context, correlationID string, messages []Message, toolDescriptors []ToolDescriptor, schema json.RawMessage, depth int) (*CompletionResponse, []Message, error) {
	var executed []executedStep

	for {
		if depth > b.MaxDepth {
			observability.LogLoopExceeded(b.Logger, b.MaxDepth)
			b.compensate(ctx, executed)
			return nil, messages, &agentcoreerrors.LoopExceededError{MaxDepth: b.MaxDepth}
		}

		req := CompletionRequest{
			Model:        b.Model,
			Messages:     messages,
			Tools:        toolDescriptors,
			ObjectSchema: schema,
		}
		req = b.Capabilities.Adapt(b.Model, req)

		b.Tracer.RecordLLMCall(correlationID, "broker", b.Model, messagesToAny(messages))
		observability.LogLLMCall(b.Logger, b.Model, len(messages), len(toolDescriptors))

		spanCtx, span := b.Spans.StartLLMSpan(ctx, b.Model, depth)
		done := observability.TimedOperation()
		resp, err := b.Gateway.Complete(spanCtx, req)
		duration := done()
		b.Spans.EndSpanWithError(span, err)

		observability.LogLLMResponse(b.Logger, b.Model, duration, 0, err)

		if err != nil {
			b.Metrics.RecordLLMCall(ctx, b.Model, time.Duration(duration)*time.Millisecond, 0, 0, err)
			b.compensate(ctx, executed)
			return nil, messages, &agentcoreerrors.GatewayError{Provider: b.Gateway.Name(), Model: b.Model, Err: err, Retryable: agentcoreerrors.IsRetryable(err)}
		}

		b.Metrics.RecordLLMCall(ctx, b.Model, time.Duration(duration)*time.Millisecond,
			int64(resp.usagePrompt()), int64(resp.usageCompletion()), err)
		b.Tracer.RecordLLMResponse(correlationID, "broker", b.Model, resp)

		if !resp.HasToolCalls() {
			return resp, messages, nil
		}

		messages = append(messages, Message{Role: RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})

		for _, call := range resp.ToolCalls {
			result, step := b.handleToolCall(ctx, correlationID, depth, call)
			if step != nil {
				executed = append(executed, *step)
			}
			messages = append(messages, Message{
				Role:       RoleTool,
				Content:    result,
				Name:       call.Name,
				ToolCallID: call.ID,
			})
		}

		depth++
	}
}

// handleToolCall invokes one requested tool. Tool-level faults are never
// fatal to the loop: an unknown tool, a schema-validation failure, or an
// error raised by Invoke are each captured as an error-text tool result so
// the model sees what went wrong and can self-correct, matching the
// reference broker's "log and carry on" policy rather than raising.
func (b *Broker) handleToolCall(ctx context.Context, correlationID string, depth int, call ToolCall) (string, *executedStep) {
	tool, ok := b.Tools.Get(call.Name)
	if !ok {
		notFound := &agentcoreerrors.ToolNotFoundError{ToolName: call.Name}
		observability.LogToolFault(b.Logger, call.Name, notFound)
		return NewTextResult("error: " + notFound.Error()).Marshal(), nil
	}

	args, err := ValidateArguments(tool, call.Arguments)
	if err != nil {
		observability.LogToolFault(b.Logger, call.Name, err)
		return NewTextResult("error: " + err.Error()).Marshal(), nil
	}
	if b.ArgumentExpander != nil {
		args = b.ArgumentExpander(args)
	}

	observability.LogToolCall(b.Logger, call.Name, depth)
	done := observability.TimedOperation()
	result, err := tool.Invoke(ctx, args)
	duration := done()
	b.Metrics.RecordToolCall(ctx, call.Name, time.Duration(duration)*time.Millisecond, err)

	if err != nil {
		fault := &agentcoreerrors.ToolFaultError{ToolName: call.Name, Err: err}
		observability.LogToolFault(b.Logger, call.Name, fault)
		return NewTextResult("error: " + fault.Error()).Marshal(), nil
	}

	b.Tracer.RecordToolCall(correlationID, "broker", call.Name, args, result)

	var step *executedStep
	if compensatable, ok := tool.(Compensatable); ok {
		step = &executedStep{tool: compensatable, args: args, result: result}
	}

	if text, ok := result.(string); ok {
		return NewTextResult(text).Marshal(), step
	}
	b2, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return NewTextResult("").Marshal(), step
	}
	return NewTextResult(string(b2)).Marshal(), step
}

// compensate rolls back every executed Compensatable step in reverse
// order, best-effort: a compensation failure is logged, not propagated,
// since the loop is already unwinding on a harder error.
func (b *Broker) compensate(ctx context.Context, executed []executedStep) {
	for i := len(executed) - 1; i >= 0; i-- {
		step := executed[i]
		if err := step.tool.Compensate(ctx, step.args, step.result); err != nil {
			observability.LogToolFault(b.Logger, step.tool.Name(), err)
		}
	}
}

func messagesToAny(messages []Message) []any {
	out := make([]any, len(messages))
	for i, m := range messages {
		out[i] = m
	}
	return out
}

func (r *CompletionResponse) usagePrompt() int     { return r.Usage.PromptTokens }
func (r *CompletionResponse) usageCompletion() int { return r.Usage.CompletionTokens }
