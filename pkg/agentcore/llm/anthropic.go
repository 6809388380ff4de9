package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
)

// MessagesClient captures the subset of the Anthropic SDK used by
// AnthropicGateway, so tests can substitute a fake without touching the
// network.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicGateway implements Gateway against the Anthropic Messages API.
type AnthropicGateway struct {
	msg          MessagesClient
	defaultModel string
}

// NewAnthropicGateway builds a gateway from an already-constructed Anthropic
// client's Messages service.
func NewAnthropicGateway(msg MessagesClient, defaultModel string) *AnthropicGateway {
	return &AnthropicGateway{msg: msg, defaultModel: defaultModel}
}

// NewAnthropicGatewayFromAPIKey constructs a gateway using the default
// Anthropic HTTP client configured with apiKey.
func NewAnthropicGatewayFromAPIKey(apiKey, defaultModel string) *AnthropicGateway {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicGateway(&client.Messages, defaultModel)
}

func (g *AnthropicGateway) Name() string { return "anthropic" }

func (g *AnthropicGateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	params, err := g.buildParams(model, req)
	if err != nil {
		return nil, &agentcoreerrors.GatewayError{Provider: g.Name(), Model: model, Err: err, Retryable: false}
	}

	msg, err := g.msg.New(ctx, *params)
	if err != nil {
		return nil, &agentcoreerrors.GatewayError{Provider: g.Name(), Model: model, Err: err, Retryable: isAnthropicRetryable(err)}
	}
	return translateAnthropicResponse(msg, model), nil
}

func (g *AnthropicGateway) buildParams(model string, req CompletionRequest) (*sdk.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var system []sdk.TextBlockParam
	var conversation []sdk.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}
		case RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case RoleAssistant:
			blocks := []sdk.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, call := range m.ToolCalls {
				var input map[string]any
				_ = json.Unmarshal(call.Arguments, &input)
				blocks = append(blocks, sdk.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) > 0 {
				conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	if len(conversation) == 0 {
		return nil, errors.New("at least one user/assistant message is required")
	}

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  conversation,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools := make([]sdk.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			schema, err := toolInputSchema(t.Function.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", t.Function.Name, err)
			}
			u := sdk.ToolUnionParamOfTool(schema, t.Function.Name)
			if u.OfTool != nil {
				u.OfTool.Description = sdk.String(t.Function.Description)
			}
			tools = append(tools, u)
		}
		params.Tools = tools
	}
	return params, nil
}

func toolInputSchema(raw json.RawMessage) (sdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateAnthropicResponse(msg *sdk.Message, model string) *CompletionResponse {
	resp := &CompletionResponse{Model: model, FinishReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	resp.Usage = TokenUsage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return resp
}

func isAnthropicRetryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 529:
			return true
		}
	}
	return false
}
