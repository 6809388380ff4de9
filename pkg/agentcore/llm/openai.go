package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
)

// OpenAIGateway implements Gateway against the OpenAI chat completions API.
type OpenAIGateway struct {
	client       openai.Client
	defaultModel string
}

type OpenAIOption func(*OpenAIGateway)

func WithOpenAIHTTPOptions(opts ...option.RequestOption) OpenAIOption {
	return func(g *OpenAIGateway) {
		g.client = openai.NewClient(opts...)
	}
}

// NewOpenAIGateway creates a gateway using apiKey, defaulting to
// defaultModel when a CompletionRequest leaves Model empty.
func NewOpenAIGateway(apiKey, defaultModel string, opts ...OpenAIOption) *OpenAIGateway {
	g := &OpenAIGateway{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultModel,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *OpenAIGateway) Name() string { return "openai" }

func (g *OpenAIGateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: g.encodeMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := g.encodeTools(req.Tools)
		if err != nil {
			return nil, &agentcoreerrors.GatewayError{Provider: g.Name(), Model: model, Err: err, Retryable: false}
		}
		params.Tools = tools
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &agentcoreerrors.GatewayError{Provider: g.Name(), Model: model, Err: err, Retryable: isOpenAIRetryable(err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &agentcoreerrors.GatewayError{Provider: g.Name(), Model: model, Err: errors.New("no choices returned"), Retryable: false}
	}

	return translateOpenAIResponse(resp, model), nil
}

func (g *OpenAIGateway) encodeMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, call := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(m.Content)},
					ToolCalls: calls,
				},
			})
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func (g *OpenAIGateway) encodeTools(descriptors []ToolDescriptor) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, 0, len(descriptors))
	for _, d := range descriptors {
		var params map[string]any
		if len(d.Function.Parameters) > 0 {
			if err := json.Unmarshal(d.Function.Parameters, &params); err != nil {
				return nil, fmt.Errorf("tool %s: %w", d.Function.Name, err)
			}
		}
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        d.Function.Name,
				Description: openai.String(d.Function.Description),
				Parameters:  shared.FunctionParameters(params),
			},
		})
	}
	return out, nil
}

func translateOpenAIResponse(resp *openai.ChatCompletion, model string) *CompletionResponse {
	choice := resp.Choices[0]
	out := &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        model,
		FinishReason: string(choice.FinishReason),
		Usage: TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}
	return out
}

func isOpenAIRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503:
			return true
		}
	}
	return false
}
