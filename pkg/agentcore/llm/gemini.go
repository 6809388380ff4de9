package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
)

// GeminiGateway implements Gateway against the Google Gemini API via
// google.golang.org/genai.
type GeminiGateway struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiGateway builds a gateway using the Gemini API key backend.
func NewGeminiGateway(ctx context.Context, apiKey, defaultModel string) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGateway{client: client, defaultModel: defaultModel}, nil
}

// NewGeminiVertexGateway builds a gateway against a Vertex AI-backed model.
func NewGeminiVertexGateway(ctx context.Context, project, location, defaultModel string) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  project,
		Location: location,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini vertex client: %w", err)
	}
	return &GeminiGateway{client: client, defaultModel: defaultModel}, nil
}

func (g *GeminiGateway) Name() string { return "gemini" }

func (g *GeminiGateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	var systemInstruction *genai.Content
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			systemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(m.Content)}}
		case RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(m.Content)}})
		case RoleAssistant:
			parts := []*genai.Part{}
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, call := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(call.Arguments, &args)
				parts = append(parts, genai.NewPartFromFunctionCall(call.Name, args))
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case RoleTool:
			var response map[string]any
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]any{"result": m.Content}
			}
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{genai.NewPartFromFunctionResponse(m.Name, response)},
			})
		}
	}
	if len(contents) == 0 {
		return nil, &agentcoreerrors.GatewayError{Provider: g.Name(), Model: model, Err: errors.New("at least one user/assistant message is required"), Retryable: false}
	}

	config := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		config.Temperature = &t
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			var params map[string]any
			if len(t.Function.Parameters) > 0 {
				if err := json.Unmarshal(t.Function.Parameters, &params); err != nil {
					return nil, &agentcoreerrors.GatewayError{Provider: g.Name(), Model: model, Err: fmt.Errorf("tool %s: %w", t.Function.Name, err), Retryable: false}
				}
			}
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: params,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, &agentcoreerrors.GatewayError{Provider: g.Name(), Model: model, Err: err, Retryable: isGeminiRetryable(err)}
	}
	if len(resp.Candidates) == 0 {
		return nil, &agentcoreerrors.GatewayError{Provider: g.Name(), Model: model, Err: errors.New("no candidates returned"), Retryable: false}
	}

	return translateGeminiResponse(resp, model), nil
}

func translateGeminiResponse(resp *genai.GenerateContentResponse, model string) *CompletionResponse {
	out := &CompletionResponse{Model: model}
	candidate := resp.Candidates[0]
	out.FinishReason = string(candidate.FinishReason)

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				out.Content += part.Text
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				out.ToolCalls = append(out.ToolCalls, ToolCall{
					ID:        part.FunctionCall.Name,
					Name:      part.FunctionCall.Name,
					Arguments: args,
				})
			}
		}
	}

	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out
}

func isGeminiRetryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503:
			return true
		}
	}
	return false
}
