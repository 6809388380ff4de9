package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
	"github.com/agentcore/agentcore/pkg/agentcore/llm"
)

func TestBroker_Generate_NoToolCalls(t *testing.T) {
	gw := llm.NewMockGateway("hello there")
	broker := llm.NewBroker(gw, nil, nil, "mock-model", 4)

	reply, messages, err := broker.Generate(context.Background(), "corr-1", []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
	assert.Len(t, messages, 1, "no tool calls means the messages slice is unchanged")
	assert.Equal(t, 1, gw.CallCount())
}

func TestBroker_Generate_InvokesToolThenReturnsFinalText(t *testing.T) {
	toolCallArgs := json.RawMessage(`{"message":"ping"}`)
	step := 0
	gw := llm.NewMockGateway("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		step++
		if step == 1 {
			return &llm.CompletionResponse{
				ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "echo", Arguments: toolCallArgs}},
			}, nil
		}
		return &llm.CompletionResponse{Content: "final answer"}, nil
	})

	tools := llm.NewToolRegistry()
	tools.Register(echoTool{schema: []byte(`{"type":"object"}`)})

	broker := llm.NewBroker(gw, nil, tools, "mock-model", 4)

	reply, messages, err := broker.Generate(context.Background(), "corr-2", []llm.Message{
		{Role: llm.RoleUser, Content: "please echo ping"},
	}, tools.Descriptors())

	require.NoError(t, err)
	assert.Equal(t, "final answer", reply)
	assert.Equal(t, 2, gw.CallCount())

	// The assistant tool-call turn and the tool-result turn should both
	// have been appended ahead of the final response.
	require.Len(t, messages, 3)
	assert.Equal(t, llm.RoleAssistant, messages[1].Role)
	assert.Equal(t, llm.RoleTool, messages[2].Role)
	assert.Equal(t, "echo", messages[2].Name)
}

func TestBroker_Generate_UnknownToolIsNotFatal(t *testing.T) {
	step := 0
	gw := llm.NewMockGateway("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		step++
		if step == 1 {
			return &llm.CompletionResponse{
				ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "does-not-exist", Arguments: []byte(`{}`)}},
			}, nil
		}
		return &llm.CompletionResponse{Content: "recovered"}, nil
	})

	broker := llm.NewBroker(gw, nil, llm.NewToolRegistry(), "mock-model", 4)

	reply, _, err := broker.Generate(context.Background(), "corr-3", []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
	assert.Equal(t, 2, gw.CallCount(), "the loop continues after a tool-not-found result")
}

func TestBroker_Generate_SchemaViolationIsAbsorbedAndLoopContinues(t *testing.T) {
	step := 0
	gw := llm.NewMockGateway("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		step++
		if step == 1 {
			return &llm.CompletionResponse{
				ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "echo", Arguments: []byte(`{}`)}},
			}, nil
		}
		return &llm.CompletionResponse{Content: "recovered from schema violation"}, nil
	})

	tools := llm.NewToolRegistry()
	tools.Register(echoTool{schema: []byte(`{"type":"object","required":["message"],"properties":{"message":{"type":"string"}}}`)})

	broker := llm.NewBroker(gw, nil, tools, "mock-model", 4)

	reply, _, err := broker.Generate(context.Background(), "corr-schema", []llm.Message{
		{Role: llm.RoleUser, Content: "echo without required field"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "recovered from schema violation", reply)
	assert.Equal(t, 2, gw.CallCount(), "a schema-validation failure is not fatal to the loop")
}

func TestBroker_Generate_GatewayErrorWraps(t *testing.T) {
	wantErr := errors.New("boom")
	gw := llm.NewMockGateway("").WithError(wantErr)
	broker := llm.NewBroker(gw, nil, nil, "mock-model", 4)

	_, _, err := broker.Generate(context.Background(), "corr-4", []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
	}, nil)

	require.Error(t, err)
	var gwErr *agentcoreerrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "mock", gwErr.Provider)
	assert.ErrorIs(t, err, wantErr)
}

func TestBroker_Generate_LoopExceededWhenToolCallsNeverStop(t *testing.T) {
	gw := llm.NewMockGateway("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{
			ToolCalls: []llm.ToolCall{{ID: "call", Name: "echo", Arguments: []byte(`{}`)}},
		}, nil
	})

	tools := llm.NewToolRegistry()
	tools.Register(echoTool{schema: []byte(`{"type":"object"}`)})

	broker := llm.NewBroker(gw, nil, tools, "mock-model", 2)

	_, _, err := broker.Generate(context.Background(), "corr-5", []llm.Message{
		{Role: llm.RoleUser, Content: "loop forever"},
	}, nil)

	require.Error(t, err)
	var loopErr *agentcoreerrors.LoopExceededError
	require.ErrorAs(t, err, &loopErr)
	assert.Equal(t, 2, loopErr.MaxDepth)
}

func TestBroker_Generate_ArgumentExpansionAppliedBeforeInvoke(t *testing.T) {
	var capturedArgs map[string]any
	step := 0
	gw := llm.NewMockGateway("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		step++
		if step == 1 {
			return &llm.CompletionResponse{
				ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "capture", Arguments: []byte(`{"message":"${today}"}`)}},
			}, nil
		}
		return &llm.CompletionResponse{Content: "done"}, nil
	})

	tools := llm.NewToolRegistry()
	tools.Register(capturingTool{capture: &capturedArgs})

	broker := llm.NewBroker(gw, nil, tools, "mock-model", 4, llm.WithArgumentExpansion(func(args map[string]any) map[string]any {
		out := make(map[string]any, len(args))
		for k, v := range args {
			if v == "${today}" {
				v = "2026-07-31"
			}
			out[k] = v
		}
		return out
	}))

	_, _, err := broker.Generate(context.Background(), "corr-6", []llm.Message{
		{Role: llm.RoleUser, Content: "what is today"},
	}, nil)

	require.NoError(t, err)
	require.NotNil(t, capturedArgs)
	assert.Equal(t, "2026-07-31", capturedArgs["message"])
}

func TestBroker_Generate_ToolFaultIsAbsorbedAndLoopContinues(t *testing.T) {
	compensated := false
	step := 0
	gw := llm.NewMockGateway("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		step++
		switch step {
		case 1:
			return &llm.CompletionResponse{
				ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "reserve", Arguments: []byte(`{}`)}},
			}, nil
		case 2:
			return &llm.CompletionResponse{
				ToolCalls: []llm.ToolCall{{ID: "call-2", Name: "faulty", Arguments: []byte(`{}`)}},
			}, nil
		default:
			return &llm.CompletionResponse{Content: "recovered from tool fault"}, nil
		}
	})

	tools := llm.NewToolRegistry()
	tools.Register(compensatingTool{compensated: &compensated})
	tools.Register(faultyTool{})

	broker := llm.NewBroker(gw, nil, tools, "mock-model", 4)

	reply, messages, err := broker.Generate(context.Background(), "corr-7", []llm.Message{
		{Role: llm.RoleUser, Content: "reserve then fail"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "recovered from tool fault", reply)
	assert.Equal(t, 3, gw.CallCount(), "the loop continues past the tool fault instead of aborting")

	var faultMessage llm.Message
	for _, m := range messages {
		if m.Role == llm.RoleTool && m.Name == "faulty" {
			faultMessage = m
		}
	}
	assert.Contains(t, faultMessage.Content, "tool exploded", "the fault is captured as an error payload in the Tool message")
	assert.False(t, compensated, "a tool fault is not an abort, so nothing should be rolled back")
}

type capturingTool struct {
	capture *map[string]any
}

func (capturingTool) Name() string             { return "capture" }
func (capturingTool) Description() string      { return "captures its arguments" }
func (capturingTool) Schema() json.RawMessage  { return []byte(`{"type":"object"}`) }
func (t capturingTool) Invoke(_ context.Context, args map[string]any) (any, error) {
	*t.capture = args
	return "captured", nil
}

type compensatingTool struct {
	compensated *bool
}

func (compensatingTool) Name() string            { return "reserve" }
func (compensatingTool) Description() string     { return "reserves a resource" }
func (compensatingTool) Schema() json.RawMessage { return []byte(`{"type":"object"}`) }
func (compensatingTool) Invoke(_ context.Context, _ map[string]any) (any, error) {
	return "reserved", nil
}
func (t compensatingTool) Compensate(_ context.Context, _ map[string]any, _ any) error {
	*t.compensated = true
	return nil
}

type faultyTool struct{}

func (faultyTool) Name() string             { return "faulty" }
func (faultyTool) Description() string      { return "always fails" }
func (faultyTool) Schema() json.RawMessage  { return []byte(`{"type":"object"}`) }
func (faultyTool) Invoke(_ context.Context, _ map[string]any) (any, error) {
	return nil, errors.New("tool exploded")
}
