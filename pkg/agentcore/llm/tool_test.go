package llm_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/agentcore/llm"
)

type echoTool struct {
	schema json.RawMessage
}

func (echoTool) Name() string               { return "echo" }
func (echoTool) Description() string        { return "echoes its input back" }
func (t echoTool) Schema() json.RawMessage   { return t.schema }
func (echoTool) Invoke(_ context.Context, args map[string]any) (any, error) {
	return args["message"], nil
}

func TestToolRegistry_RegisterGetDescriptors(t *testing.T) {
	reg := llm.NewToolRegistry()
	reg.Register(echoTool{schema: []byte(`{"type":"object"}`)})

	tool, ok := reg.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", tool.Name())

	descriptors := reg.Descriptors()
	require.Len(t, descriptors, 1)
	assert.Equal(t, "function", descriptors[0].Type)
	assert.Equal(t, "echo", descriptors[0].Function.Name)
}

func TestToolRegistry_RegisterOverwritesSameName(t *testing.T) {
	reg := llm.NewToolRegistry()
	reg.Register(echoTool{schema: []byte(`{"type":"object"}`)})
	reg.Register(echoTool{schema: []byte(`{"type":"object","required":["message"]}`)})

	require.Len(t, reg.Descriptors(), 1)
}

func TestToolRegistry_GetMissing(t *testing.T) {
	reg := llm.NewToolRegistry()
	_, ok := reg.Get("nope")
	assert.False(t, ok)
}

func TestValidateArguments_NoSchemaPassesThrough(t *testing.T) {
	tool := echoTool{}
	args, err := llm.ValidateArguments(tool, []byte(`{"message":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", args["message"])
}

func TestValidateArguments_EmptyRawBecomesEmptyMap(t *testing.T) {
	tool := echoTool{}
	args, err := llm.ValidateArguments(tool, nil)
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestValidateArguments_MalformedJSON(t *testing.T) {
	tool := echoTool{}
	_, err := llm.ValidateArguments(tool, []byte(`{not json`))
	assert.Error(t, err)
}

func TestValidateArguments_SchemaViolation(t *testing.T) {
	tool := echoTool{schema: []byte(`{"type":"object","required":["message"],"properties":{"message":{"type":"string"}}}`)}
	_, err := llm.ValidateArguments(tool, []byte(`{}`))
	assert.Error(t, err)
}

func TestValidateArguments_SchemaSatisfied(t *testing.T) {
	tool := echoTool{schema: []byte(`{"type":"object","required":["message"],"properties":{"message":{"type":"string"}}}`)}
	args, err := llm.ValidateArguments(tool, []byte(`{"message":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", args["message"])
}
