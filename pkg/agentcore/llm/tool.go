package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
	"github.com/agentcore/agentcore/pkg/agentcore/registry"
)

// Tool is something the broker can let the model invoke mid-loop. Invoke
// receives already-validated arguments and returns any JSON-serializable
// result; the broker wraps it in a ToolResultEnvelope before appending it
// as a tool-role Message.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the tool's parameters as a JSON Schema object.
	Schema() json.RawMessage
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// Compensatable is an optional extension a Tool may implement to support
// saga-style rollback: if the tool-call loop aborts (LoopExceededError or a
// gateway error), the broker calls Compensate on every already-executed
// Compensatable tool in reverse order. A tool fault does not abort the loop
// and triggers no compensation.
type Compensatable interface {
	Tool
	Compensate(ctx context.Context, args map[string]any, result any) error
}

// ToolRegistry holds the tools available to a Broker.
type ToolRegistry struct {
	tools *registry.Registry[string, Tool]
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: registry.New[string, Tool]()}
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *ToolRegistry) Register(t Tool) {
	r.tools.Register(t.Name(), t)
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	return r.tools.Get(name)
}

// Descriptors returns the JSON-Schema ToolDescriptor for every registered
// tool, in the shape a CompletionRequest.Tools field expects.
func (r *ToolRegistry) Descriptors() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, r.tools.Len())
	r.tools.Range(func(name string, t Tool) bool {
		out = append(out, ToolDescriptor{
			Type: "function",
			Function: ToolDescriptorFn{
				Name:        name,
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
		return true
	})
	return out
}

// ValidateArguments checks raw tool-call arguments against the tool's
// declared JSON Schema before Invoke is called, surfacing a
// SchemaParseFailureError on either malformed JSON or a schema violation.
func ValidateArguments(t Tool, raw json.RawMessage) (map[string]any, error) {
	var args map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, &agentcoreerrors.SchemaParseFailureError{RawText: string(raw), Err: err}
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	schemaBytes := t.Schema()
	if len(schemaBytes) == 0 {
		return args, nil
	}

	compiler := jsonschema.NewCompiler()
	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return nil, fmt.Errorf("tool %s: invalid schema: %w", t.Name(), err)
	}
	resourceName := "tool://" + t.Name()
	if err := compiler.AddResource(resourceName, schemaDoc); err != nil {
		return nil, fmt.Errorf("tool %s: invalid schema: %w", t.Name(), err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("tool %s: invalid schema: %w", t.Name(), err)
	}

	if err := schema.Validate(map[string]any(args)); err != nil {
		return nil, &agentcoreerrors.SchemaParseFailureError{RawText: string(raw), Err: err}
	}
	return args, nil
}
