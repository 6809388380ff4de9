package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// MarkdownRenderer implements llm.Tool, converting a Markdown string to
// HTML. Operates only on the caller-supplied content argument — no
// network fetch, no filesystem access.
type MarkdownRenderer struct {
	md goldmark.Markdown
}

// NewMarkdownRenderer builds a MarkdownRenderer with GitHub-flavored
// strikethrough support enabled.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(goldmark.WithExtensions(extension.Strikethrough)),
	}
}

func (m *MarkdownRenderer) Name() string { return "render_markdown" }

func (m *MarkdownRenderer) Description() string {
	return "Converts a Markdown string to HTML."
}

func (m *MarkdownRenderer) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"markdown": {"type": "string", "description": "Markdown source to render"}
		},
		"required": ["markdown"]
	}`)
}

func (m *MarkdownRenderer) Invoke(_ context.Context, args map[string]any) (any, error) {
	source, _ := args["markdown"].(string)
	if source == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return nil, fmt.Errorf("render_markdown: %w", err)
	}
	return buf.String(), nil
}
