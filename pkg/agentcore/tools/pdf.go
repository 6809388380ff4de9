package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFTextExtractor implements llm.Tool, extracting plain text from a
// PDF document supplied as base64-encoded bytes. Operates only on the
// caller-supplied content argument — no filesystem access.
type PDFTextExtractor struct{}

func (p *PDFTextExtractor) Name() string { return "extract_pdf_text" }

func (p *PDFTextExtractor) Description() string {
	return "Extracts plain text from a PDF document supplied as base64-encoded bytes."
}

func (p *PDFTextExtractor) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content_base64": {"type": "string", "description": "Base64-encoded PDF bytes"}
		},
		"required": ["content_base64"]
	}`)
}

func (p *PDFTextExtractor) Invoke(_ context.Context, args map[string]any) (any, error) {
	encoded, _ := args["content_base64"].(string)
	if encoded == "" {
		return nil, fmt.Errorf("extract_pdf_text: missing \"content_base64\" argument")
	}

	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("extract_pdf_text: invalid base64: %w", err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("extract_pdf_text: empty PDF content")
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract_pdf_text: open pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract_pdf_text: extract text: %w", err)
	}

	text, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("extract_pdf_text: read text: %w", err)
	}

	return strings.TrimSpace(string(text)), nil
}
