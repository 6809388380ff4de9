package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// ReadableTextExtractor implements llm.Tool, extracting the main article
// text from an HTML document using Mozilla Readability's algorithm.
// Operates only on the caller-supplied html argument — no network fetch.
type ReadableTextExtractor struct{}

func (r *ReadableTextExtractor) Name() string { return "extract_readable_text" }

func (r *ReadableTextExtractor) Description() string {
	return "Extracts the main readable article text from an HTML document, stripping navigation, ads, and boilerplate."
}

func (r *ReadableTextExtractor) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"html": {"type": "string", "description": "HTML document to extract readable text from"},
			"url": {"type": "string", "description": "Original document URL, used to resolve relative links; optional"}
		},
		"required": ["html"]
	}`)
}

// ReadableText is the structured result extract_readable_text returns.
type ReadableText struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Text    string `json:"text"`
}

func (r *ReadableTextExtractor) Invoke(_ context.Context, args map[string]any) (any, error) {
	html, _ := args["html"].(string)
	if html == "" {
		return nil, fmt.Errorf("extract_readable_text: missing \"html\" argument")
	}

	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		rawURL = "https://example.invalid/"
	}
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("extract_readable_text: invalid url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract_readable_text: %w", err)
	}

	return ReadableText{
		Title:   article.Title,
		Excerpt: article.Excerpt,
		Text:    strings.TrimSpace(article.TextContent),
	}, nil
}
