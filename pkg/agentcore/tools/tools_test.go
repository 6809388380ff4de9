package tools_test

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/agentcore/agentcore/pkg/agentcore/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateResolver_Weekday(t *testing.T) {
	// Wednesday 2024-02-28; "Friday" should resolve to 2024-03-01.
	ref := time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC)
	resolver := &tools.DateResolver{Now: func() time.Time { return ref }}

	result, err := resolver.Invoke(context.Background(), map[string]any{"date": "Friday"})
	require.NoError(t, err)
	resolution, ok := result.(tools.DateResolution)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", resolution.ResolvedDate)
}

func TestDateResolver_TodayTomorrow(t *testing.T) {
	ref := time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC)
	resolver := &tools.DateResolver{Now: func() time.Time { return ref }}

	result, err := resolver.Invoke(context.Background(), map[string]any{"date": "today"})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-28", result.(tools.DateResolution).ResolvedDate)

	result, err = resolver.Invoke(context.Background(), map[string]any{"date": "tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", result.(tools.DateResolution).ResolvedDate)
}

func TestDateResolver_Unrecognized(t *testing.T) {
	resolver := &tools.DateResolver{}
	_, err := resolver.Invoke(context.Background(), map[string]any{"date": "next eclipse"})
	assert.Error(t, err)
}

func TestMarkdownRenderer(t *testing.T) {
	r := tools.NewMarkdownRenderer()
	out, err := r.Invoke(context.Background(), map[string]any{"markdown": "**bold** and ~~gone~~"})
	require.NoError(t, err)
	html := out.(string)
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, "<del>gone</del>")
}

func TestReadableTextExtractor(t *testing.T) {
	html := `<html><body><article><h1>Title</h1><p>` + strings50() + `</p></article></body></html>`
	r := &tools.ReadableTextExtractor{}
	out, err := r.Invoke(context.Background(), map[string]any{"html": html})
	require.NoError(t, err)
	text, ok := out.(tools.ReadableText)
	require.True(t, ok)
	assert.NotEmpty(t, text.Text)
}

func strings50() string {
	s := ""
	for i := 0; i < 50; i++ {
		s += "word "
	}
	return s
}

func TestPDFTextExtractor_InvalidBase64(t *testing.T) {
	p := &tools.PDFTextExtractor{}
	_, err := p.Invoke(context.Background(), map[string]any{"content_base64": "not-valid-base64!!"})
	assert.Error(t, err)
}

func TestPDFTextExtractor_EmptyContent(t *testing.T) {
	p := &tools.PDFTextExtractor{}
	_, err := p.Invoke(context.Background(), map[string]any{"content_base64": base64.StdEncoding.EncodeToString(nil)})
	assert.Error(t, err)
}
