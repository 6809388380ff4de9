/*
Package tools provides reference llm.Tool implementations that operate
only on caller-supplied content — no network fetch, no filesystem
access — suitable for wiring into a Broker's ToolRegistry:

  - DateResolver ("resolve_date"): resolves a relative weekday/keyword
    reference into an ISO-8601 date.
  - MarkdownRenderer ("render_markdown"): converts Markdown to HTML.
  - ReadableTextExtractor ("extract_readable_text"): extracts the main
    article text from an HTML document.
  - PDFTextExtractor ("extract_pdf_text"): extracts plain text from a
    base64-encoded PDF document.

Each type satisfies llm.Tool (and none implement llm.Compensatable —
none of them have side effects to roll back).
*/
package tools

import "github.com/agentcore/agentcore/pkg/agentcore/llm"

var (
	_ llm.Tool = (*DateResolver)(nil)
	_ llm.Tool = (*MarkdownRenderer)(nil)
	_ llm.Tool = (*ReadableTextExtractor)(nil)
	_ llm.Tool = (*PDFTextExtractor)(nil)
)
