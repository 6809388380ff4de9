package llm

import (
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer estimates the token length of a string. Production deployments
// plug in the real tokenizer for their model family; WordTokenizer is a
// dependency-free approximation used when none is configured.
type Tokenizer interface {
	CountTokens(content string) int
}

// WordTokenizer approximates token count via NFC-normalized whitespace
// splitting. It is not accurate for any specific model's byte-pair
// encoding, but gives a stable, deterministic estimate good enough for
// budget accounting in tests and examples.
type WordTokenizer struct{}

func (WordTokenizer) CountTokens(content string) int {
	if content == "" {
		return 0
	}
	normalized, _, err := transform.String(norm.NFC, content)
	if err != nil {
		normalized = content
	}
	return len(strings.Fields(normalized))
}
