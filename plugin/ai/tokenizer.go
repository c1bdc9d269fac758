// Package ai provides the injectable similarity strategies used by the
// routing pipeline: a lexical token-overlap strategy (default) and an
// embedding-backed strategy with an OpenAI-compatible provider.
package ai

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lowercase tokens.
// Supports both Chinese and English text: CJK characters become single
// tokens, Latin words are split on whitespace and punctuation.
type Tokenizer struct{}

// NewTokenizer creates a new Tokenizer instance.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Tokenize splits the input text into deduplicated tokens, preserving
// first-occurrence order so downstream scoring stays deterministic.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var tokens []string
	seen := make(map[string]bool)

	appendToken := func(tok string) {
		if tok != "" && !seen[tok] {
			tokens = append(tokens, tok)
			seen[tok] = true
		}
	}

	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			appendToken(strings.ToLower(word.String()))
			word.Reset()
		}
	}

	for _, r := range strings.TrimSpace(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			appendToken(string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}
