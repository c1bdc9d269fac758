package ai

import (
	"context"
	"strings"
)

// Strategy scores the relatedness of two text spans in [0, 1].
// Implementations must be safe for concurrent use and deterministic for
// identical inputs; every ranking component in the router depends on that.
type Strategy interface {
	Score(a, b string) float64
	Name() string
}

// Vectorizer is implemented by strategies that can produce a feature
// vector for a text span. The cache persists these vectors.
type Vectorizer interface {
	Vectorize(ctx context.Context, text string) ([]float32, error)
}

// prefixMatchMinLen is the minimum token length for prefix matching, so
// "implement" matches "implementation" but "in" never matches "inside".
const prefixMatchMinLen = 4

// TokenOverlap is the default lexical strategy: an F1-style overlap of the
// two token sets, with prefix matching to absorb simple morphology.
type TokenOverlap struct {
	tokenizer *Tokenizer
}

// NewTokenOverlap creates the default lexical similarity strategy.
func NewTokenOverlap() *TokenOverlap {
	return &TokenOverlap{tokenizer: NewTokenizer()}
}

func (s *TokenOverlap) Name() string {
	return "token_overlap"
}

// Score returns the harmonic mean of the two directional overlap ratios.
// Identical inputs always score 1.0.
func (s *TokenOverlap) Score(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}
	if a == b {
		return 1
	}

	tokensA := s.tokenizer.Tokenize(a)
	tokensB := s.tokenizer.Tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	precision := overlapRatio(tokensA, tokensB)
	recall := overlapRatio(tokensB, tokensA)
	if precision+recall == 0 {
		return 0
	}
	return clamp01(2 * precision * recall / (precision + recall))
}

// overlapRatio returns the weighted fraction of tokens in a that are
// matched by some token in b. Exact matches count 1.0, prefix matches 0.8.
func overlapRatio(a, b []string) float64 {
	var matched float64
	for _, tok := range a {
		matched += bestTokenMatch(tok, b)
	}
	return matched / float64(len(a))
}

func bestTokenMatch(tok string, candidates []string) float64 {
	best := 0.0
	for _, c := range candidates {
		switch {
		case tok == c:
			return 1.0
		case tokensSharePrefix(tok, c):
			if best < 0.8 {
				best = 0.8
			}
		}
	}
	return best
}

func tokensSharePrefix(a, b string) bool {
	if len(a) < prefixMatchMinLen || len(b) < prefixMatchMinLen {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
