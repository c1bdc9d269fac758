package ai

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizer(t *testing.T) {
	tokenizer := NewTokenizer()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "english words",
			input:    "Implement OAuth2 login",
			expected: []string{"implement", "oauth2", "login"},
		},
		{
			name:     "punctuation split",
			input:    "code, implementation; features!",
			expected: []string{"code", "implementation", "features"},
		},
		{
			name:     "deduplicates",
			input:    "test test TEST",
			expected: []string{"test"},
		},
		{
			name:     "chinese characters",
			input:    "部署服务",
			expected: []string{"部", "署", "服", "务"},
		},
		{
			name:     "empty",
			input:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tokenizer.Tokenize(tt.input))
		})
	}
}

func TestTokenOverlapScore(t *testing.T) {
	s := NewTokenOverlap()

	t.Run("identical text scores one", func(t *testing.T) {
		assert.Equal(t, 1.0, s.Score("implement OAuth2 login", "implement OAuth2 login"))
	})

	t.Run("disjoint text scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, s.Score("implement OAuth2 login", "system design planning"))
	})

	t.Run("empty input scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, s.Score("", "anything"))
		assert.Equal(t, 0.0, s.Score("anything", "   "))
	})

	t.Run("prefix absorbs morphology", func(t *testing.T) {
		score := s.Score("implement OAuth2 login", "code implementation and feature development")
		assert.Greater(t, score, 0.0)
	})

	t.Run("closer text scores higher", func(t *testing.T) {
		query := "implement OAuth2 login"
		dev := s.Score(query, "code implementation and feature development")
		arch := s.Score(query, "system design and architecture planning")
		assert.Greater(t, dev, arch)
	})

	t.Run("short tokens never prefix match", func(t *testing.T) {
		assert.Equal(t, 0.0, s.Score("in", "inside"))
	})
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func TestEmbeddingStrategy(t *testing.T) {
	t.Run("cosine of identical vectors is one", func(t *testing.T) {
		s := NewEmbeddingStrategy(&fakeEmbedder{vectors: map[string][]float32{
			"a": {1, 0, 0},
			"b": {1, 0, 0},
		}}, nil)
		assert.InDelta(t, 1.0, s.Score("a", "b"), 1e-9)
	})

	t.Run("orthogonal vectors score half", func(t *testing.T) {
		s := NewEmbeddingStrategy(&fakeEmbedder{vectors: map[string][]float32{
			"a": {1, 0, 0},
			"b": {0, 1, 0},
		}}, nil)
		assert.InDelta(t, 0.5, s.Score("a", "b"), 1e-9)
	})

	t.Run("provider failure falls back to lexical", func(t *testing.T) {
		s := NewEmbeddingStrategy(&fakeEmbedder{err: errors.New("provider down")}, nil)
		assert.Equal(t, 1.0, s.Score("same text", "same text"))
	})

	t.Run("vectorize caches", func(t *testing.T) {
		fake := &fakeEmbedder{vectors: map[string][]float32{"a": {1, 2, 3}}}
		s := NewEmbeddingStrategy(fake, nil)

		v, err := s.Vectorize(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3}, v)

		// Second call served from cache even if the provider now fails.
		fake.err = errors.New("provider down")
		v, err = s.Vectorize(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3}, v)
	})
}
