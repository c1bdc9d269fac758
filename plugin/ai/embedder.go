package ai

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingConfig holds the embedding provider configuration.
type EmbeddingConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dim        int
	MaxRetries int
	Timeout    time.Duration
}

// DefaultEmbeddingConfig returns the default configuration.
func DefaultEmbeddingConfig() *EmbeddingConfig {
	return &EmbeddingConfig{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dim:        1536,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// EmbeddingProvider generates embedding vectors through an
// OpenAI-compatible API.
type EmbeddingProvider struct {
	client *openai.Client
	config *EmbeddingConfig
}

// NewEmbeddingProvider creates a new embedding provider.
func NewEmbeddingProvider(cfg *EmbeddingConfig) (*EmbeddingProvider, error) {
	if cfg == nil {
		cfg = DefaultEmbeddingConfig()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("embedding api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &EmbeddingProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Embed generates an embedding vector for the given text, retrying with
// exponential backoff on transient failures.
func (p *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	var lastErr error

	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		resp, err := p.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(p.config.Model),
		})
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Data) == 0 {
			lastErr = errors.New("empty embedding response")
			continue
		}
		result = resp.Data[0].Embedding
		return result, nil
	}

	return nil, errors.Wrap(lastErr, "failed to generate embedding")
}

// Embedder is the minimal interface EmbeddingStrategy needs; it allows
// tests to swap in fakes without a network provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingStrategy scores relatedness by cosine similarity of embedding
// vectors. Provider failures degrade to the lexical fallback rather than
// failing a routing call; the degradation is logged once per text.
type EmbeddingStrategy struct {
	embedder Embedder
	fallback Strategy
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string][]float32
}

// NewEmbeddingStrategy creates an embedding-backed similarity strategy.
func NewEmbeddingStrategy(embedder Embedder, logger *slog.Logger) *EmbeddingStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingStrategy{
		embedder: embedder,
		fallback: NewTokenOverlap(),
		logger:   logger,
		cache:    make(map[string][]float32),
	}
}

func (s *EmbeddingStrategy) Name() string {
	return "embedding_cosine"
}

// Score embeds both spans and returns cosine similarity mapped to [0, 1].
func (s *EmbeddingStrategy) Score(a, b string) float64 {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	va, errA := s.vector(ctx, a)
	vb, errB := s.vector(ctx, b)
	if errA != nil || errB != nil {
		return s.fallback.Score(a, b)
	}

	// Cosine similarity is in [-1, 1]; shift into [0, 1].
	return clamp01((CosineSimilarity(va, vb) + 1) / 2)
}

// Vectorize returns the embedding for a text span.
func (s *EmbeddingStrategy) Vectorize(ctx context.Context, text string) ([]float32, error) {
	return s.vector(ctx, text)
}

func (s *EmbeddingStrategy) vector(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	if v, ok := s.cache[text]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Debug("embedding failed, falling back to lexical similarity", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.cache[text] = v
	s.mu.Unlock()
	return v, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
