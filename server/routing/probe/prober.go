// Package probe implements privacy-preserving knowledge-base probing.
// Each candidate's knowledge base is scored against the query in isolation;
// the only thing that crosses the boundary back to the router is a
// candidate ID and a relevance score.
package probe

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/agentroute/internal/observability"
	"github.com/hrygo/agentroute/plugin/ai"
	"github.com/hrygo/agentroute/store"
)

// ProbeResult is the full extent of what a probe reveals about a knowledge
// base. No keywords, topics, or content ever appear here.
type ProbeResult struct {
	CandidateID    string  `json:"candidateId"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// Source supplies knowledge-base entries for one candidate. *store.Store
// satisfies it; tests use in-memory fakes.
type Source interface {
	ListKnowledgeBaseEntries(ctx context.Context, find *store.FindKnowledgeBaseEntry) ([]*store.KnowledgeBaseEntry, error)
}

// Field weights for relevance scoring. Keywords are curated and weigh the
// most; free-form content the least.
const (
	keywordWeight = 0.5
	topicWeight   = 0.3
	contentWeight = 0.2
)

// Config holds prober tuning.
type Config struct {
	// Timeout bounds each individual probe. A probe that exceeds it scores
	// zero instead of failing the routing call.
	Timeout time.Duration
	// MaxConcurrency caps parallel probes; zero means no cap.
	MaxConcurrency int
}

// DefaultConfig returns the default prober configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:        2 * time.Second,
		MaxConcurrency: 16,
	}
}

// Prober scores candidate knowledge bases against queries.
type Prober struct {
	config   Config
	source   Source
	strategy ai.Strategy
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewProber creates a new Prober.
func NewProber(config Config, source Source, strategy ai.Strategy, metrics *observability.Metrics, logger *slog.Logger) *Prober {
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		config:   config,
		source:   source,
		strategy: strategy,
		metrics:  metrics,
		logger:   logger,
	}
}

// ProbeAll probes every candidate concurrently and returns one result per
// candidate, sorted by score descending with ID tie-break. Individual probe
// failures and timeouts degrade to a zero score; ProbeAll itself never
// fails.
func (p *Prober) ProbeAll(ctx context.Context, query string, candidateIDs []string) []*ProbeResult {
	results := make([]*ProbeResult, len(candidateIDs))

	g, gctx := errgroup.WithContext(ctx)
	if p.config.MaxConcurrency > 0 {
		g.SetLimit(p.config.MaxConcurrency)
	}
	for i, id := range candidateIDs {
		i, id := i, id
		g.Go(func() error {
			results[i] = p.probe(gctx, query, id)
			return nil
		})
	}
	// Workers never return errors; Wait is only a join point.
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].CandidateID < results[j].CandidateID
	})
	return results
}

// probe scores one candidate's knowledge base within the probe timeout.
func (p *Prober) probe(ctx context.Context, query, candidateID string) *ProbeResult {
	result := &ProbeResult{CandidateID: candidateID}

	probeCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	type outcome struct {
		score float64
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		score, err := p.score(probeCtx, query, candidateID)
		done <- outcome{score: score, err: err}
	}()

	select {
	case <-probeCtx.Done():
		p.metrics.RecordProbeTimeout()
		p.logger.Debug("probe timed out", "candidate", candidateID)
		return result
	case out := <-done:
		if out.err != nil {
			p.metrics.RecordProbeFailure()
			p.logger.Debug("probe failed", "candidate", candidateID, "error", out.err)
			return result
		}
		result.RelevanceScore = out.score
		return result
	}
}

// score computes the weighted relevance of a candidate's knowledge base. A
// missing or empty knowledge base scores zero; that is a signal, not an
// error.
func (p *Prober) score(ctx context.Context, query, candidateID string) (float64, error) {
	entries, err := p.source.ListKnowledgeBaseEntries(ctx, &store.FindKnowledgeBaseEntry{
		CandidateID: &candidateID,
	})
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	// Take the best entry: a knowledge base is as relevant as its most
	// relevant record.
	best := 0.0
	for _, entry := range entries {
		score := p.scoreEntry(query, entry)
		if score > best {
			best = score
		}
	}
	return best, nil
}

func (p *Prober) scoreEntry(query string, entry *store.KnowledgeBaseEntry) float64 {
	var score float64
	if len(entry.Keywords) > 0 {
		score += keywordWeight * p.bestFieldScore(query, entry.Keywords)
	}
	if len(entry.Topics) > 0 {
		score += topicWeight * p.bestFieldScore(query, entry.Topics)
	}
	if entry.Content != "" {
		score += contentWeight * p.strategy.Score(query, entry.Content)
	}
	if score > 1 {
		score = 1
	}
	return score
}

func (p *Prober) bestFieldScore(query string, values []string) float64 {
	best := 0.0
	for _, v := range values {
		if s := p.strategy.Score(query, v); s > best {
			best = s
		}
	}
	return best
}
