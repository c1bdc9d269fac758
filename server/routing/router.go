package routing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/agentroute/internal/observability"
	"github.com/hrygo/agentroute/server/routing/cache"
	"github.com/hrygo/agentroute/server/routing/graph"
	"github.com/hrygo/agentroute/server/routing/probe"
	"github.com/hrygo/agentroute/server/routing/registry"
)

// ErrEmptyQuery is the only routing error: everything else degrades to a
// weaker decision instead of failing.
var ErrEmptyQuery = errors.New("query must not be empty")

// Router orchestrates the decision pipeline. Stages run in a fixed order:
// cache lookup, static matching, then the probe and graph signals in
// parallel, then combination. Each stage may finish the decision early.
type Router struct {
	config  Config
	logger  *slog.Logger
	metrics *observability.Metrics

	candidates registry.CandidateRegistry
	matcher    *Matcher
	cache      *cache.Semantic
	prober     *probe.Prober
	retriever  *graph.Retriever
	combiner   *Combiner
}

// NewRouter wires the pipeline. cache, prober and retriever may be nil;
// the corresponding stages are then skipped.
func NewRouter(
	config Config,
	candidates registry.CandidateRegistry,
	matcher *Matcher,
	decisionCache *cache.Semantic,
	prober *probe.Prober,
	retriever *graph.Retriever,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*Router, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "routing config")
	}
	if matcher == nil {
		return nil, errors.New("static matcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Router{
		config:     config,
		logger:     logger,
		metrics:    metrics,
		candidates: candidates,
		matcher:    matcher,
		cache:      decisionCache,
		prober:     prober,
		retriever:  retriever,
		combiner:   NewCombiner(),
	}, nil
}

// Route maps a query to the candidate best suited to serve it.
func (r *Router) Route(ctx context.Context, input *Input) (*Decision, error) {
	reqCtx, ok := observability.FromContext(ctx)
	if !ok {
		reqCtx = observability.NewRequestContext(r.logger, "router")
	}

	query := strings.TrimSpace(input.Query)
	if query == "" {
		r.metrics.RecordRequest(MethodNone, reqCtx.Duration(), true)
		return nil, ErrEmptyQuery
	}

	decision, err := r.route(ctx, reqCtx, query, input)
	if err != nil {
		r.metrics.RecordRequest(MethodNone, reqCtx.Duration(), true)
		return nil, err
	}

	decision.ID = NewDecisionID()
	decision.DurationMs = reqCtx.DurationMs()
	decision.CreatedTs = time.Now().Unix()
	r.metrics.RecordRequest(decision.Method, reqCtx.Duration(), false)
	reqCtx.Info("routing decision",
		slog.String(observability.LogFieldMethod, decision.Method),
		slog.String(observability.LogFieldCandidate, decision.SelectedCandidate),
		slog.Float64("confidence", decision.Confidence),
		slog.Int64(observability.LogFieldDuration, decision.DurationMs),
	)

	if decision.Method != MethodCached && decision.Method != MethodNone {
		r.remember(ctx, query, decision)
	}
	return decision, nil
}

func (r *Router) route(ctx context.Context, reqCtx *observability.RequestContext, query string, input *Input) (*Decision, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = r.config.DefaultTopK
	}
	weights := r.config.DefaultWeights
	if input.Weights != nil {
		weights = *input.Weights
	}
	if weights.Graph+weights.KBA <= 0 {
		return nil, errors.New("combiner weights must sum to a positive value")
	}

	var softHit *cache.Result
	if r.cache != nil {
		switch result := r.cache.Lookup(query); result.Kind {
		case cache.HitHard:
			r.metrics.RecordCacheHardHit()
			reqCtx.Debug("hard cache hit", slog.Float64("similarity", result.Similarity))
			return &Decision{
				SelectedCandidate: result.Entry.SelectedCandidate,
				Confidence:        result.Entry.Confidence,
				Method:            MethodCached,
			}, nil
		case cache.HitSoft:
			r.metrics.RecordCacheSoftHit()
			softHit = result
		default:
			r.metrics.RecordCacheMiss()
		}
	}

	static, err := r.matcher.Match(ctx, query)
	if err != nil {
		// Static matching is the guaranteed fallback; when even it is
		// unavailable the call answers nobody rather than guessing.
		reqCtx.Warn("static matching unavailable", slog.String("error", err.Error()))
		return &Decision{Method: MethodNone}, nil
	}

	// A soft hit is only a hint; it stands when the cheap ranking agrees.
	if softHit != nil && static.Best() != "" && static.Best() == softHit.Entry.SelectedCandidate {
		confidence := static.Confidence
		if softHit.Similarity > confidence {
			confidence = softHit.Similarity
		}
		return &Decision{
			SelectedCandidate: static.Best(),
			Confidence:        confidence,
			Method:            MethodStatic,
			Ranking:           truncate(static.Ranking, topK),
		}, nil
	}

	if static.Best() != "" && static.Confidence >= r.config.ConfidenceThreshold {
		return &Decision{
			SelectedCandidate: static.Best(),
			Confidence:        static.Confidence,
			Method:            MethodStatic,
			Ranking:           truncate(static.Ranking, topK),
		}, nil
	}

	probeScores, graphScores, timedOut := r.deepSignals(ctx, reqCtx, query, topK)
	if timedOut {
		return r.staticFallback(static, topK), nil
	}

	switch {
	case len(probeScores) == 0 && len(graphScores) == 0:
		return r.staticFallback(static, topK), nil
	case len(graphScores) == 0:
		return r.decisionFrom(MethodProbed, probeScores, graphScores, weights, static, topK), nil
	case len(probeScores) == 0:
		return r.decisionFrom(MethodGraph, probeScores, graphScores, weights, static, topK), nil
	default:
		return r.decisionFrom(MethodCombined, probeScores, graphScores, weights, static, topK), nil
	}
}

// deepSignals runs the probe and graph stages in parallel under the route
// timeout. On expiry both signals are discarded; partial results would make
// decisions depend on timing.
func (r *Router) deepSignals(ctx context.Context, reqCtx *observability.RequestContext, query string, topK int) (map[string]float64, map[string]float64, bool) {
	if r.prober == nil && r.retriever == nil {
		return nil, nil, false
	}

	stageCtx, cancel := context.WithTimeout(ctx, r.config.RouteTimeout)
	defer cancel()

	var probeScores, graphScores map[string]float64
	g, gctx := errgroup.WithContext(stageCtx)

	if r.prober != nil && r.candidates != nil {
		g.Go(func() error {
			ids, err := r.candidateIDs(gctx)
			if err != nil {
				reqCtx.Warn("candidate listing failed, skipping probe", slog.String("error", err.Error()))
				return nil
			}
			scores := make(map[string]float64)
			for _, res := range r.prober.ProbeAll(gctx, query, ids) {
				if res.RelevanceScore > 0 {
					scores[res.CandidateID] = res.RelevanceScore
				}
			}
			probeScores = scores
			return nil
		})
	}

	if r.retriever != nil {
		g.Go(func() error {
			scores := make(map[string]float64)
			for _, res := range r.retriever.Retrieve(gctx, query, topK) {
				if res.WeightedScore > 0 {
					scores[res.CandidateID] = res.WeightedScore
				}
			}
			graphScores = scores
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return probeScores, graphScores, false
	case <-stageCtx.Done():
		reqCtx.Warn("deep signal stage timed out, falling back to static match")
		return nil, nil, true
	}
}

func (r *Router) candidateIDs(ctx context.Context) ([]string, error) {
	candidates, err := r.candidates.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// decisionFrom fuses the deep signals into the final decision. Weights are
// normalized to sum to one so the combined top score doubles as the
// confidence.
func (r *Router) decisionFrom(method string, probeScores, graphScores map[string]float64, weights Weights, static *StaticMatch, topK int) *Decision {
	total := weights.Graph + weights.KBA
	normalized := Weights{Graph: weights.Graph / total, KBA: weights.KBA / total}

	ranking := r.combiner.Combine(graphScores, probeScores, normalized, static)
	if len(ranking) == 0 {
		return r.staticFallback(static, topK)
	}

	return &Decision{
		SelectedCandidate: ranking[0].ID,
		Confidence:        clampScore(ranking[0].Score),
		Method:            method,
		Ranking:           truncate(ranking, topK),
	}
}

// staticFallback degrades to the best static result, or to a none decision
// when static matching found nothing either.
func (r *Router) staticFallback(static *StaticMatch, topK int) *Decision {
	if static.Best() == "" {
		return &Decision{Method: MethodNone}
	}
	return &Decision{
		SelectedCandidate: static.Best(),
		Confidence:        static.Confidence,
		Method:            MethodStatic,
		Ranking:           truncate(static.Ranking, topK),
	}
}

// remember writes the decision through to the semantic cache.
func (r *Router) remember(ctx context.Context, query string, decision *Decision) {
	if r.cache == nil || decision.SelectedCandidate == "" {
		return
	}
	r.cache.Put(ctx, &cache.Entry{
		Query:             query,
		SelectedCandidate: decision.SelectedCandidate,
		Confidence:        decision.Confidence,
		Method:            decision.Method,
	})
}

func truncate(ranking []*ScoredCandidate, topK int) []*ScoredCandidate {
	if topK > 0 && len(ranking) > topK {
		return ranking[:topK]
	}
	return ranking
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
