package routing

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/agentroute/internal/observability"
	"github.com/hrygo/agentroute/plugin/ai"
	"github.com/hrygo/agentroute/server/routing/cache"
	"github.com/hrygo/agentroute/server/routing/graph"
	"github.com/hrygo/agentroute/server/routing/probe"
	"github.com/hrygo/agentroute/server/routing/registry"
	"github.com/hrygo/agentroute/store"
)

// kbSource is an in-memory knowledge-base source for probing.
type kbSource struct {
	entries map[string][]*store.KnowledgeBaseEntry
}

func (k *kbSource) ListKnowledgeBaseEntries(_ context.Context, find *store.FindKnowledgeBaseEntry) ([]*store.KnowledgeBaseEntry, error) {
	if find.CandidateID == nil {
		return nil, nil
	}
	return k.entries[*find.CandidateID], nil
}

// slowRegistry blocks long enough to push the deep stage past its timeout.
type slowRegistry struct {
	inner registry.CandidateRegistry
	delay time.Duration
}

func (s *slowRegistry) ListCandidates(ctx context.Context) ([]*registry.Candidate, error) {
	time.Sleep(s.delay)
	return s.inner.ListCandidates(ctx)
}

func testCandidates() *registry.Static {
	return registry.NewStatic([]*registry.Candidate{
		{
			ID:           "developer",
			Description:  "code implementation and feature development",
			Capabilities: []string{"write_code", "run_tests"},
		},
		{
			ID:           "qa",
			Description:  "verification planning and release checks",
			Capabilities: []string{"run_tests"},
		},
		{
			ID:          "architect",
			Description: "system design and architecture review",
		},
	}, []*registry.Capability{
		{ID: "run_tests", Description: "execute automated test suites"},
	})
}

type routerFixture struct {
	router *Router
	cache  *cache.Semantic
}

func newTestRouter(t *testing.T, configure func(*Config)) *routerFixture {
	t.Helper()

	config := DefaultConfig()
	if configure != nil {
		configure(&config)
	}

	reg := testCandidates()
	strategy := ai.NewTokenOverlap()

	decisionCache, err := cache.NewSemantic(config.Cache, strategy, nil, nil)
	require.NoError(t, err)

	source := &kbSource{entries: map[string][]*store.KnowledgeBaseEntry{
		"qa": {{
			CandidateID: "qa",
			Keywords:    []string{"flaky test triage", "release verification"},
			Topics:      []string{"test suite maintenance"},
		}},
	}}
	prober := probe.NewProber(config.Probe, source, strategy, nil, nil)

	builder := graph.NewBuilder(reg, reg, nil, nil)
	provider := graph.NewProvider(builder, nil, nil)
	_, err = provider.Rebuild(context.Background())
	require.NoError(t, err)
	retriever := graph.NewRetriever(config.Graph, strategy, provider, nil)

	matcher := NewMatcher(reg, strategy)
	router, err := NewRouter(config, reg, matcher, decisionCache, prober, retriever, observability.NewMetrics(), nil)
	require.NoError(t, err)

	return &routerFixture{router: router, cache: decisionCache}
}

func TestRouteEmptyQuery(t *testing.T) {
	f := newTestRouter(t, nil)

	_, err := f.router.Route(context.Background(), &Input{Query: "   "})
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRouteStaticShortCircuit(t *testing.T) {
	f := newTestRouter(t, nil)

	decision, err := f.router.Route(context.Background(), &Input{Query: "implement the new feature"})
	require.NoError(t, err)
	assert.Equal(t, MethodStatic, decision.Method)
	assert.Equal(t, "developer", decision.SelectedCandidate)
	assert.GreaterOrEqual(t, decision.Confidence, 0.7)
	assert.NotEmpty(t, decision.ID)
}

func TestRouteCachedOnRepeat(t *testing.T) {
	f := newTestRouter(t, nil)
	ctx := context.Background()

	first, err := f.router.Route(ctx, &Input{Query: "implement the new feature"})
	require.NoError(t, err)
	require.Equal(t, MethodStatic, first.Method)

	second, err := f.router.Route(ctx, &Input{Query: "implement the new feature"})
	require.NoError(t, err)
	assert.Equal(t, MethodCached, second.Method)
	assert.Equal(t, first.SelectedCandidate, second.SelectedCandidate)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestRouteAmbiguousQueryUsesDeepSignals(t *testing.T) {
	f := newTestRouter(t, nil)

	// Both developer and qa score on this query, so the static margin stays
	// below the threshold and the probe plus graph signals decide.
	decision, err := f.router.Route(context.Background(), &Input{Query: "verify the release checks for the feature work"})
	require.NoError(t, err)
	assert.Contains(t, []string{MethodCombined, MethodProbed, MethodGraph}, decision.Method)
	assert.Equal(t, "qa", decision.SelectedCandidate)
	assert.NotEmpty(t, decision.Ranking)
}

func TestRouteNoSignalAnywhere(t *testing.T) {
	f := newTestRouter(t, nil)

	decision, err := f.router.Route(context.Background(), &Input{Query: "quarterly revenue projections"})
	require.NoError(t, err)
	assert.Equal(t, MethodNone, decision.Method)
	assert.Empty(t, decision.SelectedCandidate)
	assert.Equal(t, float64(0), decision.Confidence)
}

func TestRouteTimeoutFallsBackToStatic(t *testing.T) {
	config := DefaultConfig()
	config.RouteTimeout = 30 * time.Millisecond
	config.Probe.Timeout = 10 * time.Millisecond

	reg := testCandidates()
	strategy := ai.NewTokenOverlap()
	matcher := NewMatcher(reg, strategy)

	// The probe stage lists candidates through a registry that outlives the
	// route timeout.
	slow := &slowRegistry{inner: reg, delay: 200 * time.Millisecond}
	prober := probe.NewProber(config.Probe, &kbSource{}, strategy, nil, nil)

	router, err := NewRouter(config, slow, matcher, nil, prober, nil, nil, nil)
	require.NoError(t, err)

	start := time.Now()
	decision, err := router.Route(context.Background(), &Input{Query: "verify the release checks for the feature work"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, MethodStatic, decision.Method)
	assert.Equal(t, "qa", decision.SelectedCandidate)
}

func TestRouteProbingOverridesWeakStaticWinner(t *testing.T) {
	reg := registry.NewStatic([]*registry.Candidate{
		{ID: "developer", Description: "general software work and coding tasks"},
		{ID: "security", Description: "secure coding practices and access reviews"},
	}, nil)
	strategy := ai.NewTokenOverlap()
	config := DefaultConfig()

	source := &kbSource{entries: map[string][]*store.KnowledgeBaseEntry{
		"security": {{
			CandidateID: "security",
			Keywords:    []string{"oauth2 jwt", "token rotation"},
			Topics:      []string{"authentication flows"},
		}},
	}}
	prober := probe.NewProber(config.Probe, source, strategy, nil, nil)

	router, err := NewRouter(config, reg, NewMatcher(reg, strategy), nil, prober, nil, nil, nil)
	require.NoError(t, err)

	// developer wins the static pass, but not decisively; the security
	// knowledge base carries the real signal.
	decision, err := router.Route(context.Background(), &Input{Query: "oauth2 jwt login for the coding tasks"})
	require.NoError(t, err)
	assert.Equal(t, MethodProbed, decision.Method)
	assert.Equal(t, "security", decision.SelectedCandidate)
}

type failingRegistry struct{}

func (failingRegistry) ListCandidates(context.Context) ([]*registry.Candidate, error) {
	return nil, errors.New("registry unavailable")
}

func TestRouteStaticUnavailableAnswersNobody(t *testing.T) {
	strategy := ai.NewTokenOverlap()
	matcher := NewMatcher(failingRegistry{}, strategy)

	router, err := NewRouter(DefaultConfig(), failingRegistry{}, matcher, nil, nil, nil, nil, nil)
	require.NoError(t, err)

	decision, err := router.Route(context.Background(), &Input{Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, MethodNone, decision.Method)
	assert.Empty(t, decision.SelectedCandidate)
}

func TestRouteConfidenceThresholdBoundary(t *testing.T) {
	// 1.0 vs 0.3 is exactly the 0.7 margin; at the boundary the static
	// result is accepted.
	assert.GreaterOrEqual(t, marginConfidence([]*ScoredCandidate{
		{ID: "a", Score: 1.0}, {ID: "b", Score: 0.3},
	}), DefaultConfig().ConfidenceThreshold)

	// Just below the boundary the deep stages take over.
	assert.Less(t, marginConfidence([]*ScoredCandidate{
		{ID: "a", Score: 1.0}, {ID: "b", Score: 0.301},
	}), DefaultConfig().ConfidenceThreshold)
}

func TestRouteDeterministicAcrossRuns(t *testing.T) {
	query := "verify the release checks for the feature work"

	first := func() *Decision {
		f := newTestRouter(t, nil)
		d, err := f.router.Route(context.Background(), &Input{Query: query})
		require.NoError(t, err)
		return d
	}()

	for i := 0; i < 3; i++ {
		f := newTestRouter(t, nil)
		d, err := f.router.Route(context.Background(), &Input{Query: query})
		require.NoError(t, err)
		assert.Equal(t, first.SelectedCandidate, d.SelectedCandidate)
		assert.Equal(t, first.Method, d.Method)
		assert.Equal(t, first.Confidence, d.Confidence)
	}
}

func TestRouteWritesThroughToCache(t *testing.T) {
	f := newTestRouter(t, nil)

	_, err := f.router.Route(context.Background(), &Input{Query: "implement the new feature"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Len())

	// A none decision is not worth remembering.
	_, err = f.router.Route(context.Background(), &Input{Query: "quarterly revenue projections"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Len())
}

func TestRouteRejectsZeroWeightSum(t *testing.T) {
	f := newTestRouter(t, nil)

	_, err := f.router.Route(context.Background(), &Input{
		Query:   "implement the new feature",
		Weights: &Weights{Graph: 0, KBA: 0},
	})
	require.Error(t, err)
}
