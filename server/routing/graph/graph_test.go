package graph

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/agentroute/plugin/ai"
	"github.com/hrygo/agentroute/server/routing/registry"
	"github.com/hrygo/agentroute/store"
)

// fakeDriver serves a canned persisted snapshot so hydration can run
// without a database.
type fakeDriver struct {
	nodes []*store.GraphNode
	edges []*store.GraphEdge
}

func (f *fakeDriver) GetDB() *sql.DB                              { return nil }
func (f *fakeDriver) Close() error                                { return nil }
func (f *fakeDriver) IsInitialized(context.Context) (bool, error) { return true, nil }

func (f *fakeDriver) CreateCacheEntry(_ context.Context, create *store.CacheEntry) (*store.CacheEntry, error) {
	return create, nil
}

func (f *fakeDriver) ListCacheEntries(context.Context, *store.FindCacheEntry) ([]*store.CacheEntry, error) {
	return nil, nil
}

func (f *fakeDriver) DeleteCacheEntries(context.Context, *store.DeleteCacheEntry) (int64, error) {
	return 0, nil
}

func (f *fakeDriver) UpsertKnowledgeBaseEntry(_ context.Context, upsert *store.KnowledgeBaseEntry) (*store.KnowledgeBaseEntry, error) {
	return upsert, nil
}

func (f *fakeDriver) ListKnowledgeBaseEntries(context.Context, *store.FindKnowledgeBaseEntry) ([]*store.KnowledgeBaseEntry, error) {
	return nil, nil
}

func (f *fakeDriver) DeleteKnowledgeBaseEntries(context.Context, *store.DeleteKnowledgeBaseEntry) (int64, error) {
	return 0, nil
}

func (f *fakeDriver) ReplaceGraphSnapshot(_ context.Context, nodes []*store.GraphNode, edges []*store.GraphEdge) error {
	f.nodes, f.edges = nodes, edges
	return nil
}

func (f *fakeDriver) GetGraphSnapshot(context.Context) ([]*store.GraphNode, []*store.GraphEdge, error) {
	return f.nodes, f.edges, nil
}

func TestNormalizeCapability(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"run_tests", "run_tests"},
		{"Run Tests", "run_tests"},
		{"run-tests", "run_tests"},
		{"  RUN--TESTS  ", "run_tests"},
		{"deploy to prod!", "deploy_to_prod"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCapability(tt.in), "input %q", tt.in)
	}
}

func TestSnapshotValidateBipartite(t *testing.T) {
	primary := &store.GraphNode{ID: "developer", Type: store.GraphNodeTypePrimary, Label: "code"}
	capability := &store.GraphNode{ID: "cap:run_tests", Type: store.GraphNodeTypeCapability, Label: "run_tests"}

	t.Run("valid", func(t *testing.T) {
		s := newSnapshot(
			[]*store.GraphNode{primary, capability},
			[]*store.GraphEdge{{SourceID: "developer", TargetID: "cap:run_tests", Type: store.GraphEdgeTypeHasCapability}},
		)
		require.NoError(t, s.Validate())
	})

	t.Run("capability source rejected", func(t *testing.T) {
		s := newSnapshot(
			[]*store.GraphNode{primary, capability},
			[]*store.GraphEdge{{SourceID: "cap:run_tests", TargetID: "developer", Type: store.GraphEdgeTypeHasCapability}},
		)
		require.Error(t, s.Validate())
	})

	t.Run("missing target rejected", func(t *testing.T) {
		s := newSnapshot(
			[]*store.GraphNode{primary},
			[]*store.GraphEdge{{SourceID: "developer", TargetID: "cap:missing", Type: store.GraphEdgeTypeHasCapability}},
		)
		require.Error(t, s.Validate())
	})
}

func testRegistry() *registry.Static {
	return registry.NewStatic(
		[]*registry.Candidate{
			{
				ID:           "developer",
				Description:  "code implementation and feature development",
				Capabilities: []string{"write_code", "Run Tests"},
			},
			{
				ID:           "qa",
				Description:  "quality assurance and verification",
				Capabilities: []string{"run-tests"},
			},
			{
				ID:          "architect",
				Description: "system design and architecture review",
			},
		},
		[]*registry.Capability{
			{
				ID:          "run_tests",
				Description: "execute automated test suites",
				Aliases:     []string{"Run Tests", "run-tests"},
			},
		},
	)
}

func TestBuilderDeduplicatesCapabilityVariants(t *testing.T) {
	b := NewBuilder(testRegistry(), testRegistry(), nil, nil)

	snapshot, err := b.Build(context.Background())
	require.NoError(t, err)

	// 3 primaries + write_code + run_tests. "Run Tests" and "run-tests"
	// collapse into one node.
	require.Len(t, snapshot.Nodes, 5)
	require.Len(t, snapshot.Edges, 3)

	node := snapshot.Node(CapabilityNodeID("run_tests"))
	require.NotNil(t, node)
	assert.Equal(t, store.GraphNodeTypeCapability, node.Type)
	assert.Equal(t, []string{"developer", "qa"}, snapshot.Owners(node.ID))
}

func TestBuilderSkipsCandidateWithMissingData(t *testing.T) {
	reg := registry.NewStatic([]*registry.Candidate{
		{ID: "developer", Description: "code implementation"},
		{ID: "broken"},
	}, nil)
	b := NewBuilder(reg, nil, nil, nil)

	snapshot, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Nodes, 1)
	assert.Equal(t, "developer", snapshot.Nodes[0].ID)
}

func TestProviderBuildThenSwap(t *testing.T) {
	b := NewBuilder(testRegistry(), testRegistry(), nil, nil)
	p := NewProvider(b, nil, nil)

	assert.Nil(t, p.Current())

	first, err := p.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, p.Current())

	second, err := p.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Same(t, second, p.Current())
	assert.NotSame(t, first, second)

	// The old snapshot stays complete for readers that still hold it.
	require.NoError(t, first.Validate())
}

func TestLoadPersistedHydratesSnapshot(t *testing.T) {
	driver := &fakeDriver{
		nodes: []*store.GraphNode{
			{ID: "developer", Type: store.GraphNodeTypePrimary, Label: "code implementation"},
			{ID: "cap:run_tests", Type: store.GraphNodeTypeCapability, Label: "run_tests"},
		},
		edges: []*store.GraphEdge{
			{SourceID: "developer", TargetID: "cap:run_tests", Type: store.GraphEdgeTypeHasCapability},
		},
	}
	b := NewBuilder(registry.NewStatic(nil, nil), nil, nil, nil)
	p := NewProvider(b, store.New(driver, nil), nil)

	require.NoError(t, p.LoadPersisted(context.Background()))

	snapshot := p.Current()
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot.Nodes, 2)
	assert.Equal(t, []string{"developer"}, snapshot.Owners("cap:run_tests"))
}

func TestLoadPersistedDiscardsInvalidSnapshot(t *testing.T) {
	// The persisted edge runs capability→primary, violating the bipartite
	// invariant; the snapshot must be discarded, not served.
	driver := &fakeDriver{
		nodes: []*store.GraphNode{
			{ID: "developer", Type: store.GraphNodeTypePrimary, Label: "code implementation"},
			{ID: "cap:run_tests", Type: store.GraphNodeTypeCapability, Label: "run_tests"},
		},
		edges: []*store.GraphEdge{
			{SourceID: "cap:run_tests", TargetID: "developer", Type: store.GraphEdgeTypeHasCapability},
		},
	}
	b := NewBuilder(registry.NewStatic(nil, nil), nil, nil, nil)
	p := NewProvider(b, store.New(driver, nil), nil)

	require.NoError(t, p.LoadPersisted(context.Background()))
	assert.Nil(t, p.Current())
}

func newTestRetriever(t *testing.T) *Retriever {
	t.Helper()
	b := NewBuilder(testRegistry(), testRegistry(), nil, nil)
	p := NewProvider(b, nil, nil)
	_, err := p.Rebuild(context.Background())
	require.NoError(t, err)
	return NewRetriever(DefaultConfig(), ai.NewTokenOverlap(), p, nil)
}

func TestRetrieveEmptySnapshot(t *testing.T) {
	b := NewBuilder(registry.NewStatic(nil, nil), nil, nil, nil)
	p := NewProvider(b, nil, nil)
	r := NewRetriever(DefaultConfig(), ai.NewTokenOverlap(), p, nil)

	assert.Nil(t, r.Retrieve(context.Background(), "anything", 5))
}

func TestRetrieveDirectMatch(t *testing.T) {
	r := newTestRetriever(t)

	results := r.Retrieve(context.Background(), "system design and architecture review", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "architect", results[0].CandidateID)
	assert.Equal(t, MatchTypeDirect, results[0].MatchType)
	assert.Greater(t, results[0].WeightedScore, 0.0)
}

func TestRetrieveSharedCapabilitySurfacesAllOwners(t *testing.T) {
	r := newTestRetriever(t)

	results := r.Retrieve(context.Background(), "run_tests execute automated test suites", 5)
	require.GreaterOrEqual(t, len(results), 2)

	byID := make(map[string]*RetrievalResult)
	for _, res := range results {
		byID[res.CandidateID] = res
	}
	for _, id := range []string{"developer", "qa"} {
		res, ok := byID[id]
		require.True(t, ok, "expected %s in results", id)
		assert.Equal(t, MatchTypeDerived, res.MatchType, id)
		assert.GreaterOrEqual(t, res.MatchedCapabilityCount, 1, id)
	}
}

func TestRetrieveDeterministicOrdering(t *testing.T) {
	r := newTestRetriever(t)

	first := r.Retrieve(context.Background(), "run_tests execute automated test suites", 5)
	for i := 0; i < 5; i++ {
		again := r.Retrieve(context.Background(), "run_tests execute automated test suites", 5)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].CandidateID, again[j].CandidateID)
			assert.Equal(t, first[j].WeightedScore, again[j].WeightedScore)
		}
	}
}

func TestDerivedBoost(t *testing.T) {
	r := &Retriever{config: DefaultConfig()}

	assert.Equal(t, 1.0, r.derivedBoost(0))
	assert.Equal(t, 1.0, r.derivedBoost(1))
	assert.InDelta(t, 1.1, r.derivedBoost(2), 1e-9)
	assert.InDelta(t, 1.3, r.derivedBoost(4), 1e-9)
	// Boost stops growing past the cap.
	assert.InDelta(t, 1.5, r.derivedBoost(6), 1e-9)
	assert.InDelta(t, 1.5, r.derivedBoost(50), 1e-9)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.PrimaryWeight = 0.5
	require.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.RRFK = 0
	require.Error(t, bad.Validate())
}
