package graph

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hrygo/agentroute/plugin/ai"
	"github.com/hrygo/agentroute/store"
)

// Retriever answers queries against the current graph snapshot: one joint
// similarity pass over all nodes, weighted Reciprocal Rank Fusion, then a
// backward traversal from matched capabilities to their owners.
type Retriever struct {
	config   Config
	strategy ai.Strategy
	provider *Provider
	logger   *slog.Logger
}

// NewRetriever creates a new Retriever.
func NewRetriever(config Config, strategy ai.Strategy, provider *Provider, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		config:   config,
		strategy: strategy,
		provider: provider,
		logger:   logger,
	}
}

// scoredNode pairs a node with its similarity score in one ranking pass.
type scoredNode struct {
	node *store.GraphNode
	raw  float64
	// fused is the weighted RRF score accumulated across passes.
	fused float64
}

// Retrieve returns ranked candidates for the query. A missing or empty
// snapshot yields no results, never an error; the caller treats an empty
// graph signal as one more degraded input.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []*RetrievalResult {
	snapshot := r.provider.Current()
	if snapshot == nil || len(snapshot.Nodes) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = r.config.DefaultTopK
	}

	hits := r.fuseRankingPasses(ctx, snapshot, query)
	if len(hits) > topK {
		hits = hits[:topK]
	}

	return r.traverse(snapshot, hits)
}

// fuseRankingPasses scores every node (both types) against the query and
// fuses the ranking passes with weighted RRF:
//
//	score(n) = Σ_passes weight(type(n)) / (K + rank_in_pass(n))
func (r *Retriever) fuseRankingPasses(ctx context.Context, snapshot *Snapshot, query string) []*scoredNode {
	passes := r.rankingPasses(ctx, snapshot, query)

	fused := make(map[string]*scoredNode)
	for _, pass := range passes {
		for rank, sn := range pass {
			entry, ok := fused[sn.node.ID]
			if !ok {
				entry = &scoredNode{node: sn.node, raw: sn.raw}
				fused[sn.node.ID] = entry
			}
			if sn.raw > entry.raw {
				entry.raw = sn.raw
			}
			entry.fused += r.typeWeight(sn.node.Type) / float64(r.config.RRFK+rank+1)
		}
	}

	ranked := make([]*scoredNode, 0, len(fused))
	for _, sn := range fused {
		if sn.raw > 0 {
			ranked = append(ranked, sn)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].fused != ranked[j].fused {
			return ranked[i].fused > ranked[j].fused
		}
		return ranked[i].node.ID < ranked[j].node.ID
	})
	return ranked
}

// rankingPasses produces the joint lexical pass and, when node embeddings
// and an embedding-capable strategy are available, a second embedding
// pass. Each pass is sorted by raw score with ID tie-break so ranks are
// deterministic.
func (r *Retriever) rankingPasses(ctx context.Context, snapshot *Snapshot, query string) [][]*scoredNode {
	lexical := make([]*scoredNode, 0, len(snapshot.Nodes))
	for _, node := range snapshot.Nodes {
		lexical = append(lexical, &scoredNode{
			node: node,
			raw:  r.strategy.Score(query, node.Label),
		})
	}
	sortPass(lexical)
	passes := [][]*scoredNode{lexical}

	if embedding := r.embeddingPass(ctx, snapshot, query); len(embedding) > 0 {
		passes = append(passes, embedding)
	}
	return passes
}

// embeddingPass ranks nodes by cosine similarity of stored embeddings.
// It only runs when the strategy can vectorize the query and the snapshot
// carries node embeddings.
func (r *Retriever) embeddingPass(ctx context.Context, snapshot *Snapshot, query string) []*scoredNode {
	vectorizer, ok := r.strategy.(ai.Vectorizer)
	if !ok {
		return nil
	}
	queryVector, err := vectorizer.Vectorize(ctx, query)
	if err != nil || len(queryVector) == 0 {
		if err != nil {
			r.logger.Debug("query vectorization failed, lexical pass only", "error", err)
		}
		return nil
	}

	var pass []*scoredNode
	for _, node := range snapshot.Nodes {
		if len(node.Embedding) == 0 {
			continue
		}
		pass = append(pass, &scoredNode{
			node: node,
			raw:  (ai.CosineSimilarity(queryVector, node.Embedding) + 1) / 2,
		})
	}
	sortPass(pass)
	return pass
}

func sortPass(pass []*scoredNode) {
	sort.Slice(pass, func(i, j int) bool {
		if pass[i].raw != pass[j].raw {
			return pass[i].raw > pass[j].raw
		}
		return pass[i].node.ID < pass[j].node.ID
	})
}

func (r *Retriever) typeWeight(nodeType string) float64 {
	if nodeType == store.GraphNodeTypePrimary {
		return r.config.PrimaryWeight
	}
	return r.config.CapabilityWeight
}

// candidateHit accumulates direct and derived contributions for one
// candidate before merging.
type candidateHit struct {
	direct       *scoredNode
	derivedBase  float64
	derivedRaw   float64
	matchedCount int
}

// traverse converts top node hits into candidate results. Capability hits
// are followed backward to every owning primary; a candidate reached via
// multiple matched capabilities is boosted, not double-counted.
func (r *Retriever) traverse(snapshot *Snapshot, hits []*scoredNode) []*RetrievalResult {
	byCandidate := make(map[string]*candidateHit)
	get := func(id string) *candidateHit {
		h, ok := byCandidate[id]
		if !ok {
			h = &candidateHit{}
			byCandidate[id] = h
		}
		return h
	}

	for _, hit := range hits {
		switch hit.node.Type {
		case store.GraphNodeTypePrimary:
			h := get(hit.node.ID)
			if h.direct == nil || hit.fused > h.direct.fused {
				h.direct = hit
			}
		case store.GraphNodeTypeCapability:
			for _, owner := range snapshot.Owners(hit.node.ID) {
				h := get(owner)
				h.matchedCount++
				if hit.fused > h.derivedBase {
					h.derivedBase = hit.fused
					h.derivedRaw = hit.raw
				}
			}
		}
	}

	results := make([]*RetrievalResult, 0, len(byCandidate))
	for id, h := range byCandidate {
		derived := h.derivedBase * r.derivedBoost(h.matchedCount)

		result := &RetrievalResult{
			CandidateID:            id,
			MatchedCapabilityCount: h.matchedCount,
		}
		if h.direct != nil && h.direct.fused >= derived {
			result.Type = store.GraphNodeTypePrimary
			result.MatchType = MatchTypeDirect
			result.RawScore = h.direct.raw
			result.WeightedScore = h.direct.fused
		} else {
			result.Type = store.GraphNodeTypeCapability
			result.MatchType = MatchTypeDerived
			result.RawScore = h.derivedRaw
			result.WeightedScore = derived
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].WeightedScore != results[j].WeightedScore {
			return results[i].WeightedScore > results[j].WeightedScore
		}
		return results[i].CandidateID < results[j].CandidateID
	})
	return results
}

// derivedBoost returns 1 + step*min(n-1, cap), the multi-capability boost
// with its runaway cap.
func (r *Retriever) derivedBoost(matchedCount int) float64 {
	if matchedCount <= 1 {
		return 1
	}
	extra := matchedCount - 1
	if extra > r.config.DerivedBoostCap {
		extra = r.config.DerivedBoostCap
	}
	return 1 + r.config.DerivedBoostStep*float64(extra)
}
