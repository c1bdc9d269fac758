package store

import (
	"context"
)

// Node types in the capability graph. Edges run strictly from primary
// nodes (candidates) to capability nodes.
const (
	GraphNodeTypePrimary    = "primary"
	GraphNodeTypeCapability = "capability"
)

// GraphEdgeTypeHasCapability is the only edge type in the bipartite graph.
const GraphEdgeTypeHasCapability = "has_capability"

// GraphNode is a persisted node of the capability graph snapshot.
type GraphNode struct {
	ID    string
	Type  string
	Label string
	// Embedding is optional; empty when the similarity strategy is lexical.
	Embedding []float32
}

// GraphEdge is a persisted primary→capability edge.
type GraphEdge struct {
	SourceID string
	TargetID string
	Type     string
}

func (s *Store) ReplaceGraphSnapshot(ctx context.Context, nodes []*GraphNode, edges []*GraphEdge) error {
	return s.driver.ReplaceGraphSnapshot(ctx, nodes, edges)
}

func (s *Store) GetGraphSnapshot(ctx context.Context) ([]*GraphNode, []*GraphEdge, error) {
	return s.driver.GetGraphSnapshot(ctx)
}
