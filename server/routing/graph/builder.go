package graph

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/hrygo/agentroute/plugin/ai"
	"github.com/hrygo/agentroute/server/routing/registry"
	"github.com/hrygo/agentroute/store"
)

// Builder constructs graph snapshots from the candidate and capability
// registries.
type Builder struct {
	candidates   registry.CandidateRegistry
	capabilities registry.CapabilityRegistry
	// vectorizer optionally fills node embeddings; nil for lexical-only
	// deployments.
	vectorizer ai.Vectorizer
	logger     *slog.Logger
}

// NewBuilder creates a new Builder.
func NewBuilder(candidates registry.CandidateRegistry, capabilities registry.CapabilityRegistry, vectorizer ai.Vectorizer, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		candidates:   candidates,
		capabilities: capabilities,
		vectorizer:   vectorizer,
		logger:       logger,
	}
}

// Build constructs a complete snapshot. Candidates with missing data are
// skipped with a warning; only a registry failure or a bipartite violation
// fails the build.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	candidates, err := b.candidates.ListCandidates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list candidates")
	}

	aliasMap, capabilityLabels := b.capabilityIndex(ctx)

	var nodes []*store.GraphNode
	var edges []*store.GraphEdge
	capabilityNodes := make(map[string]bool)

	sorted := append([]*registry.Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, c := range sorted {
		if c.ID == "" || c.Description == "" {
			b.logger.Warn("skipping candidate with missing data", "candidate", c.ID)
			continue
		}

		nodes = append(nodes, &store.GraphNode{
			ID:        c.ID,
			Type:      store.GraphNodeTypePrimary,
			Label:     c.Description,
			Embedding: b.embed(ctx, c.Description),
		})

		seenEdges := make(map[string]bool)
		for _, declared := range c.Capabilities {
			canonical := canonicalCapability(declared, aliasMap)
			if canonical == "" {
				b.logger.Warn("skipping empty capability declaration", "candidate", c.ID)
				continue
			}
			nodeID := CapabilityNodeID(canonical)

			if !capabilityNodes[nodeID] {
				capabilityNodes[nodeID] = true
				label := canonical
				if desc := capabilityLabels[canonical]; desc != "" {
					label = canonical + " " + desc
				}
				nodes = append(nodes, &store.GraphNode{
					ID:        nodeID,
					Type:      store.GraphNodeTypeCapability,
					Label:     label,
					Embedding: b.embed(ctx, label),
				})
			}

			if seenEdges[nodeID] {
				continue
			}
			seenEdges[nodeID] = true
			edges = append(edges, &store.GraphEdge{
				SourceID: c.ID,
				TargetID: nodeID,
				Type:     store.GraphEdgeTypeHasCapability,
			})
		}
	}

	snapshot := newSnapshot(nodes, edges)
	if err := snapshot.Validate(); err != nil {
		return nil, errors.Wrap(err, "bipartite validation failed")
	}
	return snapshot, nil
}

// capabilityIndex builds the alias→canonical map and the canonical→label
// map from the capability registry. A missing registry is not fatal;
// normalization alone still deduplicates naming variants.
func (b *Builder) capabilityIndex(ctx context.Context) (map[string]string, map[string]string) {
	aliasMap := make(map[string]string)
	labels := make(map[string]string)
	if b.capabilities == nil {
		return aliasMap, labels
	}

	capabilities, err := b.capabilities.ListCapabilities(ctx)
	if err != nil {
		b.logger.Warn("capability registry unavailable, using bare normalization", "error", err)
		return aliasMap, labels
	}

	for _, cap := range capabilities {
		canonical := NormalizeCapability(cap.ID)
		if canonical == "" {
			continue
		}
		aliasMap[canonical] = canonical
		labels[canonical] = cap.Description
		for _, alias := range cap.Aliases {
			if normalized := NormalizeCapability(alias); normalized != "" {
				aliasMap[normalized] = canonical
			}
		}
	}
	return aliasMap, labels
}

func canonicalCapability(declared string, aliasMap map[string]string) string {
	normalized := NormalizeCapability(declared)
	if canonical, ok := aliasMap[normalized]; ok {
		return canonical
	}
	return normalized
}

func (b *Builder) embed(ctx context.Context, text string) []float32 {
	if b.vectorizer == nil {
		return nil
	}
	v, err := b.vectorizer.Vectorize(ctx, text)
	if err != nil {
		b.logger.Debug("node embedding failed", "error", err)
		return nil
	}
	return v
}

// Provider hands out the current snapshot and performs build-then-swap
// rebuilds. Readers during a rebuild keep seeing the previous complete
// snapshot until the swap.
type Provider struct {
	builder *Builder
	store   *store.Store
	logger  *slog.Logger

	current atomic.Pointer[Snapshot]
}

// NewProvider creates a snapshot provider. store may be nil to disable
// persistence.
func NewProvider(builder *Builder, st *store.Store, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		builder: builder,
		store:   st,
		logger:  logger,
	}
}

// Current returns the active snapshot, or nil before the first build.
func (p *Provider) Current() *Snapshot {
	return p.current.Load()
}

// Rebuild builds a fresh snapshot, persists it, and swaps it in.
func (p *Provider) Rebuild(ctx context.Context) (*Snapshot, error) {
	snapshot, err := p.builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	if p.store != nil {
		if err := p.store.ReplaceGraphSnapshot(ctx, snapshot.Nodes, snapshot.Edges); err != nil {
			// Persistence is best-effort; the in-memory snapshot is still valid.
			p.logger.Warn("failed to persist graph snapshot", "error", err)
		}
	}

	p.current.Store(snapshot)
	p.logger.Info("graph snapshot rebuilt",
		"nodes", len(snapshot.Nodes),
		"edges", len(snapshot.Edges),
	)
	return snapshot, nil
}

// LoadPersisted hydrates the snapshot from the store. An unreadable or
// invalid persisted snapshot is discarded; the next Rebuild recreates it.
func (p *Provider) LoadPersisted(ctx context.Context) error {
	if p.store == nil {
		return nil
	}

	nodes, edges, err := p.store.GetGraphSnapshot(ctx)
	if err != nil {
		p.logger.Warn("failed to load persisted graph snapshot, starting empty", "error", err)
		return nil
	}
	if len(nodes) == 0 {
		return nil
	}

	snapshot := newSnapshot(nodes, edges)
	if err := snapshot.Validate(); err != nil {
		p.logger.Warn("persisted graph snapshot is invalid, discarding", "error", err)
		return nil
	}

	p.current.Store(snapshot)
	return nil
}
