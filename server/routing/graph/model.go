// Package graph builds and queries the bipartite capability graph:
// one primary node per candidate, one deduplicated node per declared
// capability, and has-capability edges from primaries to capabilities.
package graph

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"

	"github.com/hrygo/agentroute/store"
)

// Match types for retrieval results.
const (
	// MatchTypeDirect means the primary node itself matched the query.
	MatchTypeDirect = "direct"
	// MatchTypeDerived means the candidate was reached by traversing
	// backward from a matched capability node.
	MatchTypeDerived = "derived"
)

// capabilityNodePrefix keeps capability node IDs out of the candidate ID
// namespace.
const capabilityNodePrefix = "cap:"

// RetrievalResult is one ranked candidate from graph retrieval.
type RetrievalResult struct {
	CandidateID string
	// Type is the node type that produced the winning contribution.
	Type string
	// RawScore is the similarity score before type weighting.
	RawScore float64
	// WeightedScore is the fused, boosted score used for ranking.
	WeightedScore float64
	MatchType     string
	// MatchedCapabilityCount is how many distinct matched capabilities
	// reached this candidate.
	MatchedCapabilityCount int
}

// Config holds graph retrieval tuning. Primaries must stay weighted above
// capabilities.
type Config struct {
	PrimaryWeight    float64
	CapabilityWeight float64
	RRFK             int
	// DerivedBoostStep is the per-extra-capability boost factor, capped at
	// DerivedBoostCap extra matches.
	DerivedBoostStep float64
	DerivedBoostCap  int
	DefaultTopK      int
}

// DefaultConfig returns default graph configuration.
func DefaultConfig() Config {
	return Config{
		PrimaryWeight:    1.5,
		CapabilityWeight: 1.0,
		RRFK:             60,
		DerivedBoostStep: 0.1,
		DerivedBoostCap:  5,
		DefaultTopK:      5,
	}
}

// Validate checks invariants that retrieval depends on.
func (c Config) Validate() error {
	if c.PrimaryWeight <= c.CapabilityWeight {
		return errors.New("primary weight must exceed capability weight")
	}
	if c.RRFK <= 0 {
		return errors.New("rrf k must be positive")
	}
	if c.DerivedBoostStep < 0 || c.DerivedBoostCap < 0 {
		return errors.New("derived boost parameters must be non-negative")
	}
	return nil
}

// Snapshot is an immutable, fully built view of the graph. It is swapped
// wholesale on rebuild; readers holding an old snapshot keep a complete,
// consistent graph.
type Snapshot struct {
	Nodes []*store.GraphNode
	Edges []*store.GraphEdge

	nodeByID map[string]*store.GraphNode
	// owners maps a capability node ID to every owning primary, sorted.
	owners  map[string][]string
	BuiltAt time.Time
}

func newSnapshot(nodes []*store.GraphNode, edges []*store.GraphEdge) *Snapshot {
	s := &Snapshot{
		Nodes:    nodes,
		Edges:    edges,
		nodeByID: make(map[string]*store.GraphNode, len(nodes)),
		owners:   make(map[string][]string),
		BuiltAt:  time.Now(),
	}
	for _, n := range nodes {
		s.nodeByID[n.ID] = n
	}
	for _, e := range edges {
		s.owners[e.TargetID] = append(s.owners[e.TargetID], e.SourceID)
	}
	for _, ids := range s.owners {
		sort.Strings(ids)
	}
	return s
}

// Node returns the node with the given ID, or nil.
func (s *Snapshot) Node(id string) *store.GraphNode {
	return s.nodeByID[id]
}

// Owners returns every primary connected to the given capability node.
func (s *Snapshot) Owners(capabilityNodeID string) []string {
	return s.owners[capabilityNodeID]
}

// Validate enforces the bipartite invariant on every edge: the source must
// be an existing primary and the target an existing capability.
func (s *Snapshot) Validate() error {
	for _, e := range s.Edges {
		src, ok := s.nodeByID[e.SourceID]
		if !ok {
			return errors.Errorf("edge source %q does not exist", e.SourceID)
		}
		dst, ok := s.nodeByID[e.TargetID]
		if !ok {
			return errors.Errorf("edge target %q does not exist", e.TargetID)
		}
		if src.Type != store.GraphNodeTypePrimary {
			return errors.Errorf("edge %s->%s: source is %s, want primary", e.SourceID, e.TargetID, src.Type)
		}
		if dst.Type != store.GraphNodeTypeCapability {
			return errors.Errorf("edge %s->%s: target is %s, want capability", e.SourceID, e.TargetID, dst.Type)
		}
	}
	return nil
}

// NormalizeCapability resolves naming variants of a capability to one
// canonical ID: lowercase, alphanumeric runs joined by underscores.
// "Run Tests", "run-tests" and "run_tests" all normalize to "run_tests".
func NormalizeCapability(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// CapabilityNodeID returns the node ID for a canonical capability.
func CapabilityNodeID(canonical string) string {
	return capabilityNodePrefix + canonical
}
