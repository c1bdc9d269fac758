// Package routing implements the decision pipeline that maps a query to
// the handler best suited to serve it: semantic cache, static description
// matching, knowledge-base probing, graph retrieval, and deterministic
// combination of the collected signals.
package routing

import (
	"github.com/lithammer/shortuuid/v4"
)

// Decision methods, in roughly the order the pipeline can produce them.
const (
	// MethodCached means a hard cache hit answered the query.
	MethodCached = "cached"
	// MethodStatic means static description matching was confident enough
	// on its own.
	MethodStatic = "static"
	// MethodProbed means only the knowledge-base probe produced signal.
	MethodProbed = "probed"
	// MethodGraph means only graph retrieval produced signal.
	MethodGraph = "graph"
	// MethodCombined means probe and graph signals were fused.
	MethodCombined = "combined"
	// MethodNone means no stage produced any signal; the query is
	// answerable by nobody.
	MethodNone = "none"
)

// ScoredCandidate is one ranked candidate in a decision.
type ScoredCandidate struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Decision is the outcome of routing one query.
type Decision struct {
	// ID identifies the decision in logs and audits.
	ID string `json:"id"`
	// SelectedCandidate is empty when Method is none.
	SelectedCandidate string  `json:"selectedCandidate"`
	Confidence        float64 `json:"confidence"`
	Method            string  `json:"method"`
	// Ranking is the full ranked candidate list behind the selection.
	Ranking []*ScoredCandidate `json:"ranking,omitempty"`
	// DurationMs is the wall time the decision took.
	DurationMs int64 `json:"durationMs"`
	CreatedTs  int64 `json:"createdTs"`
}

// NewDecisionID returns a short unique decision identifier.
func NewDecisionID() string {
	return shortuuid.New()
}

// Input is one routing request.
type Input struct {
	Query string `json:"query"`
	// TopK bounds the ranking length; zero uses the configured default.
	TopK int `json:"topK,omitempty"`
	// Weights overrides the combiner weights for this request; nil uses
	// the configured defaults.
	Weights *Weights `json:"weights,omitempty"`
}

// Weights are the combiner weights for the two deep signals. They must sum
// to a positive value.
type Weights struct {
	Graph float64 `json:"graph"`
	KBA   float64 `json:"kba"`
}
