package routing

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/agentroute/plugin/ai"
	"github.com/hrygo/agentroute/server/routing/registry"
)

// StaticMatch is the outcome of static description matching.
type StaticMatch struct {
	// Ranking is every candidate scored against the query, best first.
	Ranking []*ScoredCandidate
	// Confidence is the margin confidence of the top candidate:
	// max(0, (top - second) / top). A single candidate scores 1.
	Confidence float64
}

// Best returns the top candidate ID, or empty when nothing scored.
func (m *StaticMatch) Best() string {
	if len(m.Ranking) == 0 || m.Ranking[0].Score == 0 {
		return ""
	}
	return m.Ranking[0].ID
}

// Matcher scores candidate descriptions against queries. It is the cheap,
// always-available ranking stage.
type Matcher struct {
	candidates registry.CandidateRegistry
	strategy   ai.Strategy
}

// NewMatcher creates a static description matcher.
func NewMatcher(candidates registry.CandidateRegistry, strategy ai.Strategy) *Matcher {
	return &Matcher{candidates: candidates, strategy: strategy}
}

// Match ranks all candidates by description similarity. Ordering is
// deterministic: score descending, candidate ID ascending on ties.
func (m *Matcher) Match(ctx context.Context, query string) (*StaticMatch, error) {
	candidates, err := m.candidates.ListCandidates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list candidates")
	}

	ranking := make([]*ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		ranking = append(ranking, &ScoredCandidate{
			ID:    c.ID,
			Score: m.strategy.Score(query, c.Description),
		})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		return ranking[i].ID < ranking[j].ID
	})

	return &StaticMatch{
		Ranking:    ranking,
		Confidence: marginConfidence(ranking),
	}, nil
}

// marginConfidence measures how decisively the top candidate wins. A zero
// or missing top score means no confidence at all.
func marginConfidence(ranking []*ScoredCandidate) float64 {
	if len(ranking) == 0 || ranking[0].Score <= 0 {
		return 0
	}
	if len(ranking) == 1 {
		return 1
	}
	top, second := ranking[0].Score, ranking[1].Score
	margin := (top - second) / top
	if margin < 0 {
		return 0
	}
	return margin
}
