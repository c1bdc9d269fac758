package routing

import (
	"sort"
)

// signalBatch is one named signal's scores per candidate, already filtered
// to positive values.
type signalBatch struct {
	weight float64
	scores map[string]float64
}

// Combiner deterministically fuses the graph and knowledge-base signals
// into one ranking. Each batch is min-max normalized before weighting, so
// the two signals contribute on comparable scales regardless of their raw
// score distributions.
type Combiner struct{}

// NewCombiner creates a new Combiner.
func NewCombiner() *Combiner {
	return &Combiner{}
}

// Combine fuses the two score maps with the given weights. A candidate
// absent from one batch contributes zero for that side. Ties break by the
// static confidence ranking, then by candidate ID, so identical inputs
// always produce identical output.
func (c *Combiner) Combine(graphScores, kbaScores map[string]float64, weights Weights, static *StaticMatch) []*ScoredCandidate {
	batches := []signalBatch{
		{weight: weights.Graph, scores: normalizeBatch(graphScores)},
		{weight: weights.KBA, scores: normalizeBatch(kbaScores)},
	}

	combined := make(map[string]float64)
	for _, batch := range batches {
		for id, score := range batch.scores {
			combined[id] += batch.weight * score
		}
	}

	staticRank := staticPositions(static)
	ranking := make([]*ScoredCandidate, 0, len(combined))
	for id, score := range combined {
		ranking = append(ranking, &ScoredCandidate{ID: id, Score: score})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		ri, iKnown := staticRank[ranking[i].ID]
		rj, jKnown := staticRank[ranking[j].ID]
		if iKnown && jKnown && ri != rj {
			return ri < rj
		}
		if iKnown != jKnown {
			return iKnown
		}
		return ranking[i].ID < ranking[j].ID
	})
	return ranking
}

// normalizeBatch min-max normalizes positive scores into [0, 1]. When all
// scores are equal, every present candidate maps to 1: presence in a
// signal is itself information.
func normalizeBatch(scores map[string]float64) map[string]float64 {
	normalized := make(map[string]float64, len(scores))

	var minScore, maxScore float64
	first := true
	for _, s := range scores {
		if s <= 0 {
			continue
		}
		if first || s < minScore {
			minScore = s
		}
		if first || s > maxScore {
			maxScore = s
		}
		first = false
	}
	if first {
		return normalized
	}

	for id, s := range scores {
		if s <= 0 {
			continue
		}
		if maxScore == minScore {
			normalized[id] = 1
		} else {
			normalized[id] = (s - minScore) / (maxScore - minScore)
		}
	}
	return normalized
}

// staticPositions maps candidate IDs to their static ranking position.
func staticPositions(static *StaticMatch) map[string]int {
	positions := make(map[string]int)
	if static == nil {
		return positions
	}
	for i, sc := range static.Ranking {
		positions[sc.ID] = i
	}
	return positions
}
