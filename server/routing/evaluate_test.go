package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatePerfectRanking(t *testing.T) {
	report := Evaluate([]*EvalCase{
		{
			Ranking:  []*ScoredCandidate{{ID: "qa", Score: 0.9}},
			Relevant: []string{"qa"},
		},
	}, 0)

	assert.Equal(t, 1, report.Cases)
	assert.Equal(t, float64(1), report.MRR)
	assert.Equal(t, float64(1), report.Precision)
	assert.Equal(t, float64(1), report.Recall)
	assert.Equal(t, float64(1), report.F1)
}

func TestEvaluateReciprocalRank(t *testing.T) {
	report := Evaluate([]*EvalCase{
		{
			Ranking: []*ScoredCandidate{
				{ID: "developer", Score: 0.8},
				{ID: "architect", Score: 0.6},
				{ID: "qa", Score: 0.4},
			},
			Relevant: []string{"qa"},
		},
	}, 0)

	assert.InDelta(t, 1.0/3, report.MRR, 1e-9)
	assert.InDelta(t, 1.0/3, report.Precision, 1e-9)
	assert.Equal(t, float64(1), report.Recall)
}

func TestEvaluateCutoff(t *testing.T) {
	cases := []*EvalCase{
		{
			Ranking: []*ScoredCandidate{
				{ID: "developer", Score: 0.8},
				{ID: "architect", Score: 0.6},
				{ID: "qa", Score: 0.4},
			},
			Relevant: []string{"qa"},
		},
	}

	// The relevant candidate sits below the cutoff.
	report := Evaluate(cases, 2)
	assert.Equal(t, float64(0), report.MRR)
	assert.Equal(t, float64(0), report.Recall)
}

func TestEvaluateSkipsUnlabeledCases(t *testing.T) {
	report := Evaluate([]*EvalCase{
		{Ranking: []*ScoredCandidate{{ID: "qa", Score: 0.9}}},
		{Ranking: []*ScoredCandidate{{ID: "qa", Score: 0.9}}, Relevant: []string{"qa"}},
	}, 0)

	assert.Equal(t, 1, report.Cases)
	assert.Equal(t, float64(1), report.MRR)
}

func TestEvaluateRouterDecisions(t *testing.T) {
	f := newTestRouter(t, nil)
	ctx := context.Background()

	// Labeled queries routed through the full pipeline; the decisions'
	// rankings feed the metrics directly.
	labeled := []struct {
		query    string
		relevant []string
	}{
		{"implement the new feature", []string{"developer"}},
		{"verify the release checks for the feature work", []string{"qa"}},
		{"system design and architecture review", []string{"architect"}},
	}

	var cases []*EvalCase
	for _, l := range labeled {
		decision, err := f.router.Route(ctx, &Input{Query: l.query})
		require.NoError(t, err)
		require.NotEmpty(t, decision.Ranking, l.query)
		cases = append(cases, &EvalCase{Ranking: decision.Ranking, Relevant: l.relevant})
	}

	report := Evaluate(cases, 1)
	assert.Equal(t, 3, report.Cases)
	assert.Equal(t, float64(1), report.MRR)
	assert.Equal(t, float64(1), report.Recall)
	assert.Equal(t, float64(1), report.F1)
}

func TestEvaluateEmpty(t *testing.T) {
	report := Evaluate(nil, 5)
	assert.Equal(t, 0, report.Cases)
	assert.Equal(t, float64(0), report.MRR)
}
