package routing

// Evaluation helpers for offline routing quality measurement. A labeled
// case pairs a ranked decision with the candidate IDs that would have been
// acceptable; the report aggregates standard ranking metrics over a set of
// such cases.

// EvalCase is one labeled routing outcome.
type EvalCase struct {
	// Ranking is the decision's ranked candidate list, best first.
	Ranking []*ScoredCandidate
	// Relevant are the acceptable candidate IDs for the query.
	Relevant []string
}

// EvalReport aggregates ranking quality over a case set.
type EvalReport struct {
	Cases int `json:"cases"`
	// MRR is the mean reciprocal rank of the first relevant candidate.
	MRR float64 `json:"mrr"`
	// Precision and Recall are averaged at the evaluation cutoff.
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Evaluate computes ranking metrics at the given cutoff. Cases with no
// relevant labels are skipped; a zero cutoff means the full ranking.
func Evaluate(cases []*EvalCase, cutoff int) *EvalReport {
	report := &EvalReport{}

	var sumRR, sumPrecision, sumRecall float64
	for _, c := range cases {
		if len(c.Relevant) == 0 {
			continue
		}
		report.Cases++

		relevant := make(map[string]bool, len(c.Relevant))
		for _, id := range c.Relevant {
			relevant[id] = true
		}

		ranking := c.Ranking
		if cutoff > 0 && len(ranking) > cutoff {
			ranking = ranking[:cutoff]
		}

		retrieved := 0
		firstRank := 0
		for i, sc := range ranking {
			if relevant[sc.ID] {
				retrieved++
				if firstRank == 0 {
					firstRank = i + 1
				}
			}
		}

		if firstRank > 0 {
			sumRR += 1 / float64(firstRank)
		}
		if len(ranking) > 0 {
			sumPrecision += float64(retrieved) / float64(len(ranking))
		}
		sumRecall += float64(retrieved) / float64(len(relevant))
	}

	if report.Cases == 0 {
		return report
	}
	n := float64(report.Cases)
	report.MRR = sumRR / n
	report.Precision = sumPrecision / n
	report.Recall = sumRecall / n
	if report.Precision+report.Recall > 0 {
		report.F1 = 2 * report.Precision * report.Recall / (report.Precision + report.Recall)
	}
	return report
}
