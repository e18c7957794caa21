package engine

import (
	"github.com/kestrelsec/kestrel/internal/domain"
)

// BuildExplanation packages an evaluation trace for retention. The
// explainer is a view over the trace: signature id, category, weight
// contributed, suppression flag, and captured evidence, in evaluation
// order. It contains no analysis logic.
func BuildExplanation(evaluationID string, verdict *domain.Verdict, traces []domain.MatchTrace) *domain.Explanation {
	matches := make([]domain.MatchTrace, len(traces))
	copy(matches, traces)

	return &domain.Explanation{
		EvaluationID:     evaluationID,
		RecordID:         verdict.ID,
		CatalogueID:      verdict.CatalogueID,
		CatalogueVersion: verdict.CatalogueVersion,
		Matches:          matches,
		Partial:          verdict.Partial,
	}
}

// Contributions returns the (signature id, weight) pairs that produced
// the verdict's raw score, i.e. the non-suppressed matches in order.
func Contributions(exp *domain.Explanation) []domain.MatchTrace {
	out := make([]domain.MatchTrace, 0, len(exp.Matches))
	for _, m := range exp.Matches {
		if !m.Suppressed {
			out = append(out, m)
		}
	}
	return out
}
