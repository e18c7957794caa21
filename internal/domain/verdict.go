package domain

// Indicator is one rendered finding in a verdict.
type Indicator struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Verdict is the deterministic output of one evaluation. For a fixed
// record and catalogue version the verdict is bitwise identical across
// runs: nothing in it comes from the clock or randomness.
type Verdict struct {
	// ID echoes the record id; it is empty for records without one.
	ID string `json:"id"`

	// RawScore is the unclamped weight sum; Score is clamped to [0,100].
	RawScore int `json:"rawScore"`
	Score    int `json:"score"`

	Severity   string `json:"severity"`
	Confidence int    `json:"confidence"`

	Indicators      []Indicator `json:"indicators"`
	Recommendations []string    `json:"recommendations"`

	// Partial is true iff a signature predicate panicked and was skipped.
	Partial bool `json:"partial,omitempty"`

	CatalogueID      string `json:"catalogueId"`
	CatalogueVersion string `json:"catalogue_version"`
}

// MatchTrace records one signature firing for the explainer, including
// matches whose weight was discarded by group suppression.
type MatchTrace struct {
	SignatureID string   `json:"signatureId"`
	Category    string   `json:"category"`
	Weight      int      `json:"weight"`
	Suppressed  bool     `json:"suppressed"`
	Evidence    Evidence `json:"evidence"`
}

// Explanation is the stored per-evaluation breakdown served by the
// explain endpoint. It is a view over the evaluation trace and holds no
// analysis logic of its own.
type Explanation struct {
	EvaluationID     string       `json:"evaluationId"`
	RecordID         string       `json:"recordId,omitempty"`
	CatalogueID      string       `json:"catalogueId"`
	CatalogueVersion string       `json:"catalogueVersion"`
	Matches          []MatchTrace `json:"matches"`
	Partial          bool         `json:"partial,omitempty"`
}

// ContributedWeight sums the non-suppressed trace weights; it equals the
// verdict's raw score by construction.
func (e *Explanation) ContributedWeight() int {
	total := 0
	for _, m := range e.Matches {
		if !m.Suppressed {
			total += m.Weight
		}
	}
	return total
}

// GroupVerdict is the result of an aggregate (batch) evaluation keyed by
// a grouping field such as actor id.
type GroupVerdict struct {
	Key     string  `json:"key"`
	Verdict Verdict `json:"verdict"`
	Records int     `json:"records"`
}
