package domain

// ThresholdBand maps a minimum score to a catalogue-specific severity
// label. Bands are declared highest-first; SeverityFor walks them in
// order and returns the first whose Min the score reaches.
type ThresholdBand struct {
	Min   int    `json:"min"`
	Label string `json:"label"`
}

// DefaultThresholds is the severity table catalogues inherit unless they
// override it: >=80 CRITICAL, >=60 HIGH, >=40 MEDIUM, >=20 LOW, else INFO.
func DefaultThresholds() []ThresholdBand {
	return []ThresholdBand{
		{Min: 80, Label: string(SeverityCritical)},
		{Min: 60, Label: string(SeverityHigh)},
		{Min: 40, Label: string(SeverityMedium)},
		{Min: 20, Label: string(SeverityLow)},
		{Min: 0, Label: string(SeverityInfo)},
	}
}

// Catalogue is an immutable ordered set of signatures plus the scoring
// policy applied to their matches. Catalogues are built once at startup
// and shared read-only by all evaluations; reload swaps whole values.
type Catalogue struct {
	ID      string `json:"id"`
	Version string `json:"version"`

	// Signatures in declaration order. Order breaks ties within
	// mutually exclusive groups.
	Signatures []Signature `json:"signatures"`

	// Aggregates run against keyed batches, not single records.
	Aggregates []AggregateSignature `json:"aggregates,omitempty"`

	// Thresholds is the score-to-severity table, highest band first.
	Thresholds []ThresholdBand `json:"thresholds"`

	// Confidence parameters: start at BaseConfidence, add
	// CategoryBonus per distinct firing category, never exceed
	// ConfidenceCap.
	BaseConfidence int `json:"baseConfidence"`
	CategoryBonus  int `json:"categoryBonus"`
	ConfidenceCap  int `json:"confidenceCap"`

	// MaxRecommendations caps the deduplicated remediation list.
	MaxRecommendations int `json:"maxRecommendations"`

	// AlertFloor is the minimum score at which a verdict is published
	// as an alert event.
	AlertFloor int `json:"alertFloor"`
}

// SeverityFor maps a clamped score through the threshold table. It is
// the only path that produces a verdict severity.
func (c *Catalogue) SeverityFor(score int) string {
	for _, band := range c.Thresholds {
		if score >= band.Min {
			return band.Label
		}
	}
	// Table always ends in a Min: 0 band; this is unreachable for
	// clamped scores.
	return string(SeverityInfo)
}

// Confidence computes the verdict confidence for the given number of
// distinct contributing categories. Monotonically non-decreasing.
func (c *Catalogue) Confidence(distinctCategories int) int {
	base := c.BaseConfidence
	if base <= 0 {
		base = 50
	}
	bonus := c.CategoryBonus
	if bonus <= 0 {
		bonus = 12
	}
	cap := c.ConfidenceCap
	if cap <= 0 {
		cap = 98
	}
	conf := base + bonus*distinctCategories
	if conf > cap {
		conf = cap
	}
	return conf
}

// RecommendationCap returns the effective recommendation limit.
func (c *Catalogue) RecommendationCap() int {
	if c.MaxRecommendations <= 0 {
		return 10
	}
	return c.MaxRecommendations
}
