package domain

// Severity is the ordered severity scale used by signatures.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"

	// SeverityNone is only used for the synthetic "no indicators" entry.
	SeverityNone Severity = "NONE"
)

// Rank returns a numeric rank for ordering (higher = more severe).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string { return string(s) }

// Evidence is the per-match data a signature captures when it fires.
// Fields feed the template renderer and the explainer.
type Evidence struct {
	Summary string            `json:"summary"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Signature is a named, weighted predicate over a record.
/// Predicates must be pure: no process state, time, or randomness.
type Signature struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`

	// Weight is the non-negative score contribution when the signature
	// fires. Catalogue weights are chosen so the attainable sum exceeds
	// the clamp ceiling; saturation is intentional.
	Weight int `json:"weight"`

	// Group marks mutually exclusive signatures. Within a group only the
	// first-declared firing contributes weight; later ones are suppressed.
	Group string `json:"group,omitempty"`

	// Applies is a cheap pre-filter. Nil means always applicable.
	Applies func(Record) bool `json:"-"`

	// Evaluate runs only if Applies; it fires at most once per record.
	Evaluate func(Record) (Evidence, bool) `json:"-"`

	// Description and Remediation are renderer templates; they may
	// reference evidence fields as {name}.
	Description string `json:"description"`
	Remediation string `json:"remediation,omitempty"`
}

// AggregateSignature evaluates over a batch of records sharing a key
// (e.g. actor id) and contributes to a group-level verdict only.
type AggregateSignature struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Weight   int      `json:"weight"`
	Group    string   `json:"group,omitempty"`

	Evaluate func(key string, records []Record) (Evidence, bool) `json:"-"`

	Description string `json:"description"`
	Remediation string `json:"remediation,omitempty"`
}

// SignatureConfig is an operator-defined signature whose predicate is a
// CEL expression over the record map. Configs are persisted and compiled
// into catalogue extensions at load or reload time.
type SignatureConfig struct {
	ID          string   `json:"id"`
	CatalogueID string   `json:"catalogueId"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Weight      int      `json:"weight"`
	Group       string   `json:"group,omitempty"`

	// Expression must evaluate to bool over the "record" variable.
	Expression string `json:"expression"`

	Description string `json:"description"`
	Remediation string `json:"remediation,omitempty"`
	Version     string `json:"version"`
	Enabled     bool   `json:"enabled"`
}
