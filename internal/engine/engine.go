// Package engine implements the weighted signature scoring engine.
// Evaluation is a pure function over (catalogue, record): signatures run
// in declaration order, matched weights are summed, the score is clamped
// to [0,100] and mapped through the catalogue threshold table.
package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kestrelsec/kestrel/internal/domain"
)

var tracer = otel.Tracer("kestrel-engine")

// Options carries per-evaluation overrides.
type Options struct {
	// Thresholds overrides the catalogue severity table.
	Thresholds []domain.ThresholdBand

	// MaxReported caps the indicator list; 0 means no cap.
	MaxReported int
}

// Engine evaluates catalogues against normalized records. It holds no
// per-request state; one instance serves all concurrent evaluations.
type Engine struct{}

// New creates a scoring engine.
func New() *Engine {
	return &Engine{}
}

// Evaluate runs every signature of the catalogue against the record and
// returns the verdict plus the raw match traces for the explainer.
//
// A panicking signature is skipped, logged at WARN, and flags the
// verdict partial; signatures declared before it keep their
// contribution. A nil catalogue is an error; a catalogue with zero
// signatures yields the benign verdict.
func (e *Engine) Evaluate(ctx context.Context, cat *domain.Catalogue, rec domain.Record, opts *Options) (*domain.Verdict, []domain.MatchTrace, error) {
	if cat == nil {
		return nil, nil, domain.ErrCatalogueUnavailable
	}

	ctx, span := tracer.Start(ctx, "engine.evaluate")
	span.SetAttributes(
		attribute.String("catalogue.id", cat.ID),
		attribute.String("catalogue.version", cat.Version),
		attribute.Int("catalogue.signatures", len(cat.Signatures)),
	)
	defer span.End()

	traces := make([]domain.MatchTrace, 0, 8)
	groupFired := make(map[string]bool)
	partial := false

	for i := range cat.Signatures {
		// Cancellation is honoured between signatures only.
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		sig := &cat.Signatures[i]
		ev, fired, fault := evaluateSignature(sig, rec)
		if fault {
			partial = true
			signatureFaults.WithLabelValues(cat.ID, sig.ID).Inc()
			continue
		}
		if !fired {
			continue
		}

		suppressed := sig.Group != "" && groupFired[sig.Group]
		if sig.Group != "" && !suppressed {
			groupFired[sig.Group] = true
		}

		traces = append(traces, domain.MatchTrace{
			SignatureID: sig.ID,
			Category:    sig.Category,
			Weight:      sig.Weight,
			Suppressed:  suppressed,
			Evidence:    ev,
		})
	}

	verdict := e.assemble(cat, rec.ID(), traces, signatureIndex(cat), partial, opts)
	evaluationsTotal.WithLabelValues(cat.ID, verdict.Severity).Inc()
	return verdict, traces, nil
}

// sigMeta is the rendering metadata shared by per-record and aggregate
// signatures.
type sigMeta struct {
	severity    domain.Severity
	description string
	remediation string
}

// evaluateSignature runs one predicate, converting a panic into a fault.
func evaluateSignature(sig *domain.Signature, rec domain.Record) (ev domain.Evidence, fired bool, fault bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("signature fault",
				"signature_id", sig.ID,
				"panic", r,
			)
			ev, fired, fault = domain.Evidence{}, false, true
		}
	}()

	if sig.Applies != nil && !sig.Applies(rec) {
		return domain.Evidence{}, false, false
	}
	ev, fired = sig.Evaluate(rec)
	return ev, fired, false
}

// assemble turns match traces into the public verdict.
func (e *Engine) assemble(cat *domain.Catalogue, recordID string, traces []domain.MatchTrace, meta map[string]sigMeta, partial bool, opts *Options) *domain.Verdict {
	raw := 0
	categories := make(map[string]bool)
	for _, m := range traces {
		if m.Suppressed {
			continue
		}
		raw += m.Weight
		categories[m.Category] = true
	}

	score := raw
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	thresholds := cat.Thresholds
	if opts != nil && len(opts.Thresholds) > 0 {
		thresholds = opts.Thresholds
	}
	severity := severityFor(thresholds, score)

	verdict := &domain.Verdict{
		ID:               recordID,
		RawScore:         raw,
		Score:            score,
		Severity:         severity,
		Confidence:       cat.Confidence(len(categories)),
		Indicators:       renderIndicators(traces, meta, opts),
		Recommendations:  collectRecommendations(traces, meta, cat.RecommendationCap()),
		Partial:          partial,
		CatalogueID:      cat.ID,
		CatalogueVersion: cat.Version,
	}
	return verdict
}

func severityFor(thresholds []domain.ThresholdBand, score int) string {
	for _, band := range thresholds {
		if score >= band.Min {
			return band.Label
		}
	}
	return string(domain.SeverityInfo)
}

// renderIndicators builds the ordered indicator list from non-suppressed
// matches. Callers can rely on a non-empty list: when nothing fired a
// single synthetic "none" indicator is emitted.
func renderIndicators(traces []domain.MatchTrace, meta map[string]sigMeta, opts *Options) []domain.Indicator {
	indicators := make([]domain.Indicator, 0, len(traces))
	for _, m := range traces {
		if m.Suppressed {
			continue
		}
		sm := meta[m.SignatureID]
		desc := Render(sm.description, m.Evidence)
		if desc == "" {
			desc = sanitize(m.Evidence.Summary)
		}
		indicators = append(indicators, domain.Indicator{
			Type:        m.SignatureID,
			Severity:    string(sm.severity),
			Description: desc,
		})
		if opts != nil && opts.MaxReported > 0 && len(indicators) >= opts.MaxReported {
			break
		}
	}

	if len(indicators) == 0 {
		indicators = append(indicators, domain.Indicator{
			Type:        "none",
			Severity:    string(domain.SeverityNone),
			Description: "No suspicious indicators found",
		})
	}
	return indicators
}

// collectRecommendations appends each fired signature's rendered
// remediation, skipping duplicates while preserving first-occurrence
// order, capped at the catalogue limit.
func collectRecommendations(traces []domain.MatchTrace, meta map[string]sigMeta, limit int) []string {
	seen := make(map[string]bool)
	recs := make([]string, 0, 4)
	for _, m := range traces {
		if m.Suppressed {
			continue
		}
		sm := meta[m.SignatureID]
		if sm.remediation == "" {
			continue
		}
		r := Render(sm.remediation, m.Evidence)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		recs = append(recs, r)
		if len(recs) >= limit {
			break
		}
	}
	return recs
}

func signatureIndex(cat *domain.Catalogue) map[string]sigMeta {
	byID := make(map[string]sigMeta, len(cat.Signatures))
	for i := range cat.Signatures {
		sig := &cat.Signatures[i]
		byID[sig.ID] = sigMeta{
			severity:    sig.Severity,
			description: sig.Description,
			remediation: sig.Remediation,
		}
	}
	return byID
}

func aggregateIndex(cat *domain.Catalogue) map[string]sigMeta {
	byID := make(map[string]sigMeta, len(cat.Aggregates))
	for i := range cat.Aggregates {
		agg := &cat.Aggregates[i]
		byID[agg.ID] = sigMeta{
			severity:    agg.Severity,
			description: agg.Description,
			remediation: agg.Remediation,
		}
	}
	return byID
}
