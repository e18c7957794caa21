package engine

import (
	"context"
	"log/slog"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// EvaluateGroups partitions a batch of records by the given key field
// and runs the catalogue's aggregate signatures against each group. The
// resulting verdicts are group-level: no weight flows back into any
// individual record's verdict.
//
// Records without the key field form no group and are skipped. Group
// order follows first appearance of each key in the batch, so output is
// deterministic for a fixed input order.
func (e *Engine) EvaluateGroups(ctx context.Context, cat *domain.Catalogue, keyField string, records []domain.Record, opts *Options) ([]domain.GroupVerdict, map[string][]domain.MatchTrace, error) {
	if cat == nil {
		return nil, nil, domain.ErrCatalogueUnavailable
	}

	groups := make(map[string][]domain.Record)
	order := make([]string, 0, 8)
	for _, rec := range records {
		key := rec.String(keyField)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	meta := aggregateIndex(cat)
	verdicts := make([]domain.GroupVerdict, 0, len(order))
	allTraces := make(map[string][]domain.MatchTrace, len(order))

	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		traces, partial := e.evaluateGroup(cat, key, groups[key])
		verdict := e.assemble(cat, key, traces, meta, partial, opts)
		verdicts = append(verdicts, domain.GroupVerdict{
			Key:     key,
			Verdict: *verdict,
			Records: len(groups[key]),
		})
		allTraces[key] = traces
	}

	return verdicts, allTraces, nil
}

// evaluateGroup runs all aggregate signatures over one keyed group,
// honouring the same mutual-exclusion policy as per-record evaluation.
func (e *Engine) evaluateGroup(cat *domain.Catalogue, key string, records []domain.Record) ([]domain.MatchTrace, bool) {
	traces := make([]domain.MatchTrace, 0, 4)
	groupFired := make(map[string]bool)
	partial := false

	for i := range cat.Aggregates {
		agg := &cat.Aggregates[i]
		ev, fired, fault := evaluateAggregate(agg, key, records)
		if fault {
			partial = true
			signatureFaults.WithLabelValues(cat.ID, agg.ID).Inc()
			continue
		}
		if !fired {
			continue
		}

		suppressed := agg.Group != "" && groupFired[agg.Group]
		if agg.Group != "" && !suppressed {
			groupFired[agg.Group] = true
		}

		traces = append(traces, domain.MatchTrace{
			SignatureID: agg.ID,
			Category:    agg.Category,
			Weight:      agg.Weight,
			Suppressed:  suppressed,
			Evidence:    ev,
		})
	}

	return traces, partial
}

func evaluateAggregate(agg *domain.AggregateSignature, key string, records []domain.Record) (ev domain.Evidence, fired bool, fault bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("aggregate signature fault",
				"signature_id", agg.ID,
				"group_key", key,
				"panic", r,
			)
			ev, fired, fault = domain.Evidence{}, false, true
		}
	}()

	ev, fired = agg.Evaluate(key, records)
	return ev, fired, false
}
