package engine

import (
	"context"
	"reflect"
	"testing"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// fixedSignature fires whenever the record carries the named boolean.
func fixedSignature(id, category, group string, weight int) domain.Signature {
	return domain.Signature{
		ID:          id,
		Category:    category,
		Severity:    domain.SeverityMedium,
		Weight:      weight,
		Group:       group,
		Description: "matched " + id,
		Remediation: "fix " + id,
		Evaluate: func(r domain.Record) (domain.Evidence, bool) {
			if !r.Bool(id) {
				return domain.Evidence{}, false
			}
			return domain.Evidence{Summary: id}, true
		},
	}
}

func testCatalogue(sigs ...domain.Signature) *domain.Catalogue {
	return &domain.Catalogue{
		ID:         "test-catalogue",
		Version:    "1.0.0",
		Signatures: sigs,
		Thresholds: domain.DefaultThresholds(),
	}
}

func TestEvaluateScoring(t *testing.T) {
	eng := New()
	ctx := context.Background()

	t.Run("SumsMatchedWeights", func(t *testing.T) {
		cat := testCatalogue(
			fixedSignature("a", "cat-a", "", 30),
			fixedSignature("b", "cat-b", "", 25),
			fixedSignature("c", "cat-c", "", 15),
		)

		verdict, traces, err := eng.Evaluate(ctx, cat, domain.Record{"a": true, "c": true}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if verdict.RawScore != 45 {
			t.Errorf("expected raw score 45, got %d", verdict.RawScore)
		}
		if verdict.Score != 45 {
			t.Errorf("expected score 45, got %d", verdict.Score)
		}
		if verdict.Severity != string(domain.SeverityMedium) {
			t.Errorf("expected MEDIUM severity, got %s", verdict.Severity)
		}
		if len(traces) != 2 {
			t.Errorf("expected 2 traces, got %d", len(traces))
		}
	})

	t.Run("ClampsScoreAt100", func(t *testing.T) {
		cat := testCatalogue(
			fixedSignature("a", "cat-a", "", 60),
			fixedSignature("b", "cat-b", "", 70),
		)

		verdict, _, err := eng.Evaluate(ctx, cat, domain.Record{"a": true, "b": true}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if verdict.RawScore != 130 {
			t.Errorf("expected raw score 130, got %d", verdict.RawScore)
		}
		if verdict.Score != 100 {
			t.Errorf("expected clamped score 100, got %d", verdict.Score)
		}
	})

	t.Run("NoMatchesIsBenign", func(t *testing.T) {
		cat := testCatalogue(fixedSignature("a", "cat-a", "", 30))

		verdict, traces, err := eng.Evaluate(ctx, cat, domain.Record{}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if verdict.Score != 0 {
			t.Errorf("expected score 0, got %d", verdict.Score)
		}
		if len(traces) != 0 {
			t.Errorf("expected no traces, got %d", len(traces))
		}
		if len(verdict.Indicators) != 1 || verdict.Indicators[0].Type != "none" {
			t.Errorf("expected synthetic none indicator, got %+v", verdict.Indicators)
		}
	})

	t.Run("ZeroSignatureCatalogue", func(t *testing.T) {
		verdict, _, err := eng.Evaluate(ctx, testCatalogue(), domain.Record{"a": true}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if verdict.Score != 0 {
			t.Errorf("expected score 0, got %d", verdict.Score)
		}
	})

	t.Run("NilCatalogue", func(t *testing.T) {
		_, _, err := eng.Evaluate(ctx, nil, domain.Record{}, nil)
		if err != domain.ErrCatalogueUnavailable {
			t.Errorf("expected ErrCatalogueUnavailable, got %v", err)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		cat := testCatalogue(
			fixedSignature("a", "cat-a", "", 30),
			fixedSignature("b", "cat-b", "", 25),
		)
		rec := domain.Record{"id": "r1", "a": true, "b": true}

		first, _, err := eng.Evaluate(ctx, cat, rec, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := 0; i < 10; i++ {
			again, _, err := eng.Evaluate(ctx, cat, rec, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(first, again) {
				t.Fatalf("verdicts differ between runs: %+v vs %+v", first, again)
			}
		}
	})

	t.Run("RecordIDEchoed", func(t *testing.T) {
		cat := testCatalogue(fixedSignature("a", "cat-a", "", 30))

		verdict, _, _ := eng.Evaluate(ctx, cat, domain.Record{"id": "rec-42"}, nil)
		if verdict.ID != "rec-42" {
			t.Errorf("expected verdict id rec-42, got %q", verdict.ID)
		}

		verdict, _, _ = eng.Evaluate(ctx, cat, domain.Record{}, nil)
		if verdict.ID != "" {
			t.Errorf("expected empty verdict id, got %q", verdict.ID)
		}
	})

	t.Run("ContextCancellation", func(t *testing.T) {
		cat := testCatalogue(fixedSignature("a", "cat-a", "", 30))
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := eng.Evaluate(cancelled, cat, domain.Record{"a": true}, nil)
		if err == nil {
			t.Error("expected error on cancelled context")
		}
	})
}

func TestGroupSuppression(t *testing.T) {
	eng := New()
	ctx := context.Background()

	cat := testCatalogue(
		fixedSignature("first", "cat-a", "excl", 40),
		fixedSignature("second", "cat-b", "excl", 30),
		fixedSignature("other", "cat-c", "", 10),
	)

	verdict, traces, err := eng.Evaluate(ctx, cat, domain.Record{
		"first": true, "second": true, "other": true,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Only the first-declared group member contributes weight
	if verdict.RawScore != 50 {
		t.Errorf("expected raw score 50 (40+10), got %d", verdict.RawScore)
	}

	if len(traces) != 3 {
		t.Fatalf("expected 3 traces, got %d", len(traces))
	}
	for _, m := range traces {
		want := m.SignatureID == "second"
		if m.Suppressed != want {
			t.Errorf("signature %s: suppressed=%v, want %v", m.SignatureID, m.Suppressed, want)
		}
	}

	// Suppressed matches produce no indicator
	for _, ind := range verdict.Indicators {
		if ind.Type == "second" {
			t.Error("suppressed signature rendered an indicator")
		}
	}
}

func TestPartialOnPanic(t *testing.T) {
	eng := New()
	ctx := context.Background()

	panicking := domain.Signature{
		ID:       "boom",
		Category: "cat-x",
		Severity: domain.SeverityHigh,
		Weight:   50,
		Evaluate: func(r domain.Record) (domain.Evidence, bool) {
			panic("bad predicate")
		},
	}
	cat := testCatalogue(
		fixedSignature("before", "cat-a", "", 20),
		panicking,
		fixedSignature("after", "cat-b", "", 15),
	)

	verdict, traces, err := eng.Evaluate(ctx, cat, domain.Record{
		"before": true, "after": true,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !verdict.Partial {
		t.Error("expected partial verdict after signature fault")
	}
	if verdict.RawScore != 35 {
		t.Errorf("expected raw score 35 from surviving signatures, got %d", verdict.RawScore)
	}
	if len(traces) != 2 {
		t.Errorf("expected 2 traces, got %d", len(traces))
	}
}

func TestConfidence(t *testing.T) {
	eng := New()
	ctx := context.Background()

	cat := testCatalogue(
		fixedSignature("a", "cat-a", "", 10),
		fixedSignature("b", "cat-b", "", 10),
		fixedSignature("c", "cat-c", "", 10),
	)

	// Monotonically non-decreasing in distinct categories
	prev := -1
	for _, rec := range []domain.Record{
		{},
		{"a": true},
		{"a": true, "b": true},
		{"a": true, "b": true, "c": true},
	} {
		verdict, _, err := eng.Evaluate(ctx, cat, rec, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if verdict.Confidence < prev {
			t.Errorf("confidence decreased: %d after %d", verdict.Confidence, prev)
		}
		prev = verdict.Confidence
	}

	t.Run("SameCategoryNoBonus", func(t *testing.T) {
		sameCat := testCatalogue(
			fixedSignature("a", "shared", "", 10),
			fixedSignature("b", "shared", "", 10),
		)

		one, _, _ := eng.Evaluate(ctx, sameCat, domain.Record{"a": true}, nil)
		two, _, _ := eng.Evaluate(ctx, sameCat, domain.Record{"a": true, "b": true}, nil)

		if one.Confidence != two.Confidence {
			t.Errorf("expected equal confidence for one category, got %d vs %d",
				one.Confidence, two.Confidence)
		}
	})

	t.Run("Capped", func(t *testing.T) {
		capped := testCatalogue(
			fixedSignature("a", "cat-a", "", 10),
			fixedSignature("b", "cat-b", "", 10),
		)
		capped.BaseConfidence = 90
		capped.CategoryBonus = 20
		capped.ConfidenceCap = 95

		verdict, _, _ := eng.Evaluate(ctx, capped, domain.Record{"a": true, "b": true}, nil)
		if verdict.Confidence != 95 {
			t.Errorf("expected confidence capped at 95, got %d", verdict.Confidence)
		}
	})
}

func TestEvaluateOptions(t *testing.T) {
	eng := New()
	ctx := context.Background()

	t.Run("ThresholdOverride", func(t *testing.T) {
		cat := testCatalogue(fixedSignature("a", "cat-a", "", 30))

		verdict, _, err := eng.Evaluate(ctx, cat, domain.Record{"a": true}, &Options{
			Thresholds: []domain.ThresholdBand{
				{Min: 10, Label: "ALERT"},
				{Min: 0, Label: "OK"},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if verdict.Severity != "ALERT" {
			t.Errorf("expected overridden severity ALERT, got %s", verdict.Severity)
		}
	})

	t.Run("MaxReported", func(t *testing.T) {
		cat := testCatalogue(
			fixedSignature("a", "cat-a", "", 10),
			fixedSignature("b", "cat-b", "", 10),
			fixedSignature("c", "cat-c", "", 10),
		)

		verdict, _, err := eng.Evaluate(ctx, cat, domain.Record{
			"a": true, "b": true, "c": true,
		}, &Options{MaxReported: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(verdict.Indicators) != 2 {
			t.Errorf("expected 2 indicators, got %d", len(verdict.Indicators))
		}
		// Score is unaffected by the reporting cap
		if verdict.RawScore != 30 {
			t.Errorf("expected raw score 30, got %d", verdict.RawScore)
		}
	})
}

func TestRecommendations(t *testing.T) {
	eng := New()
	ctx := context.Background()

	shared := fixedSignature("a", "cat-a", "", 10)
	shared.Remediation = "rotate the key"
	dup := fixedSignature("b", "cat-b", "", 10)
	dup.Remediation = "rotate the key"
	other := fixedSignature("c", "cat-c", "", 10)
	other.Remediation = "block the host"

	cat := testCatalogue(shared, dup, other)

	verdict, _, err := eng.Evaluate(ctx, cat, domain.Record{
		"a": true, "b": true, "c": true,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"rotate the key", "block the host"}
	if !reflect.DeepEqual(verdict.Recommendations, want) {
		t.Errorf("expected deduplicated recommendations %v, got %v", want, verdict.Recommendations)
	}
}

func TestEvaluateGroups(t *testing.T) {
	eng := New()
	ctx := context.Background()

	countAggregate := domain.AggregateSignature{
		ID:          "many_records",
		Category:    "volume",
		Severity:    domain.SeverityHigh,
		Weight:      45,
		Description: "{summary}",
		Evaluate: func(key string, records []domain.Record) (domain.Evidence, bool) {
			if len(records) < 2 {
				return domain.Evidence{}, false
			}
			return domain.Evidence{Summary: "bursty group"}, true
		},
	}

	cat := &domain.Catalogue{
		ID:         "group-catalogue",
		Version:    "1.0.0",
		Aggregates: []domain.AggregateSignature{countAggregate},
		Thresholds: domain.DefaultThresholds(),
	}

	records := []domain.Record{
		{"actor": "alice"},
		{"actor": "bob"},
		{"actor": "bob"},
		{"no_key": true},
	}

	groups, traces, err := eng.EvaluateGroups(ctx, cat, "actor", records, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Records without the key field form no group
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	// Group order follows first appearance
	if groups[0].Key != "alice" || groups[1].Key != "bob" {
		t.Errorf("expected group order [alice bob], got [%s %s]", groups[0].Key, groups[1].Key)
	}

	if groups[0].Verdict.Score != 0 {
		t.Errorf("expected score 0 for alice, got %d", groups[0].Verdict.Score)
	}
	if groups[1].Verdict.Score != 45 {
		t.Errorf("expected score 45 for bob, got %d", groups[1].Verdict.Score)
	}
	if groups[1].Records != 2 {
		t.Errorf("expected 2 records for bob, got %d", groups[1].Records)
	}
	if len(traces["bob"]) != 1 {
		t.Errorf("expected 1 trace for bob, got %d", len(traces["bob"]))
	}

	t.Run("NilCatalogue", func(t *testing.T) {
		_, _, err := eng.EvaluateGroups(ctx, nil, "actor", records, nil)
		if err != domain.ErrCatalogueUnavailable {
			t.Errorf("expected ErrCatalogueUnavailable, got %v", err)
		}
	})

	t.Run("AggregatePanicIsPartial", func(t *testing.T) {
		faulty := *cat
		faulty.Aggregates = append([]domain.AggregateSignature{{
			ID:       "boom",
			Category: "volume",
			Severity: domain.SeverityHigh,
			Weight:   50,
			Evaluate: func(key string, records []domain.Record) (domain.Evidence, bool) {
				panic("bad aggregate")
			},
		}}, cat.Aggregates...)

		groups, _, err := eng.EvaluateGroups(ctx, &faulty, "actor", records, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, g := range groups {
			if !g.Verdict.Partial {
				t.Errorf("expected partial verdict for group %s", g.Key)
			}
		}
	})
}

func TestBuildExplanation(t *testing.T) {
	eng := New()
	ctx := context.Background()

	cat := testCatalogue(
		fixedSignature("first", "cat-a", "excl", 40),
		fixedSignature("second", "cat-b", "excl", 30),
	)

	verdict, traces, err := eng.Evaluate(ctx, cat, domain.Record{
		"id": "rec-1", "first": true, "second": true,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exp := BuildExplanation("eval-123", verdict, traces)

	if exp.EvaluationID != "eval-123" {
		t.Errorf("expected evaluation id eval-123, got %s", exp.EvaluationID)
	}
	if exp.RecordID != "rec-1" {
		t.Errorf("expected record id rec-1, got %s", exp.RecordID)
	}
	if exp.CatalogueID != "test-catalogue" || exp.CatalogueVersion != "1.0.0" {
		t.Errorf("expected catalogue identity in explanation, got %s/%s",
			exp.CatalogueID, exp.CatalogueVersion)
	}
	if len(exp.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(exp.Matches))
	}

	// Contributed weight equals the raw score
	if exp.ContributedWeight() != verdict.RawScore {
		t.Errorf("contributed weight %d does not match raw score %d",
			exp.ContributedWeight(), verdict.RawScore)
	}

	contribs := Contributions(exp)
	if len(contribs) != 1 || contribs[0].SignatureID != "first" {
		t.Errorf("expected single contribution from 'first', got %+v", contribs)
	}
}
