package analyzers

import (
	"math"
	"testing"

	"github.com/kestrelsec/kestrel/internal/domain"
	"github.com/kestrelsec/kestrel/internal/normalize"
)

func repeatEvents(actor, eventType, status string, n int) []normalize.AuditEvent {
	events := make([]normalize.AuditEvent, n)
	for i := range events {
		events[i] = normalize.AuditEvent{Actor: actor, EventType: eventType, Status: status}
	}
	return events
}

func findPattern(findings []PatternFinding, pattern, actor string) *PatternFinding {
	for i := range findings {
		if findings[i].Pattern == pattern && findings[i].Actor == actor {
			return &findings[i]
		}
	}
	return nil
}

func TestRecognizeBruteForce(t *testing.T) {
	r := NewRecognizer()

	t.Run("BelowThresholdIsSilent", func(t *testing.T) {
		findings := r.Recognize(repeatEvents("mallory", "authentication", "failure", 3))
		if f := findPattern(findings, "brute_force", "mallory"); f != nil {
			t.Errorf("unexpected finding: %+v", f)
		}
	})

	t.Run("AtThresholdIsHigh", func(t *testing.T) {
		findings := r.Recognize(repeatEvents("mallory", "authentication", "failure", 4))
		f := findPattern(findings, "brute_force", "mallory")
		if f == nil {
			t.Fatal("expected brute_force finding")
		}
		if f.Severity != domain.SeverityHigh {
			t.Errorf("severity = %s", f.Severity)
		}
		if f.Occurrences != 4 {
			t.Errorf("occurrences = %d", f.Occurrences)
		}
	})

	t.Run("DoubleThresholdEscalatesToCritical", func(t *testing.T) {
		findings := r.Recognize(repeatEvents("mallory", "authentication", "failure", 8))
		f := findPattern(findings, "brute_force", "mallory")
		if f == nil {
			t.Fatal("expected brute_force finding")
		}
		if f.Severity != domain.SeverityCritical {
			t.Errorf("severity = %s", f.Severity)
		}
		if math.Abs(f.Confidence-0.9) > 1e-9 {
			t.Errorf("confidence = %v", f.Confidence)
		}
	})
}

func TestRecognizeAccountCompromise(t *testing.T) {
	r := NewRecognizer()

	t.Run("FailureRunThenSuccess", func(t *testing.T) {
		events := repeatEvents("eve", "authentication", "failure", 3)
		events = append(events, normalize.AuditEvent{Actor: "eve", EventType: "authentication", Status: "success"})

		findings := r.Recognize(events)
		f := findPattern(findings, "account_compromise", "eve")
		if f == nil {
			t.Fatal("expected account_compromise finding")
		}
		if f.Severity != domain.SeverityCritical {
			t.Errorf("severity = %s, want CRITICAL always", f.Severity)
		}
	})

	t.Run("ShortRunIsNormalRecovery", func(t *testing.T) {
		events := repeatEvents("bob", "authentication", "failure", 2)
		events = append(events, normalize.AuditEvent{Actor: "bob", EventType: "authentication", Status: "success"})

		findings := r.Recognize(events)
		if f := findPattern(findings, "account_compromise", "bob"); f != nil {
			t.Errorf("unexpected finding: %+v", f)
		}
	})

	t.Run("SuccessResetsRun", func(t *testing.T) {
		events := []normalize.AuditEvent{
			{Actor: "bob", EventType: "authentication", Status: "failure"},
			{Actor: "bob", EventType: "authentication", Status: "failure"},
			{Actor: "bob", EventType: "authentication", Status: "success"},
			{Actor: "bob", EventType: "authentication", Status: "failure"},
			{Actor: "bob", EventType: "authentication", Status: "success"},
		}
		findings := r.Recognize(events)
		if f := findPattern(findings, "account_compromise", "bob"); f != nil {
			t.Errorf("unexpected finding: %+v", f)
		}
	})
}

func TestRecognizeExfiltrationAndPrivilege(t *testing.T) {
	r := NewRecognizer()

	t.Run("DataExfiltration", func(t *testing.T) {
		findings := r.Recognize(repeatEvents("carol", "data_export", "success", 10))
		f := findPattern(findings, "data_exfiltration", "carol")
		if f == nil {
			t.Fatal("expected data_exfiltration finding")
		}
		if f.Occurrences != 10 {
			t.Errorf("occurrences = %d", f.Occurrences)
		}
	})

	t.Run("PrivilegeAbuse", func(t *testing.T) {
		findings := r.Recognize(repeatEvents("carol", "privilege_change", "success", 3))
		if findPattern(findings, "privilege_abuse", "carol") == nil {
			t.Error("expected privilege_abuse finding")
		}
	})

	t.Run("MixedEventTypesCountSeparately", func(t *testing.T) {
		events := repeatEvents("carol", "data_access", "success", 9)
		events = append(events, repeatEvents("carol", "privilege_change", "success", 2)...)

		findings := r.Recognize(events)
		if f := findPattern(findings, "data_exfiltration", "carol"); f != nil {
			t.Errorf("9 accesses should stay below threshold: %+v", f)
		}
		if f := findPattern(findings, "privilege_abuse", "carol"); f != nil {
			t.Errorf("2 changes should stay below threshold: %+v", f)
		}
	})
}

func TestRecognizeRepeatedSequence(t *testing.T) {
	r := NewRecognizer()

	t.Run("ConsecutiveSameAction", func(t *testing.T) {
		events := make([]normalize.AuditEvent, 5)
		for i := range events {
			events[i] = normalize.AuditEvent{Actor: "dave", EventType: "list_buckets", Resource: "s3"}
		}

		findings := r.Recognize(events)
		f := findPattern(findings, "repeated_sequence", "dave")
		if f == nil {
			t.Fatal("expected repeated_sequence finding")
		}
		if f.Occurrences != 5 {
			t.Errorf("occurrences = %d", f.Occurrences)
		}
	})

	t.Run("RunBrokenByDifferentResource", func(t *testing.T) {
		events := []normalize.AuditEvent{
			{Actor: "dave", EventType: "read", Resource: "a"},
			{Actor: "dave", EventType: "read", Resource: "a"},
			{Actor: "dave", EventType: "read", Resource: "b"},
			{Actor: "dave", EventType: "read", Resource: "a"},
			{Actor: "dave", EventType: "read", Resource: "a"},
		}
		findings := r.Recognize(events)
		if f := findPattern(findings, "repeated_sequence", "dave"); f != nil {
			t.Errorf("broken run should not reach threshold: %+v", f)
		}
	})
}

func TestRecognizeGrouping(t *testing.T) {
	r := NewRecognizer()

	t.Run("ActorsAreIndependent", func(t *testing.T) {
		events := repeatEvents("a1", "authentication", "failure", 2)
		events = append(events, repeatEvents("a2", "authentication", "failure", 2)...)

		findings := r.Recognize(events)
		if len(findings) != 0 {
			t.Errorf("per-actor counts should not merge: %+v", findings)
		}
	})

	t.Run("EmptyActorSkipped", func(t *testing.T) {
		findings := r.Recognize(repeatEvents("", "authentication", "failure", 10))
		if len(findings) != 0 {
			t.Errorf("events without an actor should be ignored: %+v", findings)
		}
	})

	t.Run("FindingOrderFollowsFirstAppearance", func(t *testing.T) {
		events := repeatEvents("zed", "authentication", "failure", 4)
		events = append(events, repeatEvents("amy", "authentication", "failure", 4)...)

		findings := r.Recognize(events)
		if len(findings) != 2 {
			t.Fatalf("expected 2 findings, got %d", len(findings))
		}
		if findings[0].Actor != "zed" || findings[1].Actor != "amy" {
			t.Errorf("order = %s, %s", findings[0].Actor, findings[1].Actor)
		}
	})
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		occurrences int
		want        float64
	}{
		{1, 0.55},
		{4, 0.7},
		{8, 0.9},
		{20, 0.98}, // saturates
	}
	for _, tt := range tests {
		if got := confidence(tt.occurrences); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("confidence(%d) = %v, want %v", tt.occurrences, got, tt.want)
		}
	}
}
