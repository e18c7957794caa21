package analyzers

import (
	"fmt"
	"strings"

	"github.com/kestrelsec/kestrel/internal/domain"
	"github.com/kestrelsec/kestrel/internal/normalize"
)

// PatternFinding reports one recognized behavioural pattern, keyed by
// the actor that produced it.
type PatternFinding struct {
	Pattern     string          `json:"pattern"`
	Actor       string          `json:"actor"`
	Severity    domain.Severity `json:"severity"`
	Occurrences int             `json:"occurrences"`
	Confidence  float64         `json:"confidence"`
	Description string          `json:"description"`
}

// Recognizer holds the pattern thresholds. Each pattern escalates to
// CRITICAL once its count reaches twice the threshold.
type Recognizer struct {
	BruteForceThreshold     int
	ExfiltrationThreshold   int
	PrivilegeAbuseThreshold int
	SequenceThreshold       int
}

// NewRecognizer creates a recognizer with the default thresholds.
func NewRecognizer() *Recognizer {
	return &Recognizer{
		BruteForceThreshold:     4,
		ExfiltrationThreshold:   10,
		PrivilegeAbuseThreshold: 3,
		SequenceThreshold:       5,
	}
}

// Recognize scans a batch of audit events and reports every pattern
// that crosses its threshold. Events are grouped by actor; event order
// within the batch is preserved for run-based patterns.
func (r *Recognizer) Recognize(events []normalize.AuditEvent) []PatternFinding {
	byActor := make(map[string][]normalize.AuditEvent)
	order := make([]string, 0, 8)
	for _, ev := range events {
		if ev.Actor == "" {
			continue
		}
		if _, ok := byActor[ev.Actor]; !ok {
			order = append(order, ev.Actor)
		}
		byActor[ev.Actor] = append(byActor[ev.Actor], ev)
	}

	findings := make([]PatternFinding, 0)
	for _, actor := range order {
		findings = append(findings, r.recognizeActor(actor, byActor[actor])...)
	}
	return findings
}

func (r *Recognizer) recognizeActor(actor string, events []normalize.AuditEvent) []PatternFinding {
	var findings []PatternFinding

	failures := 0
	exfil := 0
	privChanges := 0
	failureRun := 0
	compromised := false

	longestSeq, seqKey := longestRepeat(events)

	for _, ev := range events {
		et := strings.ToLower(ev.EventType)
		status := strings.ToLower(ev.Status)

		switch et {
		case "authentication":
			if status == "failure" {
				failures++
				failureRun++
			} else if status == "success" {
				if failureRun >= 3 {
					compromised = true
				}
				failureRun = 0
			}
		case "data_access", "data_export", "download":
			exfil++
		case "privilege_change", "role_change", "permission_grant":
			privChanges++
		}
	}

	if failures >= r.BruteForceThreshold {
		findings = append(findings, r.finding("brute_force", actor, failures, r.BruteForceThreshold,
			fmt.Sprintf("%d failed authentications by %s", failures, actor)))
	}
	if compromised {
		f := r.finding("account_compromise", actor, 1, 1,
			fmt.Sprintf("failure run followed by successful authentication for %s", actor))
		f.Severity = domain.SeverityCritical
		findings = append(findings, f)
	}
	if exfil >= r.ExfiltrationThreshold {
		findings = append(findings, r.finding("data_exfiltration", actor, exfil, r.ExfiltrationThreshold,
			fmt.Sprintf("%d data access events by %s in one batch", exfil, actor)))
	}
	if privChanges >= r.PrivilegeAbuseThreshold {
		findings = append(findings, r.finding("privilege_abuse", actor, privChanges, r.PrivilegeAbuseThreshold,
			fmt.Sprintf("%d privilege modifications by %s", privChanges, actor)))
	}
	if longestSeq >= r.SequenceThreshold {
		findings = append(findings, r.finding("repeated_sequence", actor, longestSeq, r.SequenceThreshold,
			fmt.Sprintf("action %q repeated %d times consecutively by %s", seqKey, longestSeq, actor)))
	}

	return findings
}

// finding builds a pattern finding with threshold-based severity and
// occurrence-driven confidence.
func (r *Recognizer) finding(pattern, actor string, occurrences, threshold int, desc string) PatternFinding {
	severity := domain.SeverityHigh
	if occurrences >= 2*threshold {
		severity = domain.SeverityCritical
	}
	return PatternFinding{
		Pattern:     pattern,
		Actor:       actor,
		Severity:    severity,
		Occurrences: occurrences,
		Confidence:  confidence(occurrences),
		Description: desc,
	}
}

// confidence grows with occurrences and saturates at 0.98.
func confidence(occurrences int) float64 {
	c := 0.5 + 0.05*float64(occurrences)
	if c > 0.98 {
		c = 0.98
	}
	return c
}

// longestRepeat finds the longest consecutive run of the same
// (event type, resource) pair.
func longestRepeat(events []normalize.AuditEvent) (int, string) {
	best, bestKey := 0, ""
	run, runKey := 0, ""
	for _, ev := range events {
		key := strings.ToLower(ev.EventType) + ":" + strings.ToLower(ev.Resource)
		if key == runKey {
			run++
		} else {
			run, runKey = 1, key
		}
		if run > best {
			best, bestKey = run, runKey
		}
	}
	return best, bestKey
}
