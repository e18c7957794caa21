// Package analyzers implements the relational overlays on top of the
// scoring engine: pairwise policy conflict detection and audit-log
// pattern recognition. Both are pure functions over their inputs.
package analyzers

import (
	"fmt"
	"strings"

	"github.com/kestrelsec/kestrel/internal/domain"
	"github.com/kestrelsec/kestrel/internal/normalize"
)

// ConflictFinding reports one effect conflict between two policies.
type ConflictFinding struct {
	Type       string          `json:"type"` // EFFECT_CONFLICT
	PolicyA    string          `json:"policyA"`
	PolicyB    string          `json:"policyB"`
	Severity   domain.Severity `json:"severity"`
	Subjects   []string        `json:"subjects"`
	Resources  []string        `json:"resources"`
	Actions    []string        `json:"actions"`
	Resolution string          `json:"resolution"`
}

// DetectConflicts compares every policy pair. A conflict exists when
// the subject, resource, and action sets all intersect and the effects
// differ. A missing set is the universal set, so it intersects with
// anything. The numerically smaller priority wins; equal priorities get
// the advice to set different ones.
func DetectConflicts(policies []normalize.Policy) []ConflictFinding {
	findings := make([]ConflictFinding, 0)

	for i := 0; i < len(policies); i++ {
		for j := i + 1; j < len(policies); j++ {
			a, b := policies[i], policies[j]
			if strings.EqualFold(a.Effect, b.Effect) {
				continue
			}

			subjects, ok := subjectOverlap(a.Subjects, b.Subjects)
			if !ok {
				continue
			}
			resources, ok := resourceOverlap(a.Resources, b.Resources)
			if !ok {
				continue
			}
			actions, ok := actionOverlap(a.Actions, b.Actions)
			if !ok {
				continue
			}

			findings = append(findings, ConflictFinding{
				Type:       "EFFECT_CONFLICT",
				PolicyA:    a.ID,
				PolicyB:    b.ID,
				Severity:   domain.SeverityHigh,
				Subjects:   subjects,
				Resources:  resources,
				Actions:    actions,
				Resolution: resolve(a, b),
			})
		}
	}

	return findings
}

func resolve(a, b normalize.Policy) string {
	switch {
	case a.Priority < b.Priority:
		return fmt.Sprintf("policy %s (priority %d) takes precedence; effective effect: %s",
			a.ID, a.Priority, strings.ToLower(a.Effect))
	case b.Priority < a.Priority:
		return fmt.Sprintf("policy %s (priority %d) takes precedence; effective effect: %s",
			b.ID, b.Priority, strings.ToLower(b.Effect))
	default:
		return "set different priorities to make precedence explicit"
	}
}

// subjectOverlap intersects each of {users, roles, groups}; the pair
// overlaps when any of the three intersects.
func subjectOverlap(a, b *normalize.SubjectSet) ([]string, bool) {
	if a.Universal() || b.Universal() {
		return []string{"*"}, true
	}
	var overlap []string
	overlap = append(overlap, intersect(a.Users, b.Users)...)
	overlap = append(overlap, intersect(a.Roles, b.Roles)...)
	overlap = append(overlap, intersect(a.Groups, b.Groups)...)
	return overlap, len(overlap) > 0
}

func resourceOverlap(a, b *normalize.ResourceSet) ([]string, bool) {
	if a.Universal() || b.Universal() {
		return []string{"*"}, true
	}
	var overlap []string
	overlap = append(overlap, intersect(a.Types, b.Types)...)
	overlap = append(overlap, intersect(a.Identifiers, b.Identifiers)...)
	return overlap, len(overlap) > 0
}

func actionOverlap(a, b []string) ([]string, bool) {
	universal := func(ss []string) bool {
		if len(ss) == 0 {
			return true
		}
		for _, s := range ss {
			if s == "*" {
				return true
			}
		}
		return false
	}
	if universal(a) || universal(b) {
		return []string{"*"}, true
	}
	overlap := intersect(a, b)
	return overlap, len(overlap) > 0
}

// intersect preserves the order of the first argument.
func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[strings.ToLower(s)] = true
	}
	var out []string
	for _, s := range a {
		if set[strings.ToLower(s)] {
			out = append(out, s)
		}
	}
	return out
}
