package normalize

import (
	"strings"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// SubjectSet names the principals a policy binds to. A nil or empty set
// is the universal set (*).
type SubjectSet struct {
	Users  []string `json:"users,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Groups []string `json:"groups,omitempty"`
}

// ResourceSet names the resources a policy covers. A nil or empty set
// is the universal set (*).
type ResourceSet struct {
	Types       []string `json:"types,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"`
}

// Policy is the validate-policy request payload and the unit of the
// pairwise conflict analysis.
type Policy struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Effect     string         `json:"effect"` // allow | deny
	Priority   int            `json:"priority"`
	Subjects   *SubjectSet    `json:"subjects,omitempty"`
	Resources  *ResourceSet   `json:"resources,omitempty"`
	Actions    []string       `json:"actions,omitempty"`
	Conditions map[string]any `json:"conditions,omitempty"`
}

// Administrative actions that deserve their own policy.
var adminActions = map[string]bool{
	"delete":       true,
	"grant":        true,
	"revoke":       true,
	"iam:passrole": true,
}

// PolicyRecord builds the IAM-catalogue record for one policy.
func PolicyRecord(p Policy) domain.Record {
	name := p.Name
	if name == "" {
		name = p.ID
	}

	rec := domain.Record{
		"id":             p.ID,
		"name":           name,
		"effect":         strings.ToLower(p.Effect),
		"priority":       p.Priority,
		"has_conditions": len(p.Conditions) > 0,

		"action_wildcard":    containsWildcard(p.Actions) || len(p.Actions) == 0,
		"principal_wildcard": p.Subjects.Universal(),
		"resource_wildcard":  p.Resources.Universal(),
	}

	for _, a := range p.Actions {
		if adminActions[strings.ToLower(a)] {
			rec["admin_action"] = strings.ToLower(a)
			break
		}
	}

	return rec
}

// Universal reports whether the set is the universal set: absent, empty,
// or containing an explicit "*".
func (s *SubjectSet) Universal() bool {
	if s == nil {
		return true
	}
	if len(s.Users)+len(s.Roles)+len(s.Groups) == 0 {
		return true
	}
	return containsWildcard(s.Users) || containsWildcard(s.Roles) || containsWildcard(s.Groups)
}

// Universal reports whether the set is the universal set.
func (s *ResourceSet) Universal() bool {
	if s == nil {
		return true
	}
	if len(s.Types)+len(s.Identifiers) == 0 {
		return true
	}
	return containsWildcard(s.Types) || containsWildcard(s.Identifiers)
}

func containsWildcard(ss []string) bool {
	for _, s := range ss {
		if s == "*" {
			return true
		}
	}
	return false
}
