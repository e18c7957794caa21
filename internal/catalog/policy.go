package catalog

import (
	"github.com/kestrelsec/kestrel/internal/domain"
)

// PolicyCatalogueID identifies the IAM policy scoring catalogue.
const PolicyCatalogueID = "policy-iam"

// PolicyCatalogue scores a single access policy for over-breadth. The
// pairwise conflict analysis lives in the analyzers package; this
// catalogue only judges one policy at a time.
func PolicyCatalogue() *domain.Catalogue {
	return &domain.Catalogue{
		ID:         PolicyCatalogueID,
		Version:    "1.2.0",
		Thresholds: domain.DefaultThresholds(),
		AlertFloor: 60,
		Signatures: []domain.Signature{
			{
				ID:          "wildcard_action",
				Category:    "action_scope",
				Severity:    domain.SeverityHigh,
				Weight:      30,
				Description: "Policy {policy} grants every action (*)",
				Remediation: "Enumerate the specific actions the principal needs",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if !r.Bool("action_wildcard") {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "wildcard action",
						Fields:  map[string]string{"policy": r.String("name")},
					}, true
				},
			},
			{
				ID:          "wildcard_resource",
				Category:    "resource_scope",
				Severity:    domain.SeverityHigh,
				Weight:      25,
				Description: "Policy {policy} applies to every resource (*)",
				Remediation: "Scope the policy to explicit resource types or identifiers",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if !r.Bool("resource_wildcard") {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "wildcard resource",
						Fields:  map[string]string{"policy": r.String("name")},
					}, true
				},
			},
			{
				ID:          "wildcard_principal",
				Category:    "principal_scope",
				Severity:    domain.SeverityHigh,
				Weight:      25,
				Description: "Policy {policy} binds to every principal (*)",
				Remediation: "Bind the policy to named users, roles, or groups",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if !r.Bool("principal_wildcard") {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "wildcard principal",
						Fields:  map[string]string{"policy": r.String("name")},
					}, true
				},
			},
			{
				ID:          "missing_conditions",
				Category:    "conditions",
				Severity:    domain.SeverityMedium,
				Weight:      15,
				Description: "Allow policy {policy} carries no conditions",
				Remediation: "Add context conditions (source network, MFA, time window)",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if r.Bool("has_conditions") || r.String("effect") != "allow" {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "unconditional allow",
						Fields:  map[string]string{"policy": r.String("name")},
					}, true
				},
			},
			{
				ID:          "admin_action",
				Category:    "action_scope",
				Severity:    domain.SeverityMedium,
				Weight:      15,
				Description: "Policy {policy} includes administrative action {action}",
				Remediation: "Isolate administrative permissions in a dedicated policy",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					action := r.String("admin_action")
					if action == "" {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "administrative action",
						Fields: map[string]string{
							"policy": r.String("name"),
							"action": action,
						},
					}, true
				},
			},
		},
	}
}
