package catalog

import (
	"fmt"
	"strings"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// AuditCatalogueID identifies the audit-log anomaly catalogue.
const AuditCatalogueID = "audit-anomaly"

const (
	bruteForceFailures   = 4
	compromiseFailureRun = 3
	rapidActivityCount   = 20
	multiSourceCount     = 3
	privilegeAbuseCount  = 3
)

var sensitiveResourceMarkers = []string{"secret", "credential", "key", "admin", "vault"}

// AuditCatalogue builds the audit-log catalogue. Per-record signatures
// score individual events; aggregate signatures run over per-actor
// batches and feed group-level verdicts only.
func AuditCatalogue() *domain.Catalogue {
	return &domain.Catalogue{
		ID:         AuditCatalogueID,
		Version:    "1.5.1",
		Thresholds: domain.DefaultThresholds(),
		AlertFloor: 60,
		Signatures: []domain.Signature{
			{
				ID:          "failed_auth",
				Category:    "authentication",
				Severity:    domain.SeverityLow,
				Weight:      10,
				Description: "Failed authentication by {actor}",
				Remediation: "Review repeated failures for the actor",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if r.String("event_type") != "authentication" || r.String("status") != "failure" {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "authentication failure",
						Fields:  map[string]string{"actor": r.String("actor")},
					}, true
				},
			},
			{
				ID:          "privilege_change",
				Category:    "privilege",
				Severity:    domain.SeverityMedium,
				Weight:      20,
				Description: "Privilege modification: {event}",
				Remediation: "Confirm the change was ticketed and approved",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					et := r.String("event_type")
					switch et {
					case "privilege_change", "role_change", "permission_grant":
						return domain.Evidence{
							Summary: "privilege modification",
							Fields:  map[string]string{"event": et},
						}, true
					}
					return domain.Evidence{}, false
				},
			},
			{
				ID:          "off_hours",
				Category:    "temporal",
				Severity:    domain.SeverityMedium,
				Weight:      15,
				Description: "Activity at hour {hour} outside business hours",
				Remediation: "Verify out-of-hours access with the actor",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					hour, ok := r.Int("hour_of_day")
					if !ok || (hour >= 6 && hour < 22) {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "off-hours activity",
						Fields:  map[string]string{"hour": fmt.Sprintf("%d", hour)},
					}, true
				},
			},
			{
				ID:          "sensitive_resource",
				Category:    "resource",
				Severity:    domain.SeverityMedium,
				Weight:      15,
				Description: "Access to sensitive resource {resource}",
				Remediation: "Check the actor's entitlement to the resource",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					res := r.String("resource")
					for _, marker := range sensitiveResourceMarkers {
						if strings.Contains(res, marker) {
							return domain.Evidence{
								Summary: "sensitive resource access",
								Fields:  map[string]string{"resource": res},
							}, true
						}
					}
					return domain.Evidence{}, false
				},
			},
		},
		Aggregates: []domain.AggregateSignature{
			{
				ID:          "brute_force",
				Category:    "brute_force",
				Severity:    domain.SeverityHigh,
				Weight:      40,
				Description: "{count} failed authentications by {actor} in batch",
				Remediation: "Lock the account and require credential reset",
				Evaluate: func(key string, records []domain.Record) (domain.Evidence, bool) {
					failures := 0
					for _, r := range records {
						if r.String("event_type") == "authentication" && r.String("status") == "failure" {
							failures++
						}
					}
					if failures < bruteForceFailures {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "brute force pattern",
						Fields: map[string]string{
							"count": fmt.Sprintf("%d", failures),
							"actor": key,
						},
					}, true
				},
			},
			{
				ID:          "account_compromise",
				Category:    "account_compromise",
				Severity:    domain.SeverityCritical,
				Weight:      50,
				Description: "Failure run of {failures} followed by success for {actor}",
				Remediation: "Treat the account as compromised; revoke sessions and rotate credentials",
				Evaluate: func(key string, records []domain.Record) (domain.Evidence, bool) {
					run := 0
					for _, r := range records {
						if r.String("event_type") != "authentication" {
							continue
						}
						switch r.String("status") {
						case "failure":
							run++
						case "success":
							if run >= compromiseFailureRun {
								return domain.Evidence{
									Summary: "failures followed by success",
									Fields: map[string]string{
										"failures": fmt.Sprintf("%d", run),
										"actor":    key,
									},
								}, true
							}
							run = 0
						}
					}
					return domain.Evidence{}, false
				},
			},
			{
				ID:          "privilege_abuse",
				Category:    "privilege_abuse",
				Severity:    domain.SeverityHigh,
				Weight:      35,
				Description: "{count} privilege modifications by {actor} in batch",
				Remediation: "Audit the actor's recent privilege changes",
				Evaluate: func(key string, records []domain.Record) (domain.Evidence, bool) {
					count := 0
					for _, r := range records {
						switch r.String("event_type") {
						case "privilege_change", "role_change", "permission_grant":
							count++
						}
					}
					if count < privilegeAbuseCount {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "privilege abuse pattern",
						Fields: map[string]string{
							"count": fmt.Sprintf("%d", count),
							"actor": key,
						},
					}, true
				},
			},
			{
				ID:          "rapid_activity",
				Category:    "velocity",
				Severity:    domain.SeverityMedium,
				Weight:      20,
				Description: "{count} events by {actor} in one batch",
				Remediation: "Check for scripted or automated account use",
				Evaluate: func(key string, records []domain.Record) (domain.Evidence, bool) {
					if len(records) < rapidActivityCount {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "rapid activity",
						Fields: map[string]string{
							"count": fmt.Sprintf("%d", len(records)),
							"actor": key,
						},
					}, true
				},
			},
			{
				ID:          "multi_source",
				Category:    "source_spread",
				Severity:    domain.SeverityMedium,
				Weight:      20,
				Description: "{actor} active from {count} distinct source addresses",
				Remediation: "Correlate source addresses against the actor's known locations",
				Evaluate: func(key string, records []domain.Record) (domain.Evidence, bool) {
					sources := make(map[string]bool)
					for _, r := range records {
						if ip := r.String("source_ip"); ip != "" {
							sources[ip] = true
						}
					}
					if len(sources) < multiSourceCount {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "multiple source addresses",
						Fields: map[string]string{
							"count": fmt.Sprintf("%d", len(sources)),
							"actor": key,
						},
					}, true
				},
			},
		},
	}
}
