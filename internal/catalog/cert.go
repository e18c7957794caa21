package catalog

import (
	"fmt"
	"strings"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// CertCatalogueID identifies the certificate grading catalogue.
const CertCatalogueID = "cert-grading"

// Deprecated hash families carry saturating weights: a SHA-1 or MD5
// signature alone should push the certificate into the failing bands.
var weakHashAlgorithms = []string{"md5", "sha1"}

const (
	expirySoonDays  = 30
	maxValidityDays = 825
	minRSAKeyBits   = 2048
	minECKeyBits    = 256
	maxSANCount     = 100
	maxChainDepth   = 4
)

// gradeBands maps scores to TLS letter grades, worst band first.
var gradeBands = []domain.ThresholdBand{
	{Min: 80, Label: "F"},
	{Min: 60, Label: "D"},
	{Min: 40, Label: "C"},
	{Min: 25, Label: "B"},
	{Min: 15, Label: "A-"},
	{Min: 5, Label: "A"},
	{Min: 0, Label: "A+"},
}

// GradeFor maps a certificate score to its letter grade. The grade is
// derived from the same clamped score as the severity, so both stay
// pure functions of the evaluation.
func GradeFor(score int) string {
	for _, band := range gradeBands {
		if score >= band.Min {
			return band.Label
		}
	}
	return "A+"
}

// CertCatalogue builds the certificate grading catalogue. The validity
// signatures share a group: a certificate is expired, not yet valid, or
// expiring soon, never more than one at a time.
func CertCatalogue() *domain.Catalogue {
	return &domain.Catalogue{
		ID:         CertCatalogueID,
		Version:    "1.9.2",
		Thresholds: domain.DefaultThresholds(),
		AlertFloor: 80,
		Signatures: []domain.Signature{
			{
				ID:          "CERT_EXPIRED",
				Category:    "validity",
				Severity:    domain.SeverityCritical,
				Weight:      55,
				Group:       "validity",
				Description: "Certificate expired {days_past} days ago",
				Remediation: "Renew certificate immediately",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					days, ok := r.Int("days_until_expiry")
					if !ok || days >= 0 {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "certificate past notAfter",
						Fields:  map[string]string{"days_past": fmt.Sprintf("%d", -days)},
					}, true
				},
			},
			{
				ID:          "CERT_NOT_YET_VALID",
				Category:    "validity",
				Severity:    domain.SeverityHigh,
				Weight:      30,
				Group:       "validity",
				Description: "Certificate notBefore is in the future",
				Remediation: "Check issuance clock skew and deployment timing",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if !r.Bool("not_yet_valid") {
						return domain.Evidence{}, false
					}
					return domain.Evidence{Summary: "certificate not yet valid"}, true
				},
			},
			{
				ID:          "CERT_EXPIRING_SOON",
				Category:    "validity",
				Severity:    domain.SeverityMedium,
				Weight:      15,
				Group:       "validity",
				Description: "Certificate expires in {days} days",
				Remediation: "Schedule renewal before the expiry window closes",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					days, ok := r.Int("days_until_expiry")
					if !ok || days < 0 || days >= expirySoonDays {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "certificate expiring soon",
						Fields:  map[string]string{"days": fmt.Sprintf("%d", days)},
					}, true
				},
			},
			{
				ID:          "weak_signature",
				Category:    "signature_algorithm",
				Severity:    domain.SeverityHigh,
				Weight:      35,
				Description: "Deprecated signature hash in {algorithm}",
				Remediation: "Reissue the certificate with a SHA-256 family signature algorithm",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					algo := r.String("signature_algorithm")
					for _, weak := range weakHashAlgorithms {
						if strings.Contains(algo, weak) {
							return domain.Evidence{
								Summary: "weak signature hash",
								Fields:  map[string]string{"algorithm": algo, "hash": weak},
							}, true
						}
					}
					return domain.Evidence{}, false
				},
			},
			{
				ID:          "weak_key",
				Category:    "public_key",
				Severity:    domain.SeverityHigh,
				Weight:      40,
				Description: "Public key {algorithm}-{size} is below minimum strength",
				Remediation: "Rekey with RSA >= 2048 bits or an EC curve >= 256 bits",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					algo := r.String("public_key_algorithm")
					size, ok := r.Int("public_key_size")
					if !ok {
						return domain.Evidence{}, false
					}
					weak := false
					switch algo {
					case "rsa", "dsa":
						weak = size < minRSAKeyBits
					case "ec", "ecdsa":
						weak = size < minECKeyBits
					}
					if !weak {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "undersized public key",
						Fields: map[string]string{
							"algorithm": algo,
							"size":      fmt.Sprintf("%d", size),
						},
					}, true
				},
			},
			{
				ID:          "self_signed",
				Category:    "chain",
				Severity:    domain.SeverityMedium,
				Weight:      20,
				Description: "Certificate is self-signed ({subject})",
				Remediation: "Obtain a certificate from a trusted CA",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if !r.Bool("self_signed") {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "self-signed certificate",
						Fields:  map[string]string{"subject": r.String("subject_cn")},
					}, true
				},
			},
			{
				ID:          "long_validity",
				Category:    "validity_window",
				Severity:    domain.SeverityMedium,
				Weight:      10,
				Description: "Validity window of {days} days exceeds the {max}-day limit",
				Remediation: "Reissue with a validity window of at most 825 days",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					days, ok := r.Int("validity_days")
					if !ok || days <= maxValidityDays {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "excessive validity window",
						Fields: map[string]string{
							"days": fmt.Sprintf("%d", days),
							"max":  fmt.Sprintf("%d", maxValidityDays),
						},
					}, true
				},
			},
			{
				ID:          "wildcard_san",
				Category:    "san",
				Severity:    domain.SeverityLow,
				Weight:      5,
				Description: "Certificate covers wildcard name {name}",
				Remediation: "Prefer explicit SAN entries over wildcards",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					name := r.String("wildcard_san")
					if name == "" {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "wildcard SAN",
						Fields:  map[string]string{"name": name},
					}, true
				},
			},
			{
				ID:          "excessive_sans",
				Category:    "san",
				Severity:    domain.SeverityLow,
				Weight:      5,
				Description: "Certificate lists {count} SAN entries",
				Remediation: "Split very large SAN sets across dedicated certificates",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					n, _ := r.Int("san_count")
					if n <= maxSANCount {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "excessive SAN count",
						Fields:  map[string]string{"count": fmt.Sprintf("%d", n)},
					}, true
				},
			},
			{
				ID:          "deep_chain",
				Category:    "chain",
				Severity:    domain.SeverityLow,
				Weight:      5,
				Description: "Certificate chain depth {depth} exceeds {max}",
				Remediation: "Shorten the intermediate chain",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					depth, ok := r.Int("chain_depth")
					if !ok || depth <= maxChainDepth {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "deep certificate chain",
						Fields: map[string]string{
							"depth": fmt.Sprintf("%d", depth),
							"max":   fmt.Sprintf("%d", maxChainDepth),
						},
					}, true
				},
			},
		},
	}
}
