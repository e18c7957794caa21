package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// URLCatalogueID identifies the phishing URL catalogue.
const URLCatalogueID = "url-phishing"

// TLD suffixes disproportionately used by phishing campaigns.
var suspiciousTLDs = []string{
	".tk", ".ml", ".ga", ".cf", ".gq",
	".xyz", ".top", ".club", ".click", ".link", ".work", ".loan",
}

// Hosts of popular URL shorteners; shortened links hide the real target.
var shortenerHosts = map[string]bool{
	"bit.ly":      true,
	"tinyurl.com": true,
	"goo.gl":      true,
	"t.co":        true,
	"ow.ly":       true,
	"is.gd":       true,
	"buff.ly":     true,
	"rebrand.ly":  true,
}

var phishingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(login|signin|sign-in)\b`),
	regexp.MustCompile(`(?i)\b(verify|verification|confirm)\b`),
	regexp.MustCompile(`(?i)\b(secure|security)\b`),
	regexp.MustCompile(`(?i)\b(account|banking|wallet)\b`),
	regexp.MustCompile(`(?i)\b(update|suspend|unlock)\b`),
}

const longURLThreshold = 75

// URLCatalogue builds the phishing URL catalogue. Signature order is
// load-bearing: it fixes suppression tie-breaks and indicator order.
func URLCatalogue() *domain.Catalogue {
	parsed := func(r domain.Record) bool { return !r.Bool("parse_failed") }

	return &domain.Catalogue{
		ID:      URLCatalogueID,
		Version: "2.4.0",
		Thresholds: []domain.ThresholdBand{
			{Min: 80, Label: "PHISHING"},
			{Min: 60, Label: "HIGH_RISK"},
			{Min: 40, Label: "SUSPICIOUS"},
			{Min: 20, Label: "LOW_RISK"},
			{Min: 0, Label: "SAFE"},
		},
		AlertFloor: 80,
		Signatures: []domain.Signature{
			{
				ID:          "parse_failed",
				Category:    "malformed",
				Severity:    domain.SeverityHigh,
				Weight:      40,
				Description: "URL could not be parsed: {summary}",
				Remediation: "Treat unparseable URLs as hostile and do not follow them",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if !r.Bool("parse_failed") {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "malformed URL",
						Fields:  map[string]string{"url": r.String("url")},
					}, true
				},
			},
			{
				ID:          "embedded_credentials",
				Category:    "embedded_credentials",
				Severity:    domain.SeverityCritical,
				Weight:      50,
				Applies:     parsed,
				Description: "URL embeds credentials before the real host {host}",
				Remediation: "Never follow links that contain an @ before the hostname",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if !r.Bool("has_credentials") {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "credentials embedded in URL",
						Fields: map[string]string{
							"host":     r.String("host"),
							"userinfo": r.String("userinfo"),
						},
					}, true
				},
			},
			{
				ID:          "ip_address",
				Category:    "ip_address",
				Severity:    domain.SeverityHigh,
				Weight:      25,
				Applies:     parsed,
				Description: "Host is a raw IPv4 literal {host}",
				Remediation: "Legitimate services use hostnames; block raw-IP links",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if !r.Bool("host_is_ipv4_literal") {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "IPv4 literal host",
						Fields:  map[string]string{"host": r.String("host")},
					}, true
				},
			},
			{
				ID:          "homograph",
				Category:    "homograph",
				Severity:    domain.SeverityHigh,
				Weight:      25,
				Applies:     parsed,
				Description: "Host {host} contains non-ASCII characters (possible homograph)",
				Remediation: "Compare the punycode form of the host against the expected domain",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					if !r.Bool("host_has_non_ascii") {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "non-ASCII host",
						Fields:  map[string]string{"host": r.String("host")},
					}, true
				},
			},
			{
				ID:          "phishing_pattern",
				Category:    "phishing_pattern",
				Severity:    domain.SeverityHigh,
				Weight:      20,
				Applies:     parsed,
				Description: "URL matches phishing language pattern {pattern}",
				Remediation: "Verify the destination domain independently before entering credentials",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					target := r.String("host") + r.String("path")
					for _, p := range phishingPatterns {
						if m := p.FindString(target); m != "" {
							return domain.Evidence{
								Summary: "phishing language in URL",
								Fields:  map[string]string{"pattern": m},
							}, true
						}
					}
					return domain.Evidence{}, false
				},
			},
			{
				ID:          "suspicious_tld",
				Category:    "suspicious_tld",
				Severity:    domain.SeverityMedium,
				Weight:      15,
				Applies:     parsed,
				Description: "Host uses high-abuse TLD {tld}",
				Remediation: "Apply additional scrutiny to links on free or high-abuse TLDs",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					host := r.String("host")
					for _, tld := range suspiciousTLDs {
						if strings.HasSuffix(host, tld) {
							return domain.Evidence{
								Summary: "suspicious TLD",
								Fields:  map[string]string{"tld": tld},
							}, true
						}
					}
					return domain.Evidence{}, false
				},
			},
			{
				ID:          "url_shortener",
				Category:    "url_shortener",
				Severity:    domain.SeverityMedium,
				Weight:      15,
				Applies:     parsed,
				Description: "Link goes through URL shortener {host}",
				Remediation: "Expand shortened links before visiting them",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					host := r.String("host")
					if !shortenerHosts[host] {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "URL shortener host",
						Fields:  map[string]string{"host": host},
					}, true
				},
			},
			{
				ID:          "many_subdomains",
				Category:    "many_subdomains",
				Severity:    domain.SeverityMedium,
				Weight:      15,
				Applies:     parsed,
				Description: "Host has {count} subdomain levels",
				Remediation: "Deeply nested subdomains often disguise the registered domain",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					n, _ := r.Int("subdomain_count")
					if n <= 3 {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "excessive subdomain nesting",
						Fields:  map[string]string{"count": fmt.Sprintf("%d", n)},
					}, true
				},
			},
			{
				ID:          "long_url",
				Category:    "long_url",
				Severity:    domain.SeverityLow,
				Weight:      10,
				Applies:     parsed,
				Description: "URL is unusually long ({length} characters)",
				Remediation: "Long URLs frequently pad out obfuscated redirect chains",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					n, _ := r.Int("url_length")
					if n <= longURLThreshold {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "long URL",
						Fields:  map[string]string{"length": fmt.Sprintf("%d", n)},
					}, true
				},
			},
			{
				ID:          "no_https",
				Category:    "no_https",
				Severity:    domain.SeverityLow,
				Weight:      10,
				Applies:     parsed,
				Description: "Connection is not HTTPS (scheme {scheme})",
				Remediation: "Do not submit credentials over plain HTTP",
				Evaluate: func(r domain.Record) (domain.Evidence, bool) {
					scheme := r.String("scheme")
					if scheme == "https" || scheme == "" {
						return domain.Evidence{}, false
					}
					return domain.Evidence{
						Summary: "non-HTTPS scheme",
						Fields:  map[string]string{"scheme": scheme},
					}, true
				},
			},
		},
	}
}
