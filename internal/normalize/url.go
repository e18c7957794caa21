// Package normalize coerces typed request payloads into the internal
// feature records catalogues evaluate. Derived fields are computed once
// here; signatures only read them. Normalization is deterministic and
// never fails: unparseable input yields a record flagged parse_failed.
package normalize

import (
	"net"
	"net/url"
	"strings"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// URLInput is the analyze-url request payload.
type URLInput struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url"`
}

// URL builds the phishing-catalogue record for one URL.
func URL(in URLInput) domain.Record {
	rec := domain.Record{
		"id":  in.ID,
		"url": in.URL,
	}

	raw := strings.TrimSpace(in.URL)
	if raw == "" {
		rec["parse_failed"] = true
		return rec
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		rec["parse_failed"] = true
		return rec
	}

	host := strings.ToLower(u.Hostname())

	rec["parse_failed"] = false
	rec["scheme"] = strings.ToLower(u.Scheme)
	rec["host"] = host
	rec["port"] = u.Port()
	rec["path"] = u.Path
	rec["query"] = u.RawQuery
	rec["url_length"] = len(raw)
	rec["subdomain_count"] = strings.Count(host, ".")
	rec["host_is_ipv4_literal"] = isIPv4Literal(host)
	rec["host_has_non_ascii"] = hasNonASCII(host)
	rec["has_credentials"] = u.User != nil
	if u.User != nil {
		rec["userinfo"] = u.User.Username()
	}
	return rec
}

func isIPv4Literal(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil
}

func hasNonASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}
