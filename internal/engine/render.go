package engine

import (
	"strings"
	"unicode/utf8"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// maxFieldLen bounds every rendered value so indicators stay small and
// JSON-safe regardless of what a signature captured.
const maxFieldLen = 512

// Render expands a description or remediation template against match
// evidence. Templates reference evidence fields as {name}; {summary}
// expands to the evidence summary. Missing fields expand to the empty
// string. Output is stripped of control characters and truncated.
func Render(template string, ev domain.Evidence) string {
	if template == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			b.WriteString(rest)
			break
		}
		close += open

		b.WriteString(rest[:open])
		name := rest[open+1 : close]
		b.WriteString(truncate(lookup(ev, name), maxFieldLen))
		rest = rest[close+1:]
	}

	return truncate(sanitize(b.String()), maxFieldLen)
}

func lookup(ev domain.Evidence, name string) string {
	if name == "summary" {
		return ev.Summary
	}
	if ev.Fields == nil {
		return ""
	}
	return ev.Fields[name]
}

// sanitize removes embedded control characters so indicators are safe
// to serialize and log.
func sanitize(s string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return clean
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
