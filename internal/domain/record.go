// Package domain defines the core types and interfaces for Kestrel.
package domain

// Record is the normalized feature map a catalogue evaluates.
// Normalizers produce it once per request; signatures only read it.
// Missing fields are absent, never an error.
type Record map[string]any

// ID returns the record identifier, or "" if the record has none.
func (r Record) ID() string {
	return r.String("id")
}

// String returns the named field as a string, or "" when absent or
// of another type.
func (r Record) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Float returns the named field as a float64. Integer values are
// widened; anything else yields 0 with ok=false.
func (r Record) Float(field string) (float64, bool) {
	switch v := r[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int returns the named field as an int.
func (r Record) Int(field string) (int, bool) {
	switch v := r[field].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Bool returns the named boolean field; absent fields are false.
func (r Record) Bool(field string) bool {
	v, _ := r[field].(bool)
	return v
}

// Has reports whether the field is present.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Strings returns the named field as a string slice.
func (r Record) Strings(field string) []string {
	switch v := r[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
