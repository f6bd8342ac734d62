// Package model defines the core domain types for Klaxon.
package model

// Record is the uniform unit of persistence: a flat JSON-style document
// keyed by field name. Storage backends move Records in and out of their
// medium without interpreting them.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge applies every field of partial on top of r and returns r.
// Fields absent from partial are left untouched.
func (r Record) Merge(partial Record) Record {
	for k, v := range partial {
		r[k] = v
	}
	return r
}

// String returns the named field as a string, or "" if absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int returns the named field as an int. JSON round-trips turn numbers into
// float64, so both forms are accepted.
func (r Record) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
