// Package record defines the value types that flow through the storage
// layers above the key package: field-maps keyed by field name, the records
// built from them, and field-set projections used by reads and tablets.
package record

import "github.com/pombredanne/merkle-db/key"

// Fields is a field-map: field name to arbitrary value. A nil or empty
// Fields is a legal record payload, representing presence with no data.
type Fields map[string]interface{}

// Clone returns a shallow copy of f; values are not deep-copied.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Project returns the subset of f whose keys are named in fields. A nil
// fields set means "no projection" and returns f unchanged.
func (f Fields) Project(fields map[string]struct{}) Fields {
	if fields == nil {
		return f
	}
	out := make(Fields, len(fields))
	for name := range fields {
		if v, ok := f[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Record pairs a key with its field-map.
type Record struct {
	Key    key.Key
	Fields Fields
}

// Merge combines per-key field-maps gathered from multiple tablets (each
// tablet covering a disjoint family) into one record's worth of fields.
func Merge(maps ...Fields) Fields {
	out := make(Fields)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
