package metadata

import (
	"maps"
	"slices"
	"strings"
)

// Document is a typed metadata document.
type Document map[string]Value

// Clone creates a deep copy of the metadata document.
//
// Values are deep copied, including arrays and nested documents, so the clone
// is completely independent from the original.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}

	clone := make(Document, len(d))
	for k, v := range d {
		clone[k] = v.clone()
	}
	return clone
}

// Keys returns the document keys in ascending order.
func (d Document) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

// Equal reports whether two documents hold the same keys and equal values.
func (d Document) Equal(o Document) bool {
	if len(d) != len(o) {
		return false
	}
	for k, v := range d {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Merge returns a copy of d with the top-level keys of patch applied.
//
// The merge is shallow: keys present in patch overwrite, keys absent from patch
// are preserved, and a nested document in patch replaces the existing value
// wholesale.
func (d Document) Merge(patch Document) Document {
	out := make(Document, len(d)+len(patch))
	for k, v := range d {
		out[k] = v.clone()
	}
	for k, v := range patch {
		out[k] = v.clone()
	}
	return out
}

// Lookup resolves a field name. A literal key wins; otherwise a dotted path
// descends into nested documents.
func (d Document) Lookup(field string) (Value, bool) {
	if v, ok := d[field]; ok {
		return v, true
	}
	if !strings.Contains(field, ".") {
		return Value{}, false
	}

	cur := d
	parts := strings.Split(field, ".")
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return Value{}, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.AsDocument()
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return Value{}, false
}
