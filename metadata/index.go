package metadata

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// InvertedIndex maps top-level metadata fields and values to posting lists of
// record ordinals.
//
// Architecture:
//   - postings: field -> valueKey -> bitmap of ordinals
//   - present:  field -> bitmap of ordinals that carry the field
//
// Array fields are indexed under the key of the whole array and under the key
// of every element, which is what lets $eq and $in answer "any element"
// membership from the index. Nested documents are not indexed.
//
// InvertedIndex is not safe for concurrent use; the owning namespace
// serializes access.
type InvertedIndex struct {
	postings map[string]map[string]*roaring.Bitmap
	present  map[string]*roaring.Bitmap
}

// NewInvertedIndex creates an empty index.
func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{
		postings: make(map[string]map[string]*roaring.Bitmap),
		present:  make(map[string]*roaring.Bitmap),
	}
}

// Add indexes doc under ordinal id.
func (ix *InvertedIndex) Add(id uint32, doc Document) {
	for field, value := range doc {
		bm, ok := ix.present[field]
		if !ok {
			bm = roaring.New()
			ix.present[field] = bm
		}
		bm.Add(id)

		for key := range valueKeys(value) {
			values, ok := ix.postings[field]
			if !ok {
				values = make(map[string]*roaring.Bitmap)
				ix.postings[field] = values
			}
			posting, ok := values[key]
			if !ok {
				posting = roaring.New()
				values[key] = posting
			}
			posting.Add(id)
		}
	}
}

// Remove drops ordinal id from every posting list doc was indexed under.
func (ix *InvertedIndex) Remove(id uint32, doc Document) {
	for field, value := range doc {
		if bm, ok := ix.present[field]; ok {
			bm.Remove(id)
			if bm.IsEmpty() {
				delete(ix.present, field)
			}
		}

		values, ok := ix.postings[field]
		if !ok {
			continue
		}
		for key := range valueKeys(value) {
			posting, ok := values[key]
			if !ok {
				continue
			}
			posting.Remove(id)
			if posting.IsEmpty() {
				delete(values, key)
			}
		}
		if len(values) == 0 {
			delete(ix.postings, field)
		}
	}
}

// Lookup returns the ordinals whose field equals value (or contains it, for
// array fields). The result must not be modified.
func (ix *InvertedIndex) Lookup(field string, value Value) *roaring.Bitmap {
	if values, ok := ix.postings[field]; ok {
		if posting, ok := values[value.Key()]; ok {
			return posting
		}
	}
	return roaring.New()
}

// LookupField returns the ordinals that carry field. The result must not be modified.
func (ix *InvertedIndex) LookupField(field string) *roaring.Bitmap {
	if bm, ok := ix.present[field]; ok {
		return bm
	}
	return roaring.New()
}

// Reset removes every posting list.
func (ix *InvertedIndex) Reset() {
	clear(ix.postings)
	clear(ix.present)
}

// valueKeys yields the distinct posting keys a value is indexed under.
func valueKeys(v Value) iter.Seq[string] {
	return func(yield func(string) bool) {
		switch v.Kind {
		case KindDocument, KindInvalid:
			return
		case KindArray:
			if !yield(v.Key()) {
				return
			}
			seen := make(map[string]struct{}, len(v.A))
			for _, item := range v.A {
				if item.Kind == KindDocument || item.Kind == KindInvalid {
					continue
				}
				k := item.Key()
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
				if !yield(k) {
					return
				}
			}
		default:
			yield(v.Key())
		}
	}
}
