package model

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/vecspace/metadata"
)

// SparseValues is a sparse vector: parallel slices of indices and values.
type SparseValues struct {
	Indices []uint32
	Values  []float32
}

// Len returns the number of non-zero entries.
func (s *SparseValues) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Indices)
}

// Validate checks that indices and values have equal length, that indices
// are pairwise unique and that every value is finite.
func (s *SparseValues) Validate() error {
	if s == nil {
		return nil
	}
	if len(s.Indices) != len(s.Values) {
		return fmt.Errorf("%w: %d indices, %d values", ErrMalformedSparseVector, len(s.Indices), len(s.Values))
	}

	seen := make(map[uint32]struct{}, len(s.Indices))
	for _, idx := range s.Indices {
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("%w: duplicate index %d", ErrMalformedSparseVector, idx)
		}
		seen[idx] = struct{}{}
	}

	if err := ValidateValues(s.Values); err != nil {
		return err
	}
	return nil
}

// Clone returns a deep copy. Clone of nil is nil.
func (s *SparseValues) Clone() *SparseValues {
	if s == nil {
		return nil
	}
	return &SparseValues{
		Indices: slices.Clone(s.Indices),
		Values:  slices.Clone(s.Values),
	}
}

// Sorted returns a copy ordered by ascending index.
func (s *SparseValues) Sorted() *SparseValues {
	if s == nil {
		return nil
	}

	order := make([]int, len(s.Indices))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return cmp.Compare(s.Indices[a], s.Indices[b])
	})

	out := &SparseValues{
		Indices: make([]uint32, len(order)),
		Values:  make([]float32, len(order)),
	}
	for i, j := range order {
		out.Indices[i] = s.Indices[j]
		out.Values[i] = s.Values[j]
	}
	return out
}

// Equal reports whether two sparse vectors hold the same entries in the same order.
func (s *SparseValues) Equal(o *SparseValues) bool {
	if s.Len() == 0 || o.Len() == 0 {
		return s.Len() == o.Len()
	}
	return slices.Equal(s.Indices, o.Indices) && slices.Equal(s.Values, o.Values)
}

// Record is the stored unit of a namespace.
type Record struct {
	// ID is unique within a namespace.
	ID string
	// Values is the dense component. It may be empty for sparse-only records.
	Values []float32
	// Sparse is the sparse component. It may be nil for dense-only records.
	Sparse *SparseValues
	// Metadata is the attached metadata document.
	Metadata metadata.Document
}

// HasDense reports whether the record carries a dense vector.
func (r *Record) HasDense() bool { return len(r.Values) > 0 }

// HasSparse reports whether the record carries a non-empty sparse vector.
func (r *Record) HasSparse() bool { return r.Sparse.Len() > 0 }

// Validate checks the record in isolation. Dimension checks against a
// namespace happen in the namespace.
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrInvalidID
	}
	if err := r.Sparse.Validate(); err != nil {
		return err
	}
	if !r.HasDense() && !r.HasSparse() {
		return fmt.Errorf("%w: record %q has neither dense nor sparse values", ErrInvalidVector, r.ID)
	}
	return ValidateValues(r.Values)
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{
		ID:       r.ID,
		Values:   slices.Clone(r.Values),
		Sparse:   r.Sparse.Clone(),
		Metadata: r.Metadata.Clone(),
	}
}

// ValidateValues rejects NaN and infinite components.
func ValidateValues(values []float32) error {
	for i, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at position %d", ErrInvalidVector, i)
		}
	}
	return nil
}

// Match is a scored query result. Payload fields are copies, never aliases
// into stored records.
type Match struct {
	ID       string
	Score    float32
	Values   []float32
	Sparse   *SparseValues
	Metadata metadata.Document
}
