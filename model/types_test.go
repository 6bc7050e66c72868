package model

import (
	"errors"
	"math"
	"testing"

	"github.com/hupe1980/vecspace/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseValidate(t *testing.T) {
	tests := []struct {
		name    string
		sparse  *SparseValues
		wantErr error
	}{
		{"nil", nil, nil},
		{"valid", &SparseValues{Indices: []uint32{3, 1}, Values: []float32{0.5, 1}}, nil},
		{"length mismatch", &SparseValues{Indices: []uint32{1, 2}, Values: []float32{1}}, ErrMalformedSparseVector},
		{"duplicate", &SparseValues{Indices: []uint32{1, 1}, Values: []float32{1, 2}}, ErrMalformedSparseVector},
		{"nan", &SparseValues{Indices: []uint32{1}, Values: []float32{float32(math.NaN())}}, ErrInvalidVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sparse.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSparseSorted(t *testing.T) {
	s := &SparseValues{Indices: []uint32{9, 2, 5}, Values: []float32{0.9, 0.2, 0.5}}
	sorted := s.Sorted()

	assert.Equal(t, []uint32{2, 5, 9}, sorted.Indices)
	assert.Equal(t, []float32{0.2, 0.5, 0.9}, sorted.Values)
	// original order untouched
	assert.Equal(t, []uint32{9, 2, 5}, s.Indices)
}

func TestSparseEqual(t *testing.T) {
	a := &SparseValues{Indices: []uint32{1}, Values: []float32{1}}
	assert.True(t, a.Equal(a.Clone()))
	assert.False(t, a.Equal(&SparseValues{Indices: []uint32{2}, Values: []float32{1}}))

	var nilSparse *SparseValues
	assert.True(t, nilSparse.Equal(&SparseValues{}))
	assert.False(t, nilSparse.Equal(a))
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr error
	}{
		{"dense", Record{ID: "a", Values: []float32{1, 2}}, nil},
		{"sparse only", Record{ID: "a", Sparse: &SparseValues{Indices: []uint32{1}, Values: []float32{1}}}, nil},
		{"empty id", Record{Values: []float32{1}}, ErrInvalidID},
		{"no vectors", Record{ID: "a"}, ErrInvalidVector},
		{"empty sparse", Record{ID: "a", Sparse: &SparseValues{}}, ErrInvalidVector},
		{"inf", Record{ID: "a", Values: []float32{float32(math.Inf(1))}}, ErrInvalidVector},
		{"bad sparse", Record{ID: "a", Values: []float32{1}, Sparse: &SparseValues{Indices: []uint32{1}}}, ErrMalformedSparseVector},
		{"sparse only without indices", Record{ID: "a", Sparse: &SparseValues{Values: []float32{1, 2}}}, ErrMalformedSparseVector},
		{"sparse only duplicate index", Record{ID: "a", Sparse: &SparseValues{Indices: []uint32{4, 4}, Values: []float32{1, 2}}}, ErrMalformedSparseVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRecordClone(t *testing.T) {
	rec := Record{
		ID:       "a",
		Values:   []float32{1, 2},
		Sparse:   &SparseValues{Indices: []uint32{1}, Values: []float32{3}},
		Metadata: metadata.Document{"k": metadata.Strings("x")},
	}
	c := rec.Clone()
	c.Values[0] = 9
	c.Sparse.Values[0] = 9
	c.Metadata["k"].A[0] = metadata.String("y")

	assert.Equal(t, float32(1), rec.Values[0])
	assert.Equal(t, float32(3), rec.Sparse.Values[0])
	assert.Equal(t, "x", rec.Metadata["k"].A[0].StringValue())
}

func TestDimensionMismatchError(t *testing.T) {
	var err error = &DimensionMismatchError{Expected: 3, Actual: 2}
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.EqualError(t, err, "dimension mismatch: expected 3, got 2")

	var dm *DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 3, dm.Expected)
}
