package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is matched by every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrMalformedSparseVector indicates a sparse vector with mismatched
	// index/value lengths or repeated indices.
	ErrMalformedSparseVector = errors.New("malformed sparse vector")

	// ErrInvalidVector indicates a record without any vector component, or one
	// containing NaN or infinite values.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrInvalidID indicates an empty record id.
	ErrInvalidID = errors.New("invalid id")

	// ErrInvalidSelector indicates conflicting or missing delete selectors.
	ErrInvalidSelector = errors.New("invalid delete selector")

	// ErrNotFound indicates that the targeted record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTopK indicates a negative or too large topK.
	ErrInvalidTopK = errors.New("invalid topK")
)

// DimensionMismatchError indicates a dense vector whose length disagrees with
// the namespace dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
