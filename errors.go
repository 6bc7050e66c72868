package vecspace

import (
	"errors"

	"github.com/hupe1980/vecspace/model"
	"github.com/hupe1980/vecspace/namespace"
)

var (
	// ErrDimensionMismatch matches every *DimensionMismatchError.
	ErrDimensionMismatch = model.ErrDimensionMismatch

	// ErrMalformedSparseVector is returned for sparse vectors whose index and
	// value lengths disagree or whose indices repeat.
	ErrMalformedSparseVector = model.ErrMalformedSparseVector

	// ErrInvalidVector is returned for records or queries without any vector
	// component and for NaN or infinite values.
	ErrInvalidVector = model.ErrInvalidVector

	// ErrInvalidID is returned for empty record ids.
	ErrInvalidID = model.ErrInvalidID

	// ErrInvalidSelector is returned when a delete names no selection mode or
	// more than one.
	ErrInvalidSelector = model.ErrInvalidSelector

	// ErrNotFound is returned when an update targets an unknown id.
	ErrNotFound = model.ErrNotFound

	// ErrInvalidTopK is returned for a negative topK or one above the limit.
	ErrInvalidTopK = model.ErrInvalidTopK

	// ErrInvalidConfig is returned for invalid namespace configurations.
	ErrInvalidConfig = namespace.ErrInvalidConfig

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("manager is closed")
)

// DimensionMismatchError indicates a dense vector whose length disagrees with
// the namespace dimension.
type DimensionMismatchError = model.DimensionMismatchError

// IsInvalidArgument reports whether err is caused by caller input rather than
// by the engine.
func IsInvalidArgument(err error) bool {
	for _, target := range []error{
		ErrDimensionMismatch,
		ErrMalformedSparseVector,
		ErrInvalidVector,
		ErrInvalidID,
		ErrInvalidSelector,
		ErrInvalidTopK,
		ErrInvalidConfig,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
