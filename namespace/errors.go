package namespace

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecspace/model"
)

// ErrDropped is returned by mutations on an index that was reaped after its
// last record was removed. Callers re-resolve the namespace and retry.
var ErrDropped = errors.New("namespace dropped")

// RecordError reports why one record of an upsert batch was rejected.
type RecordError struct {
	// Index is the position of the record in the batch.
	Index int
	ID    string
	Err   error
}

func (e RecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("record %d (%s): %v", e.Index, e.ID, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// UpsertResult is the outcome of an upsert batch. Invalid records do not
// block the others; UpsertedCount counts successes only.
type UpsertResult struct {
	UpsertedCount int
	Errors        []RecordError
}

// Err joins the per-record errors, or returns nil if every record was written.
func (r UpsertResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i := range r.Errors {
		errs[i] = r.Errors[i]
	}
	return errors.Join(errs...)
}

func dimensionMismatch(expected, actual int) error {
	return &model.DimensionMismatchError{Expected: expected, Actual: actual}
}
