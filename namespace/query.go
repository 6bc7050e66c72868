package namespace

import (
	"context"
	"fmt"
	"slices"

	"github.com/hupe1980/vecspace/metadata"
	"github.com/hupe1980/vecspace/model"
	"github.com/hupe1980/vecspace/scorer"
	"github.com/hupe1980/vecspace/searcher"
)

// cancelCheckInterval is the number of scored records between context checks.
const cancelCheckInterval = 1024

// Query is a top-K similarity search.
type Query struct {
	// Values is the dense query vector.
	Values []float32
	// Sparse is the sparse query vector.
	Sparse *model.SparseValues
	// TopK is the number of matches to return. Zero returns no matches.
	TopK int
	// Filter restricts eligible records. Nil means no filtering.
	Filter *metadata.Filter

	IncludeValues   bool
	IncludeMetadata bool
}

// Validate checks the query in isolation.
func (q *Query) Validate() error {
	if q.TopK < 0 {
		return fmt.Errorf("%w: %d", model.ErrInvalidTopK, q.TopK)
	}
	if len(q.Values) == 0 && q.Sparse.Len() == 0 {
		return fmt.Errorf("%w: query has neither dense nor sparse values", model.ErrInvalidVector)
	}
	if err := model.ValidateValues(q.Values); err != nil {
		return err
	}
	return q.Sparse.Validate()
}

// Query scores every eligible record and returns the TopK best, sorted by
// descending score with ties broken by ascending id.
//
// A dense query whose length disagrees with the established dimension fails
// with a dimension mismatch. Cancelling ctx abandons the scan; the index is
// never modified by a query.
func (ix *Index) Query(ctx context.Context, q Query) ([]model.Match, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.TopK == 0 {
		return []model.Match{}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prepared := scorer.NewQuery(q.Values, q.Sparse)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(q.Values) > 0 && ix.dim != 0 && len(q.Values) != ix.dim {
		return nil, dimensionMismatch(ix.dim, len(q.Values))
	}

	top := searcher.AcquireTopK(q.TopK)
	defer searcher.ReleaseTopK(top)

	var (
		scanned int
		ctxErr  error
	)
	ix.eachCandidateLocked(q.Filter, func(e *entry) bool {
		scanned++
		if scanned%cancelCheckInterval == 0 {
			if ctxErr = ctx.Err(); ctxErr != nil {
				return false
			}
		}
		if !q.Filter.Matches(e.rec.Metadata) {
			return true
		}
		score, ok := ix.scorer.Score(&prepared, &e.target)
		if !ok {
			return true
		}
		top.Push(searcher.Candidate{Ordinal: e.ordinal, ID: e.rec.ID, Score: score})
		return true
	})
	if ctxErr != nil {
		return nil, ctxErr
	}

	candidates := top.Sorted()
	matches := make([]model.Match, len(candidates))
	for i, c := range candidates {
		e := ix.slots[c.Ordinal]
		m := model.Match{ID: c.ID, Score: c.Score}
		if q.IncludeValues {
			m.Values = slices.Clone(e.rec.Values)
			m.Sparse = e.rec.Sparse.Clone()
		}
		if q.IncludeMetadata {
			m.Metadata = e.rec.Metadata.Clone()
		}
		matches[i] = m
	}
	return matches, nil
}
