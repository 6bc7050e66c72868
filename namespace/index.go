// Package namespace implements the index of a single namespace: the records
// it owns, their metadata posting lists and exact top-K search.
package namespace

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/vecspace/metadata"
	"github.com/hupe1980/vecspace/model"
	"github.com/hupe1980/vecspace/scorer"
)

// entry is a stored record together with its scoring form.
type entry struct {
	ordinal uint32
	rec     model.Record
	target  scorer.Target
}

// Index owns the records of one namespace.
//
// Readers (Fetch, Query, Count) share the lock; mutations hold it
// exclusively for the time needed to apply them, so a reader never observes a
// partially applied record. Every record handed out is a copy.
type Index struct {
	mu sync.RWMutex

	name   string
	cfg    Config
	scorer *scorer.Scorer

	// dim is the established dense dimension, 0 until the first dense insert.
	dim int

	byID     map[string]*entry
	slots    []*entry // ordinal -> entry, nil for free slots
	free     []uint32
	inverted *metadata.InvertedIndex

	dropped bool
}

// New creates an empty index for the named namespace.
func New(name string, cfg Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := scorer.New(cfg.Metric, cfg.Alpha)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Index{
		name:     name,
		cfg:      cfg,
		scorer:   s,
		dim:      cfg.Dimension,
		byID:     make(map[string]*entry),
		inverted: metadata.NewInvertedIndex(),
	}, nil
}

// Name returns the namespace name.
func (ix *Index) Name() string { return ix.name }

// Config returns the namespace configuration.
func (ix *Index) Config() Config { return ix.cfg }

// Len returns the number of records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID)
}

// Dimension returns the established dense dimension, or 0 if none.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Upsert inserts or fully replaces records.
//
// Records are validated one by one; an invalid record is reported in the
// result and does not block the rest of the batch. The first dense record
// fixes the dimension when none is established yet.
func (ix *Index) Upsert(records []model.Record) (UpsertResult, error) {
	return ix.UpsertCommit(records, nil)
}

// UpsertCommit is Upsert with a commit hook. When at least one record was
// written, commit runs before the write lock is released, so the hooks of
// one index observe mutations in the order they were applied. A commit error
// is returned as is; the written records stay in place.
func (ix *Index) UpsertCommit(records []model.Record, commit func(UpsertResult) error) (UpsertResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dropped {
		return UpsertResult{}, ErrDropped
	}

	var res UpsertResult
	for i := range records {
		if err := ix.upsertLocked(&records[i]); err != nil {
			res.Errors = append(res.Errors, RecordError{Index: i, ID: records[i].ID, Err: err})
			continue
		}
		res.UpsertedCount++
	}
	if commit != nil && res.UpsertedCount > 0 {
		return res, commit(res)
	}
	return res, nil
}

func (ix *Index) upsertLocked(rec *model.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := ix.checkDimensionLocked(rec.Values); err != nil {
		return err
	}

	stored := rec.Clone()
	if len(stored.Values) > 0 && ix.dim == 0 {
		ix.dim = len(stored.Values)
	}

	if old, ok := ix.byID[stored.ID]; ok {
		ix.replaceLocked(old, stored)
		return nil
	}

	ix.insertLocked(stored)
	return nil
}

func (ix *Index) checkDimensionLocked(values []float32) error {
	if len(values) > 0 && ix.dim != 0 && len(values) != ix.dim {
		return dimensionMismatch(ix.dim, len(values))
	}
	return nil
}

func (ix *Index) insertLocked(rec model.Record) {
	var ord uint32
	if n := len(ix.free); n > 0 {
		ord = ix.free[n-1]
		ix.free = ix.free[:n-1]
	} else {
		ord = uint32(len(ix.slots))
		ix.slots = append(ix.slots, nil)
	}

	e := newEntry(ord, rec)
	ix.slots[ord] = e
	ix.byID[rec.ID] = e
	ix.inverted.Add(ord, rec.Metadata)
}

// replaceLocked swaps a new entry into the slot of old. The old entry is never
// modified, so copies handed out earlier stay valid.
func (ix *Index) replaceLocked(old *entry, rec model.Record) {
	ix.inverted.Remove(old.ordinal, old.rec.Metadata)

	e := newEntry(old.ordinal, rec)
	ix.slots[e.ordinal] = e
	ix.byID[rec.ID] = e
	ix.inverted.Add(e.ordinal, rec.Metadata)
}

func (ix *Index) removeLocked(e *entry) {
	ix.inverted.Remove(e.ordinal, e.rec.Metadata)
	ix.slots[e.ordinal] = nil
	ix.free = append(ix.free, e.ordinal)
	delete(ix.byID, e.rec.ID)
}

func newEntry(ord uint32, rec model.Record) *entry {
	return &entry{
		ordinal: ord,
		rec:     rec,
		target:  scorer.NewTarget(rec.Values, rec.Sparse),
	}
}

// Selector chooses the records removed by Delete. Exactly one of IDs, Filter
// or DeleteAll must be set.
type Selector struct {
	IDs       []string
	Filter    metadata.Document
	DeleteAll bool
}

// Validate checks that exactly one selection mode is set.
func (s Selector) Validate() error {
	modes := 0
	if len(s.IDs) > 0 {
		modes++
	}
	if len(s.Filter) > 0 {
		modes++
	}
	if s.DeleteAll {
		modes++
	}
	switch modes {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%w: one of ids, filter or deleteAll is required", model.ErrInvalidSelector)
	default:
		return fmt.Errorf("%w: ids, filter and deleteAll are mutually exclusive", model.ErrInvalidSelector)
	}
}

// Delete removes the selected records and returns how many were removed.
// Unknown ids are ignored.
func (ix *Index) Delete(sel Selector) (int, error) {
	return ix.DeleteCommit(sel, nil)
}

// DeleteCommit is Delete with a commit hook that runs under the write lock
// when at least one record was removed.
func (ix *Index) DeleteCommit(sel Selector, commit func(removed int) error) (int, error) {
	if err := sel.Validate(); err != nil {
		return 0, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dropped {
		return 0, nil
	}

	removed := ix.deleteLocked(sel)
	if commit != nil && removed > 0 {
		return removed, commit(removed)
	}
	return removed, nil
}

func (ix *Index) deleteLocked(sel Selector) int {
	switch {
	case sel.DeleteAll:
		n := len(ix.byID)
		clear(ix.byID)
		ix.slots = ix.slots[:0]
		ix.free = ix.free[:0]
		ix.inverted.Reset()
		return n
	case len(sel.IDs) > 0:
		removed := 0
		for _, id := range sel.IDs {
			if e, ok := ix.byID[id]; ok {
				ix.removeLocked(e)
				removed++
			}
		}
		return removed
	default:
		filter := metadata.Compile(sel.Filter)
		var victims []*entry
		ix.eachCandidateLocked(filter, func(e *entry) bool {
			if filter.Matches(e.rec.Metadata) {
				victims = append(victims, e)
			}
			return true
		})
		for _, e := range victims {
			ix.removeLocked(e)
		}
		return len(victims)
	}
}

// Fetch returns copies of the requested records that exist.
func (ix *Index) Fetch(ids []string) map[string]model.Record {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make(map[string]model.Record, len(ids))
	for _, id := range ids {
		if e, ok := ix.byID[id]; ok {
			out[id] = e.rec.Clone()
		}
	}
	return out
}

// UpdateRequest describes a partial update of one record.
type UpdateRequest struct {
	ID string
	// Values replaces the dense values when non-empty.
	Values []float32
	// Sparse replaces the sparse values when non-nil.
	Sparse *model.SparseValues
	// SetMetadata is shallow-merged into the existing metadata.
	SetMetadata metadata.Document
}

// Validate checks the request in isolation.
func (r *UpdateRequest) Validate() error {
	if r.ID == "" {
		return model.ErrInvalidID
	}
	if err := model.ValidateValues(r.Values); err != nil {
		return err
	}
	return r.Sparse.Validate()
}

// Update applies a partial update. The new version of the record is built
// on a copy and swapped in atomically.
func (ix *Index) Update(req UpdateRequest) error {
	return ix.UpdateCommit(req, nil)
}

// UpdateCommit is Update with a commit hook that runs under the write lock
// once the new version is in place.
func (ix *Index) UpdateCommit(req UpdateRequest, commit func() error) error {
	if err := req.Validate(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dropped {
		return ErrDropped
	}

	old, ok := ix.byID[req.ID]
	if !ok {
		return fmt.Errorf("%w: id %q", model.ErrNotFound, req.ID)
	}
	if err := ix.checkDimensionLocked(req.Values); err != nil {
		return err
	}

	next := old.rec.Clone()
	if len(req.Values) > 0 {
		next.Values = slices.Clone(req.Values)
	}
	if req.Sparse != nil {
		next.Sparse = req.Sparse.Clone()
	}
	if req.SetMetadata != nil {
		next.Metadata = next.Metadata.Merge(req.SetMetadata)
	}
	if !next.HasDense() && !next.HasSparse() {
		return fmt.Errorf("%w: update would leave %q without values", model.ErrInvalidVector, req.ID)
	}

	if len(next.Values) > 0 && ix.dim == 0 {
		ix.dim = len(next.Values)
	}
	ix.replaceLocked(old, next)
	if commit != nil {
		return commit()
	}
	return nil
}

// Count returns the number of records whose metadata satisfies filter.
// A nil filter counts every record.
func (ix *Index) Count(filter *metadata.Filter) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if filter == nil {
		return len(ix.byID)
	}
	n := 0
	ix.eachCandidateLocked(filter, func(e *entry) bool {
		if filter.Matches(e.rec.Metadata) {
			n++
		}
		return true
	})
	return n
}

// ListIDs returns up to limit ids with the given prefix that sort after
// the token, in ascending order, and the token of the next page ("" when
// there is none). A limit <= 0 returns every remaining id.
func (ix *Index) ListIDs(prefix string, limit int, after string) ([]string, string) {
	ix.mu.RLock()
	ids := make([]string, 0, len(ix.byID))
	for id := range ix.byID {
		if strings.HasPrefix(id, prefix) && id > after {
			ids = append(ids, id)
		}
	}
	ix.mu.RUnlock()

	slices.Sort(ids)
	if limit <= 0 || len(ids) <= limit {
		return ids, ""
	}
	return ids[:limit], ids[limit-1]
}

// Export returns copies of every record ordered by id.
func (ix *Index) Export() []model.Record {
	ix.mu.RLock()
	out := make([]model.Record, 0, len(ix.byID))
	for _, e := range ix.byID {
		out = append(out, e.rec.Clone())
	}
	ix.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Record) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Drop marks the index as dropped if it holds no records. Later mutations
// fail with ErrDropped. It reports whether the index was dropped.
func (ix *Index) Drop() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ix.byID) > 0 {
		return false
	}
	ix.dropped = true
	return true
}

// eachCandidateLocked visits the entries that may satisfy filter, in
// ascending ordinal order, until fn returns false. Callers still evaluate the
// filter; candidate sets are supersets.
func (ix *Index) eachCandidateLocked(filter *metadata.Filter, fn func(*entry) bool) {
	if filter.MatchesNothing() {
		return
	}
	if bm, ok := filter.Candidates(ix.inverted); ok {
		it := bm.Iterator()
		for it.HasNext() {
			ord := it.Next()
			if int(ord) >= len(ix.slots) {
				break
			}
			if e := ix.slots[ord]; e != nil && !fn(e) {
				return
			}
		}
		return
	}
	for _, e := range ix.slots {
		if e != nil && !fn(e) {
			return
		}
	}
}
