package vecspace

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecspace/changelog"
	"github.com/hupe1980/vecspace/metadata"
	"github.com/hupe1980/vecspace/model"
	"github.com/hupe1980/vecspace/namespace"
)

type (
	// Record is the stored unit of a namespace.
	Record = model.Record
	// SparseValues is a sparse vector.
	SparseValues = model.SparseValues
	// Match is a scored query result.
	Match = model.Match
	// Selector chooses the records removed by Delete.
	Selector = namespace.Selector
	// UpdateRequest describes a partial update of one record.
	UpdateRequest = namespace.UpdateRequest
	// UpsertResult is the outcome of an upsert batch.
	UpsertResult = namespace.UpsertResult
	// RecordError reports why one record of an upsert batch was rejected.
	RecordError = namespace.RecordError
)

// ChangeLogSink receives every mutation applied through the Manager's write
// methods. *changelog.Writer implements it.
//
// Append is called while the namespace is write-locked, so the entries of a
// namespace arrive in the order they were applied. Writes to that namespace
// wait for Append to return.
type ChangeLogSink interface {
	Append(ctx context.Context, e changelog.Entry) error
}

// Manager owns the namespaces of one shard and routes operations to them.
//
// Namespaces are created on first write. Operations on different namespaces
// never contend; the manager lock is held only while resolving a name.
type Manager struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace.Index

	opts    options
	metrics MetricsCollector
	logger  *Logger
	closed  atomic.Bool
}

// New creates an empty Manager.
func New(optFns ...Option) (*Manager, error) {
	o := applyOptions(optFns)
	if err := o.defaults.Validate(); err != nil {
		return nil, err
	}
	for name, cfg := range o.namespaces {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("namespace %q: %w", name, err)
		}
	}
	if o.maxTopK <= 0 {
		return nil, fmt.Errorf("%w: max topK must be positive, got %d", ErrInvalidConfig, o.maxTopK)
	}
	if o.capacity < 0 {
		return nil, fmt.Errorf("%w: negative capacity %d", ErrInvalidConfig, o.capacity)
	}
	return &Manager{
		namespaces: make(map[string]*namespace.Index),
		opts:       o,
		metrics:    o.metricsCollector,
		logger:     o.logger,
	}, nil
}

// Close releases the namespaces. Later calls fail with ErrClosed.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	if m.closed.Swap(true) {
		return ErrClosed
	}
	m.mu.Lock()
	clear(m.namespaces)
	m.mu.Unlock()
	return nil
}

func (m *Manager) checkOpen() error {
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

// NamespaceConfig returns the configuration used for the named namespace.
func (m *Manager) NamespaceConfig(name string) namespace.Config {
	if cfg, ok := m.opts.namespaces[name]; ok {
		return cfg
	}
	return m.opts.defaults
}

// lookup returns the existing index or nil.
func (m *Manager) lookup(name string) *namespace.Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.namespaces[name]
}

// resolve returns the index for name, creating it if needed. Concurrent
// callers for the same new name receive the same index.
func (m *Manager) resolve(ctx context.Context, name string) (*namespace.Index, error) {
	if idx := m.lookup(name); idx != nil {
		return idx, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if idx, ok := m.namespaces[name]; ok {
		return idx, nil
	}
	idx, err := namespace.New(name, m.NamespaceConfig(name))
	if err != nil {
		return nil, err
	}
	m.namespaces[name] = idx
	m.logger.LogNamespace(ctx, name, "created")
	return idx, nil
}

// reap removes idx if it is still registered under name and holds no
// records. Lock order is manager, then index.
func (m *Manager) reap(ctx context.Context, name string, idx *namespace.Index) {
	if m.opts.keepEmpty {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.namespaces[name] != idx || !idx.Drop() {
		return
	}
	delete(m.namespaces, name)
	m.logger.LogNamespace(ctx, name, "removed")
}

// Upsert inserts or fully replaces records in the namespace.
//
// Each record is validated on its own: rejected records are reported in the
// result and the rest of the batch is still written. The returned error is
// reserved for failures of the whole call (cancellation, a closed manager).
func (m *Manager) Upsert(ctx context.Context, ns string, records []Record) (UpsertResult, error) {
	return m.upsert(ctx, ns, records, true)
}

func (m *Manager) upsert(ctx context.Context, ns string, records []Record, logChange bool) (UpsertResult, error) {
	start := time.Now()
	if err := m.checkOpen(); err != nil {
		return UpsertResult{}, err
	}
	if err := m.opts.resources.AcquireWrite(ctx, len(records)); err != nil {
		return UpsertResult{}, err
	}

	var commit func(UpsertResult) error
	if logChange && m.opts.changeLog != nil {
		commit = func(res UpsertResult) error {
			return m.appendChange(ctx, changelog.Entry{
				Op:        changelog.OpUpsert,
				Namespace: ns,
				Records:   acceptedRecords(records, res),
			})
		}
	}

	var (
		res UpsertResult
		idx *namespace.Index
		err error
	)
	for {
		if idx, err = m.resolve(ctx, ns); err != nil {
			break
		}
		if res, err = idx.UpsertCommit(records, commit); !errors.Is(err, namespace.ErrDropped) {
			break
		}
	}

	if err == nil && res.UpsertedCount == 0 {
		m.reap(ctx, ns, idx)
	}

	m.metrics.RecordUpsert(len(records), len(res.Errors), time.Since(start))
	m.logger.LogUpsert(ctx, ns, len(records), len(res.Errors), err)
	return res, err
}

func acceptedRecords(records []Record, res UpsertResult) []Record {
	if len(res.Errors) == 0 {
		return records
	}
	rejected := make(map[int]struct{}, len(res.Errors))
	for _, e := range res.Errors {
		rejected[e.Index] = struct{}{}
	}
	out := make([]Record, 0, len(records)-len(rejected))
	for i := range records {
		if _, ok := rejected[i]; !ok {
			out = append(out, records[i])
		}
	}
	return out
}

// Delete removes the selected records from the namespace and returns how
// many were removed. Deleting from an unknown namespace removes nothing.
func (m *Manager) Delete(ctx context.Context, ns string, sel Selector) (int, error) {
	return m.delete(ctx, ns, sel, true)
}

func (m *Manager) delete(ctx context.Context, ns string, sel Selector, logChange bool) (int, error) {
	start := time.Now()
	removed, err := func() (int, error) {
		if err := m.checkOpen(); err != nil {
			return 0, err
		}
		if err := sel.Validate(); err != nil {
			return 0, err
		}
		if err := m.opts.resources.AcquireWrite(ctx, max(len(sel.IDs), 1)); err != nil {
			return 0, err
		}

		idx := m.lookup(ns)
		if idx == nil {
			return 0, nil
		}
		var commit func(int) error
		if logChange && m.opts.changeLog != nil {
			commit = func(int) error {
				return m.appendChange(ctx, changelog.Entry{Op: changelog.OpDelete, Namespace: ns, Delete: sel})
			}
		}
		removed, err := idx.DeleteCommit(sel, commit)
		if err != nil && removed == 0 {
			return 0, err
		}
		if idx.Len() == 0 {
			m.reap(ctx, ns, idx)
		}
		return removed, err
	}()

	m.metrics.RecordDelete(removed, time.Since(start), err)
	m.logger.LogDelete(ctx, ns, removed, err)
	return removed, err
}

// Fetch returns copies of the requested records that exist in the
// namespace. Unknown ids and unknown namespaces yield no entries.
func (m *Manager) Fetch(ctx context.Context, ns string, ids []string) (map[string]Record, error) {
	start := time.Now()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := map[string]Record{}
	if idx := m.lookup(ns); idx != nil {
		out = idx.Fetch(ids)
	}
	m.metrics.RecordFetch(len(ids), len(out), time.Since(start))
	return out, nil
}

// Update applies a partial update to one record. It fails with ErrNotFound
// when the id does not exist in the namespace.
func (m *Manager) Update(ctx context.Context, ns string, req UpdateRequest) error {
	return m.update(ctx, ns, req, true)
}

func (m *Manager) update(ctx context.Context, ns string, req UpdateRequest, logChange bool) error {
	start := time.Now()
	err := func() error {
		if err := m.checkOpen(); err != nil {
			return err
		}
		if err := req.Validate(); err != nil {
			return err
		}
		if err := m.opts.resources.AcquireWrite(ctx, 1); err != nil {
			return err
		}

		var commit func() error
		if logChange && m.opts.changeLog != nil {
			commit = func() error {
				return m.appendChange(ctx, changelog.Entry{Op: changelog.OpUpdate, Namespace: ns, Update: req})
			}
		}

		for {
			idx := m.lookup(ns)
			if idx == nil {
				return fmt.Errorf("%w: id %q", ErrNotFound, req.ID)
			}
			if err := idx.UpdateCommit(req, commit); !errors.Is(err, namespace.ErrDropped) {
				return err
			}
		}
	}()

	m.metrics.RecordUpdate(time.Since(start), err)
	m.logger.LogUpdate(ctx, ns, req.ID, err)
	return err
}

// appendChange runs under the namespace write lock, so the entries of one
// namespace are logged in apply order.
func (m *Manager) appendChange(ctx context.Context, e changelog.Entry) error {
	if err := m.opts.changeLog.Append(ctx, e); err != nil {
		return fmt.Errorf("append to change log: %w", err)
	}
	return nil
}

// Apply applies a change log entry. Applied entries are not appended to the
// manager's own change log.
func (m *Manager) Apply(ctx context.Context, e changelog.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch e.Op {
	case changelog.OpUpsert:
		res, err := m.upsert(ctx, e.Namespace, e.Records, false)
		if err != nil {
			return err
		}
		return res.Err()
	case changelog.OpDelete:
		_, err := m.delete(ctx, e.Namespace, e.Delete, false)
		return err
	default:
		return m.update(ctx, e.Namespace, e.Update, false)
	}
}

// ListNamespaces returns the names of the live namespaces in ascending order.
func (m *Manager) ListNamespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.namespaces))
}

// ListResult is a page of record ids.
type ListResult struct {
	IDs []string
	// Next is the token of the following page, empty on the last page.
	Next string
}

// ListIDs returns up to limit ids of the namespace that start with prefix and
// sort after token, in ascending order.
func (m *Manager) ListIDs(ctx context.Context, ns, prefix string, limit int, token string) (ListResult, error) {
	if err := m.checkOpen(); err != nil {
		return ListResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ListResult{}, err
	}
	idx := m.lookup(ns)
	if idx == nil {
		return ListResult{IDs: []string{}}, nil
	}
	ids, next := idx.ListIDs(prefix, limit, token)
	return ListResult{IDs: ids, Next: next}, nil
}

// Export returns copies of every record of the namespace ordered by id.
func (m *Manager) Export(ctx context.Context, ns string) ([]Record, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := m.lookup(ns)
	if idx == nil {
		return nil, nil
	}
	return idx.Export(), nil
}

// snapshotIndexes returns the live indexes by name.
func (m *Manager) snapshotIndexes() map[string]*namespace.Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.namespaces)
}

// QuerySpec is one query vector of a batch together with its scope.
type QuerySpec struct {
	Namespace string

	// Values and Sparse form the query vector. When both are empty, ID names
	// a stored record of the namespace whose vectors are used instead.
	Values []float32
	Sparse *SparseValues
	ID     string

	TopK   int
	Filter metadata.Document

	IncludeValues   bool
	IncludeMetadata bool
}

// QueryResult holds the matches of one query vector.
type QueryResult struct {
	Namespace string
	Matches   []Match
}

// Query answers one query vector. Matches are sorted by descending score,
// ties by ascending id. Querying an unknown namespace, or by an id that does
// not exist, returns no matches.
func (m *Manager) Query(ctx context.Context, spec QuerySpec) (QueryResult, error) {
	start := time.Now()
	res, err := m.query(ctx, spec)
	m.metrics.RecordQuery(spec.TopK, len(res.Matches), time.Since(start), err)
	m.logger.LogQuery(ctx, spec.Namespace, spec.TopK, len(res.Matches), err)
	return res, err
}

func (m *Manager) query(ctx context.Context, spec QuerySpec) (QueryResult, error) {
	res := QueryResult{Namespace: spec.Namespace, Matches: []Match{}}
	if err := m.checkOpen(); err != nil {
		return res, err
	}
	if spec.TopK > m.opts.maxTopK {
		return res, fmt.Errorf("%w: %d exceeds the limit of %d", ErrInvalidTopK, spec.TopK, m.opts.maxTopK)
	}

	q := namespace.Query{
		Values:          spec.Values,
		Sparse:          spec.Sparse,
		TopK:            spec.TopK,
		Filter:          metadata.Compile(spec.Filter),
		IncludeValues:   spec.IncludeValues,
		IncludeMetadata: spec.IncludeMetadata,
	}

	byID := spec.ID != "" && len(spec.Values) == 0 && spec.Sparse == nil
	if !byID {
		if spec.ID != "" {
			return res, fmt.Errorf("%w: id and query vector are mutually exclusive", ErrInvalidVector)
		}
		if err := q.Validate(); err != nil {
			return res, err
		}
	} else if spec.TopK < 0 {
		return res, fmt.Errorf("%w: %d", ErrInvalidTopK, spec.TopK)
	}

	idx := m.lookup(spec.Namespace)
	if idx == nil || spec.TopK == 0 {
		return res, ctx.Err()
	}

	if byID {
		stored, ok := idx.Fetch([]string{spec.ID})[spec.ID]
		if !ok {
			return res, ctx.Err()
		}
		q.Values, q.Sparse = stored.Values, stored.Sparse
	}

	if err := m.opts.resources.AcquireQuery(ctx); err != nil {
		return res, err
	}
	defer m.opts.resources.ReleaseQuery()

	matches, err := idx.Query(ctx, q)
	if err != nil {
		return res, err
	}
	res.Matches = matches
	return res, nil
}

// QueryBatch answers each query independently and returns the results in
// submission order. Queries run concurrently; the first failure cancels the
// rest and is returned.
func (m *Manager) QueryBatch(ctx context.Context, specs []QuerySpec) ([]QueryResult, error) {
	results := make([]QueryResult, len(specs))
	if len(specs) == 1 {
		res, err := m.Query(ctx, specs[0])
		if err != nil {
			return nil, err
		}
		results[0] = res
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range specs {
		g.Go(func() error {
			res, err := m.Query(gctx, specs[i])
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
