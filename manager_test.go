package vecspace

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecspace/changelog"
	"github.com/hupe1980/vecspace/distance"
	"github.com/hupe1980/vecspace/metadata"
	"github.com/hupe1980/vecspace/namespace"
	"github.com/hupe1980/vecspace/resource"
	"github.com/hupe1980/vecspace/testutil"
)

func newManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"negative dimension", WithDimension(-1)},
		{"alpha above one", WithHybridAlpha(1.5)},
		{"unknown metric", WithMetric(distance.Metric(99))},
		{"zero max topK", WithMaxTopK(0)},
		{"negative capacity", WithCapacity(-1)},
		{"bad namespace config", WithNamespaceConfig("ns", namespace.Config{Alpha: -1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestManager_WorkedExample(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	res, err := m.Upsert(ctx, "ns1", []Record{
		{ID: "a", Values: []float32{1, 0}},
		{ID: "b", Values: []float32{0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.UpsertedCount)

	out, err := m.Query(ctx, QuerySpec{Namespace: "ns1", Values: []float32{1, 0}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "a", out.Matches[0].ID)
	assert.InDelta(t, 1.0, out.Matches[0].Score, 1e-6)
	assert.Equal(t, "ns1", out.Namespace)

	removed, err := m.Delete(ctx, "ns1", Selector{IDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := m.Fetch(ctx, "ns1", []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "b")
}

func TestManager_RoundTripAndOverwrite(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	rec := Record{
		ID:       "x",
		Values:   []float32{0.1, 0.2, 0.3},
		Sparse:   &SparseValues{Indices: []uint32{7, 2}, Values: []float32{1, 2}},
		Metadata: metadata.Document{"genre": metadata.String("drama"), "year": metadata.Int(2020)},
	}
	_, err := m.Upsert(ctx, "ns", []Record{rec})
	require.NoError(t, err)

	got, err := m.Fetch(ctx, "ns", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, rec.Values, got["x"].Values)
	assert.True(t, rec.Sparse.Equal(got["x"].Sparse))
	assert.True(t, rec.Metadata.Equal(got["x"].Metadata))

	// A full overwrite drops every field of the prior version.
	_, err = m.Upsert(ctx, "ns", []Record{{ID: "x", Values: []float32{1, 1, 1}}})
	require.NoError(t, err)

	got, err = m.Fetch(ctx, "ns", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1}, got["x"].Values)
	assert.Nil(t, got["x"].Sparse)
	assert.Empty(t, got["x"].Metadata)
}

func TestManager_UpsertPartialFailure(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	res, err := m.Upsert(ctx, "ns", []Record{
		{ID: "ok1", Values: []float32{1, 2}},
		{ID: "bad-dim", Values: []float32{1, 2, 3}},
		{ID: "bad-sparse", Sparse: &SparseValues{Indices: []uint32{1, 1}, Values: []float32{1, 2}}},
		{ID: "", Values: []float32{1, 2}},
		{ID: "ok2", Values: []float32{3, 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.UpsertedCount)
	require.Len(t, res.Errors, 3)
	assert.ErrorIs(t, res.Errors[0], ErrDimensionMismatch)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.ErrorIs(t, res.Errors[1], ErrMalformedSparseVector)
	assert.ErrorIs(t, res.Errors[2], ErrInvalidID)
	assert.ErrorIs(t, res.Err(), ErrDimensionMismatch)

	var dm *DimensionMismatchError
	require.ErrorAs(t, res.Errors[0].Err, &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)

	got, err := m.Fetch(ctx, "ns", []string{"ok1", "ok2", "bad-dim"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestManager_Update(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	_, err := m.Upsert(ctx, "ns", []Record{{
		ID:       "x",
		Values:   []float32{1, 0},
		Metadata: metadata.Document{"a": metadata.Int(1), "b": metadata.String("keep")},
	}})
	require.NoError(t, err)

	t.Run("set metadata only", func(t *testing.T) {
		require.NoError(t, m.Update(ctx, "ns", UpdateRequest{ID: "x", SetMetadata: metadata.Document{"a": metadata.Int(2)}}))
		got, _ := m.Fetch(ctx, "ns", []string{"x"})
		assert.Equal(t, []float32{1, 0}, got["x"].Values)
		assert.True(t, got["x"].Metadata.Equal(metadata.Document{"a": metadata.Int(2), "b": metadata.String("keep")}))
	})

	t.Run("values only", func(t *testing.T) {
		require.NoError(t, m.Update(ctx, "ns", UpdateRequest{ID: "x", Values: []float32{0, 1}}))
		got, _ := m.Fetch(ctx, "ns", []string{"x"})
		assert.Equal(t, []float32{0, 1}, got["x"].Values)
		assert.Equal(t, "keep", got["x"].Metadata["b"].StringValue())
	})

	t.Run("unknown id", func(t *testing.T) {
		assert.ErrorIs(t, m.Update(ctx, "ns", UpdateRequest{ID: "nope", Values: []float32{0, 1}}), ErrNotFound)
	})

	t.Run("unknown namespace", func(t *testing.T) {
		assert.ErrorIs(t, m.Update(ctx, "other", UpdateRequest{ID: "x"}), ErrNotFound)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		assert.ErrorIs(t, m.Update(ctx, "ns", UpdateRequest{ID: "x", Values: []float32{1}}), ErrDimensionMismatch)
	})
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	_, err := m.Upsert(ctx, "ns", testutil.NewRNG(1).Records(20, 4, 4))
	require.NoError(t, err)

	_, err = m.Delete(ctx, "ns", Selector{})
	assert.ErrorIs(t, err, ErrInvalidSelector)
	_, err = m.Delete(ctx, "ns", Selector{IDs: []string{"rec-00000"}, DeleteAll: true})
	assert.ErrorIs(t, err, ErrInvalidSelector)

	removed, err := m.Delete(ctx, "ns", Selector{IDs: []string{"missing"}})
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = m.Delete(ctx, "ns", Selector{Filter: metadata.Document{"bucket": metadata.Int(0)}})
	require.NoError(t, err)
	assert.Equal(t, 5, removed)

	removed, err = m.Delete(ctx, "unknown", Selector{DeleteAll: true})
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = m.Delete(ctx, "ns", Selector{DeleteAll: true})
	require.NoError(t, err)
	assert.Equal(t, 15, removed)
}

func TestManager_ReapsEmptyNamespaces(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	_, err := m.Upsert(ctx, "ns", []Record{{ID: "a", Values: []float32{1, 2}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ns"}, m.ListNamespaces())

	_, err = m.Delete(ctx, "ns", Selector{IDs: []string{"a"}})
	require.NoError(t, err)
	assert.Empty(t, m.ListNamespaces())

	// The dimension was forgotten with the namespace.
	res, err := m.Upsert(ctx, "ns", []Record{{ID: "a", Values: []float32{1, 2, 3}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpsertedCount)

	// A batch that writes nothing leaves no namespace behind.
	res, err = m.Upsert(ctx, "empty", []Record{{ID: ""}})
	require.NoError(t, err)
	assert.Zero(t, res.UpsertedCount)
	assert.Equal(t, []string{"ns"}, m.ListNamespaces())
}

func TestManager_KeepEmptyNamespaces(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, WithKeepEmptyNamespaces())

	_, err := m.Upsert(ctx, "ns", []Record{{ID: "a", Values: []float32{1, 2}}})
	require.NoError(t, err)
	_, err = m.Delete(ctx, "ns", Selector{DeleteAll: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"ns"}, m.ListNamespaces())

	res, err := m.Upsert(ctx, "ns", []Record{{ID: "a", Values: []float32{1, 2, 3}}})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrDimensionMismatch)

	stats, err := m.DescribeIndexStats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, NamespaceSummary{VectorCount: 0}, stats.Namespaces["ns"])
}

func TestManager_ReapRace(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				id := fmt.Sprintf("w%d-%d", w, i)
				res, err := m.Upsert(ctx, "ns", []Record{{ID: id, Values: []float32{1, 0}}})
				assert.NoError(t, err)
				assert.Equal(t, 1, res.UpsertedCount)
				_, err = m.Delete(ctx, "ns", Selector{IDs: []string{id}})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// Every upsert was followed by its delete.
	stats, err := m.DescribeIndexStats(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVectorCount)
}

func TestManager_ConcurrentDisjointUpserts(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	const writers, perWriter = 8, 100
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				_, err := m.Upsert(ctx, "ns", []Record{{ID: fmt.Sprintf("%d-%d", w, i), Values: []float32{float32(w), float32(i)}}})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	ids := make([]string, 0, writers*perWriter)
	for w := range writers {
		for i := range perWriter {
			ids = append(ids, fmt.Sprintf("%d-%d", w, i))
		}
	}
	got, err := m.Fetch(ctx, "ns", ids)
	require.NoError(t, err)
	assert.Len(t, got, writers*perWriter)
}

func TestManager_Query(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, WithMetric(distance.MetricDot), WithMaxTopK(50))

	recs := testutil.NewRNG(7).Records(100, 8, 4)
	_, err := m.Upsert(ctx, "ns", recs)
	require.NoError(t, err)

	query := recs[3].Values

	t.Run("topK ordering", func(t *testing.T) {
		out, err := m.Query(ctx, QuerySpec{Namespace: "ns", Values: query, TopK: 10})
		require.NoError(t, err)
		require.Len(t, out.Matches, 10)
		for i := 1; i < len(out.Matches); i++ {
			prev, cur := out.Matches[i-1], out.Matches[i]
			assert.True(t, prev.Score > cur.Score || (prev.Score == cur.Score && prev.ID < cur.ID))
		}
	})

	t.Run("topK above count", func(t *testing.T) {
		m2 := newManager(t)
		_, err := m2.Upsert(ctx, "small", recs[:5])
		require.NoError(t, err)
		out, err := m2.Query(ctx, QuerySpec{Namespace: "small", Values: query, TopK: 50})
		require.NoError(t, err)
		assert.Len(t, out.Matches, 5)
	})

	t.Run("filter", func(t *testing.T) {
		filter := metadata.Document{"bucket": metadata.Doc(metadata.Document{"$in": metadata.Array([]metadata.Value{metadata.Int(1), metadata.Int(2)})})}
		out, err := m.Query(ctx, QuerySpec{Namespace: "ns", Values: query, TopK: 50, Filter: filter, IncludeMetadata: true})
		require.NoError(t, err)
		assert.Len(t, out.Matches, 50)
		for _, match := range out.Matches {
			b, _ := match.Metadata["bucket"].AsInt64()
			assert.Contains(t, []int64{1, 2}, b)
		}
	})

	t.Run("always false filter", func(t *testing.T) {
		filter := metadata.Document{"$or": metadata.Array(nil)}
		out, err := m.Query(ctx, QuerySpec{Namespace: "ns", Values: query, TopK: 50, Filter: filter})
		require.NoError(t, err)
		assert.Empty(t, out.Matches)
	})

	t.Run("topK zero", func(t *testing.T) {
		out, err := m.Query(ctx, QuerySpec{Namespace: "ns", Values: query})
		require.NoError(t, err)
		assert.NotNil(t, out.Matches)
		assert.Empty(t, out.Matches)
	})

	t.Run("invalid topK", func(t *testing.T) {
		_, err := m.Query(ctx, QuerySpec{Namespace: "ns", Values: query, TopK: -1})
		assert.ErrorIs(t, err, ErrInvalidTopK)
		_, err = m.Query(ctx, QuerySpec{Namespace: "ns", Values: query, TopK: 51})
		assert.ErrorIs(t, err, ErrInvalidTopK)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := m.Query(ctx, QuerySpec{Namespace: "ns", Values: []float32{1, 2}, TopK: 1})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("no vector", func(t *testing.T) {
		_, err := m.Query(ctx, QuerySpec{Namespace: "ns", TopK: 1})
		assert.ErrorIs(t, err, ErrInvalidVector)
	})

	t.Run("unknown namespace", func(t *testing.T) {
		out, err := m.Query(ctx, QuerySpec{Namespace: "nope", Values: query, TopK: 3})
		require.NoError(t, err)
		assert.Empty(t, out.Matches)
	})

	t.Run("by id", func(t *testing.T) {
		byVector, err := m.Query(ctx, QuerySpec{Namespace: "ns", Values: query, TopK: 5})
		require.NoError(t, err)
		byID, err := m.Query(ctx, QuerySpec{Namespace: "ns", ID: recs[3].ID, TopK: 5})
		require.NoError(t, err)
		assert.Equal(t, byVector.Matches, byID.Matches)

		missing, err := m.Query(ctx, QuerySpec{Namespace: "ns", ID: "missing", TopK: 5})
		require.NoError(t, err)
		assert.Empty(t, missing.Matches)

		_, err = m.Query(ctx, QuerySpec{Namespace: "ns", ID: recs[3].ID, Values: query, TopK: 5})
		assert.ErrorIs(t, err, ErrInvalidVector)
	})
}

func TestManager_QueryBatch(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, WithResourceLimits(resource.Config{MaxConcurrentQueries: 2}))

	_, err := m.Upsert(ctx, "a", []Record{{ID: "a1", Values: []float32{1, 0}}, {ID: "a2", Values: []float32{0, 1}}})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, "b", []Record{{ID: "b1", Values: []float32{1, 1, 0}}})
	require.NoError(t, err)

	specs := []QuerySpec{
		{Namespace: "a", Values: []float32{0, 1}, TopK: 1},
		{Namespace: "b", Values: []float32{1, 1, 0}, TopK: 5},
		{Namespace: "a", Values: []float32{1, 0}, TopK: 2},
		{Namespace: "missing", Values: []float32{1}, TopK: 2},
	}
	results, err := m.QueryBatch(ctx, specs)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "a2", results[0].Matches[0].ID)
	assert.Equal(t, "b", results[1].Namespace)
	assert.Equal(t, "b1", results[1].Matches[0].ID)
	assert.Equal(t, []string{"a1", "a2"}, []string{results[2].Matches[0].ID, results[2].Matches[1].ID})
	assert.Empty(t, results[3].Matches)

	specs = append(specs, QuerySpec{Namespace: "a", Values: []float32{1, 2, 3}, TopK: 1})
	_, err = m.QueryBatch(ctx, specs)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestManager_DescribeIndexStats(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, WithCapacity(100))

	rng := testutil.NewRNG(3)
	_, err := m.Upsert(ctx, "first", rng.Records(10, 4, 2))
	require.NoError(t, err)
	_, err = m.Upsert(ctx, "second", rng.Records(30, 4, 3))
	require.NoError(t, err)

	stats, err := m.DescribeIndexStats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]NamespaceSummary{"first": {VectorCount: 10}, "second": {VectorCount: 30}}, stats.Namespaces)
	assert.Equal(t, 40, stats.TotalVectorCount)
	assert.Equal(t, 4, stats.Dimension)
	assert.InDelta(t, 0.4, stats.IndexFullness, 1e-9)

	t.Run("filter", func(t *testing.T) {
		stats, err := m.DescribeIndexStats(ctx, metadata.Document{"bucket": metadata.Int(2)})
		require.NoError(t, err)
		assert.Equal(t, map[string]NamespaceSummary{"second": {VectorCount: 10}}, stats.Namespaces)
		assert.Equal(t, 10, stats.TotalVectorCount)
		assert.InDelta(t, 0.4, stats.IndexFullness, 1e-9)
	})

	t.Run("mixed dimensions", func(t *testing.T) {
		_, err := m.Upsert(ctx, "third", []Record{{ID: "x", Values: []float32{1, 2}}})
		require.NoError(t, err)
		stats, err := m.DescribeIndexStats(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, stats.Dimension)
	})

	t.Run("configured dimension", func(t *testing.T) {
		m2 := newManager(t, WithDimension(8))
		stats, err := m2.DescribeIndexStats(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 8, stats.Dimension)
		assert.Empty(t, stats.Namespaces)
		assert.Zero(t, stats.IndexFullness)
	})
}

func TestManager_NamespaceConfig(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, WithNamespaceConfig("euclid", namespace.Config{Metric: distance.MetricEuclidean, Alpha: 0.5}))

	assert.Equal(t, distance.MetricEuclidean, m.NamespaceConfig("euclid").Metric)
	assert.Equal(t, distance.MetricCosine, m.NamespaceConfig("other").Metric)

	_, err := m.Upsert(ctx, "euclid", []Record{{ID: "a", Values: []float32{1, 0}}, {ID: "b", Values: []float32{3, 0}}})
	require.NoError(t, err)

	out, err := m.Query(ctx, QuerySpec{Namespace: "euclid", Values: []float32{1, 0}, TopK: 2})
	require.NoError(t, err)
	require.Len(t, out.Matches, 2)
	assert.Equal(t, "a", out.Matches[0].ID)
	assert.InDelta(t, 1.0, out.Matches[0].Score, 1e-6)
	assert.InDelta(t, 0.2, out.Matches[1].Score, 1e-6)
}

func TestManager_ChangeLogReplay(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	w := changelog.NewWriter(&buf, func(o *changelog.Options) { o.Compression = changelog.CompressionZstd })

	src := newManager(t, WithChangeLog(w))
	_, err := src.Upsert(ctx, "ns", []Record{
		{ID: "a", Values: []float32{1, 0}, Metadata: metadata.Document{"k": metadata.Int(1)}},
		{ID: "b", Values: []float32{0, 1}},
		{ID: "bad", Values: []float32{1, 2, 3}},
	})
	require.NoError(t, err)
	require.NoError(t, src.Update(ctx, "ns", UpdateRequest{ID: "a", SetMetadata: metadata.Document{"k": metadata.Int(2)}}))
	_, err = src.Delete(ctx, "ns", Selector{IDs: []string{"b"}})
	require.NoError(t, err)
	_, err = src.Delete(ctx, "ns", Selector{IDs: []string{"never-existed"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), w.LSN())

	dst := newManager(t)
	n, err := changelog.Replay(ctx, &buf, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want, err := src.Export(ctx, "ns")
	require.NoError(t, err)
	got, err := dst.Export(ctx, "ns")
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Values, got[i].Values)
		assert.True(t, want[i].Metadata.Equal(got[i].Metadata))
	}
}

// gatedSink holds the first Append until release is closed.
type gatedSink struct {
	w       *changelog.Writer
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSink) Append(ctx context.Context, e changelog.Entry) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.w.Append(ctx, e)
}

func TestManager_ChangeLogOrderMatchesApplyOrder(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	sink := &gatedSink{
		w:       changelog.NewWriter(&buf),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	src := newManager(t, WithChangeLog(sink))

	firstDone := make(chan error, 1)
	go func() {
		_, err := src.Upsert(ctx, "ns", []Record{{ID: "x", Values: []float32{1, 0}}})
		firstDone <- err
	}()
	<-sink.entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := src.Upsert(ctx, "ns", []Record{{ID: "x", Values: []float32{0, 1}}})
		secondDone <- err
	}()

	select {
	case <-secondDone:
		t.Fatal("second write overtook a pending log append")
	case <-time.After(50 * time.Millisecond):
	}

	close(sink.release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	live, err := src.Fetch(ctx, "ns", []string{"x"})
	require.NoError(t, err)

	dst := newManager(t)
	n, err := changelog.Replay(ctx, &buf, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	replayed, err := dst.Fetch(ctx, "ns", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, live["x"].Values)
	assert.Equal(t, live["x"].Values, replayed["x"].Values)
}

func TestManager_ListIDs(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	_, err := m.Upsert(ctx, "ns", testutil.NewRNG(1).Records(25, 2, 1))
	require.NoError(t, err)

	var all []string
	token := ""
	for {
		page, err := m.ListIDs(ctx, "ns", "rec-", 10, token)
		require.NoError(t, err)
		all = append(all, page.IDs...)
		if page.Next == "" {
			break
		}
		token = page.Next
	}
	assert.Len(t, all, 25)
	assert.IsIncreasing(t, all)

	page, err := m.ListIDs(ctx, "missing", "", 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.IDs)
}

func TestManager_Closed(t *testing.T) {
	ctx := context.Background()
	m, err := New()
	require.NoError(t, err)
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Close(), ErrClosed)

	_, err = m.Upsert(ctx, "ns", []Record{{ID: "a", Values: []float32{1}}})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Query(ctx, QuerySpec{Namespace: "ns", Values: []float32{1}, TopK: 1})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Fetch(ctx, "ns", []string{"a"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Delete(ctx, "ns", Selector{DeleteAll: true})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Update(ctx, "ns", UpdateRequest{ID: "a"}), ErrClosed)
	_, err = m.DescribeIndexStats(ctx, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_Metrics(t *testing.T) {
	ctx := context.Background()
	mc := &BasicMetricsCollector{}
	m := newManager(t, WithMetricsCollector(mc), WithLogger(NoopLogger()))

	_, err := m.Upsert(ctx, "ns", []Record{{ID: "a", Values: []float32{1, 0}}, {ID: ""}})
	require.NoError(t, err)
	_, err = m.Query(ctx, QuerySpec{Namespace: "ns", Values: []float32{1, 0}, TopK: 1})
	require.NoError(t, err)
	_, err = m.Query(ctx, QuerySpec{Namespace: "ns", TopK: 1})
	require.Error(t, err)
	_, err = m.Fetch(ctx, "ns", []string{"a", "b"})
	require.NoError(t, err)
	_, err = m.Delete(ctx, "ns", Selector{IDs: []string{"a"}})
	require.NoError(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.UpsertCount)
	assert.Equal(t, int64(2), stats.UpsertRecords)
	assert.Equal(t, int64(1), stats.UpsertFailed)
	assert.Equal(t, int64(2), stats.QueryCount)
	assert.Equal(t, int64(1), stats.QueryErrors)
	assert.Equal(t, int64(1), stats.FetchCount)
	assert.Equal(t, int64(1), stats.FetchFound)
	assert.Equal(t, int64(1), stats.DeleteCount)
	assert.Equal(t, int64(1), stats.DeletedRecords)
}

func TestIsInvalidArgument(t *testing.T) {
	assert.True(t, IsInvalidArgument(fmt.Errorf("wrap: %w", ErrInvalidSelector)))
	assert.True(t, IsInvalidArgument(&DimensionMismatchError{Expected: 1, Actual: 2}))
	assert.False(t, IsInvalidArgument(ErrNotFound))
	assert.False(t, IsInvalidArgument(ErrClosed))
}
