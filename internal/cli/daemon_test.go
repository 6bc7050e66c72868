package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecspace"
	"github.com/hupe1980/vecspace/blobstore"
	minioblob "github.com/hupe1980/vecspace/blobstore/minio"
	"github.com/hupe1980/vecspace/distance"
	"github.com/hupe1980/vecspace/internal/config"
	"github.com/hupe1980/vecspace/metadata"
	"github.com/hupe1980/vecspace/snapshot"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.ChangeLog.Path = filepath.Join(dir, "changes.log")
	cfg.Snapshot.Backend = "local"
	cfg.Snapshot.Dir = filepath.Join(dir, "snapshots")
	return cfg
}

func startDaemon(t *testing.T, cfg *config.Config) *daemon {
	t.Helper()
	d, err := newDaemon(context.Background(), cfg, vecspace.NoopLogger())
	require.NoError(t, err)
	require.NoError(t, d.start(context.Background()))
	return d
}

func fetchIDs(t *testing.T, d *daemon, ns string, ids ...string) map[string]vecspace.Record {
	t.Helper()
	got, err := d.mgr.Fetch(context.Background(), ns, ids)
	require.NoError(t, err)
	return got
}

func TestDaemon_RecoverFromChangeLog(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Snapshot.Backend = "none"

	d := startDaemon(t, cfg)
	_, err := d.mgr.Upsert(ctx, "ns", []vecspace.Record{
		{ID: "a", Values: []float32{1, 0}, Metadata: metadata.Document{"genre": metadata.String("drama")}},
		{ID: "b", Values: []float32{0, 1}},
	})
	require.NoError(t, err)
	_, err = d.mgr.Delete(ctx, "ns", vecspace.Selector{IDs: []string{"b"}})
	require.NoError(t, err)
	require.NoError(t, d.mgr.Update(ctx, "ns", vecspace.UpdateRequest{
		ID:          "a",
		SetMetadata: metadata.Document{"year": metadata.Int(2020)},
	}))
	require.NoError(t, d.close(ctx, true))

	d = startDaemon(t, cfg)
	defer d.close(ctx, false)

	got := fetchIDs(t, d, "ns", "a", "b")
	require.Len(t, got, 1)
	assert.True(t, got["a"].Metadata.Equal(metadata.Document{
		"genre": metadata.String("drama"),
		"year":  metadata.Int(2020),
	}))
	assert.Equal(t, uint64(3), d.log.LSN())
}

func TestDaemon_SnapshotThenLog(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	d := startDaemon(t, cfg)
	_, err := d.mgr.Upsert(ctx, "ns", []vecspace.Record{{ID: "a", Values: []float32{1, 0}}})
	require.NoError(t, err)

	m, err := d.snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.LSN)
	assert.NoFileExists(t, cfg.ChangeLog.Path+".prev")

	_, err = d.mgr.Upsert(ctx, "ns", []vecspace.Record{{ID: "b", Values: []float32{0, 1}}})
	require.NoError(t, err)
	require.NoError(t, d.close(ctx, false))

	d = startDaemon(t, cfg)
	defer d.close(ctx, false)

	assert.Len(t, fetchIDs(t, d, "ns", "a", "b"), 2)
	assert.Equal(t, uint64(2), d.log.LSN())
}

func TestDaemon_ReplaySkipsSnapshottedEntries(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	d := startDaemon(t, cfg)
	_, err := d.mgr.Upsert(ctx, "ns", []vecspace.Record{{ID: "a", Values: []float32{1, 0}}})
	require.NoError(t, err)
	_, err = d.mgr.Delete(ctx, "ns", vecspace.Selector{DeleteAll: true})
	require.NoError(t, err)
	// The emptied namespace is gone, so the next upsert sets a new dimension.
	_, err = d.mgr.Upsert(ctx, "ns", []vecspace.Record{{ID: "b", Values: []float32{1, 0, 0}}})
	require.NoError(t, err)

	// Save without removing the rotated log, as after a crash between the
	// two steps.
	img, err := d.capture(ctx)
	require.NoError(t, err)
	m, err := img.Save(ctx, d.store)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.LSN)
	require.FileExists(t, cfg.ChangeLog.Path+".prev")
	require.NoError(t, d.close(ctx, false))

	// Replaying the first upsert onto the snapshot would be rejected.
	d = startDaemon(t, cfg)
	defer d.close(ctx, false)

	got := fetchIDs(t, d, "ns", "a", "b")
	require.Len(t, got, 1)
	assert.Equal(t, []float32{1, 0, 0}, got["b"].Values)
}

func TestDaemon_SaveOnShutdown(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	d := startDaemon(t, cfg)
	_, err := d.mgr.Upsert(ctx, "ns", []vecspace.Record{{ID: "a", Values: []float32{1, 0}}})
	require.NoError(t, err)
	require.NoError(t, d.close(ctx, true))

	m, err := snapshot.LoadManifest(ctx, blobstore.NewLocalStore(cfg.Snapshot.Dir))
	require.NoError(t, err)
	assert.Equal(t, 1, m.TotalRecords())
	assert.Equal(t, uint64(1), m.LSN)
}

func TestDaemon_SnapshotDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Snapshot.Backend = "none"

	d := startDaemon(t, cfg)
	defer d.close(context.Background(), true)

	_, err := d.snapshot(context.Background())
	assert.ErrorIs(t, err, errSnapshotsDisabled)
}

func TestManagerOptions_Namespaces(t *testing.T) {
	alpha := 0.2
	cfg := testConfig(t)
	cfg.Engine.Metric = "dotproduct"
	cfg.Engine.Alpha = 0.7
	cfg.Engine.Namespaces = map[string]config.NamespaceConfig{
		"inherit":  {Dimension: 3},
		"override": {Metric: "euclidean", Alpha: &alpha},
	}

	d := startDaemon(t, cfg)
	defer d.close(context.Background(), false)

	inherit := d.mgr.NamespaceConfig("inherit")
	assert.Equal(t, 3, inherit.Dimension)
	assert.Equal(t, distance.MetricDot, inherit.Metric)
	assert.InDelta(t, 0.7, inherit.Alpha, 1e-9)

	override := d.mgr.NamespaceConfig("override")
	assert.Equal(t, distance.MetricEuclidean, override.Metric)
	assert.InDelta(t, 0.2, override.Alpha, 1e-9)
}

func TestOpenSnapshotStore(t *testing.T) {
	ctx := context.Background()

	store, err := openSnapshotStore(ctx, config.SnapshotConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = openSnapshotStore(ctx, config.SnapshotConfig{Backend: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, store)

	store, err = openSnapshotStore(ctx, config.SnapshotConfig{
		Backend:   "minio",
		Endpoint:  "localhost:9000",
		Bucket:    "vecspace",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)
	assert.IsType(t, &minioblob.Store{}, store)

	_, err = openSnapshotStore(ctx, config.SnapshotConfig{Backend: "tape"})
	assert.Error(t, err)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func TestDaemon_Handler(t *testing.T) {
	cfg := testConfig(t)
	d := startDaemon(t, cfg)
	defer d.close(context.Background(), false)

	srv := httptest.NewServer(d.handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/vectors/upsert", map[string]any{
		"namespace": "ns",
		"vectors":   []map[string]any{{"id": "a", "values": []float32{1, 0}}},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/debug/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats vecspace.BasicMetricsStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.UpsertCount)
	assert.Equal(t, int64(1), stats.UpsertRecords)
}

func TestDaemon_WriteBarrier(t *testing.T) {
	cfg := testConfig(t)
	d := startDaemon(t, cfg)
	defer d.close(context.Background(), false)

	srv := httptest.NewServer(d.handler())
	defer srv.Close()

	d.barrier.Lock()

	done := make(chan int, 1)
	go func() {
		body := `{"namespace":"ns","vectors":[{"id":"a","values":[1,0]}]}`
		resp, err := http.Post(srv.URL+"/vectors/upsert", "application/json", bytes.NewReader([]byte(body)))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	// Reads are not held back.
	resp := postJSON(t, srv.URL+"/query", map[string]any{"namespace": "ns", "vector": []float32{1, 0}, "topK": 1})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-done:
		t.Fatal("upsert passed the write barrier")
	case <-time.After(50 * time.Millisecond):
	}

	d.barrier.Unlock()
	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(5 * time.Second):
		t.Fatal("upsert did not complete")
	}
}

func TestDaemon_Serve(t *testing.T) {
	cfg := testConfig(t)
	cfg.Snapshot.Interval = 10 * time.Millisecond
	d := startDaemon(t, cfg)
	defer d.close(context.Background(), false)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	resp := postJSON(t, url+"/vectors/upsert", map[string]any{
		"namespace": "ns",
		"vectors":   []map[string]any{{"id": "a", "values": []float32{1, 0}}},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	store := blobstore.NewLocalStore(cfg.Snapshot.Dir)
	assert.Eventually(t, func() bool {
		m, err := snapshot.LoadManifest(context.Background(), store)
		return err == nil && m.TotalRecords() == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
}
