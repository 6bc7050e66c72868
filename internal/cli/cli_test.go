package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecspace"
	"github.com/hupe1980/vecspace/blobstore"
	"github.com/hupe1980/vecspace/snapshot"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("1.2.3", "abc123", "2026-01-02")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "vecspace.yaml")
	content := fmt.Sprintf(`server:
  addr: 127.0.0.1:0
log:
  level: error
engine:
  metric: euclidean
  namespaces:
    docs:
      dimension: 2
changelog:
  path: %s
  compression: lz4
snapshot:
  backend: local
  dir: %s
  secret_key: hunter2
`, filepath.Join(dir, "changes.log"), filepath.Join(dir, "snapshots"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, dir
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vecspaced 1.2.3 (abc123) built on 2026-01-02")
	assert.Contains(t, out, "Go version:")
}

func TestConfigShowCommand(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "metric: euclidean")
	assert.Contains(t, out, "backend: local")
	assert.NotContains(t, out, "hunter2")

	out, err = execute(t, "config", "show", "--config", path, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"backend": "local"`)

	_, err = execute(t, "config", "show", "--config", path, "--format", "toml")
	assert.Error(t, err)
}

func TestConfigValidateCommand(t *testing.T) {
	path, dir := writeConfig(t)

	out, err := execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "Namespaces:       1 configured")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("engine:\n  metric: manhattan\n"), 0o600))
	_, err = execute(t, "config", "validate", "--config", bad)
	assert.Error(t, err)
}

func TestConfigPathCommand(t *testing.T) {
	out, err := execute(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "vecspace.yaml")
	assert.Contains(t, out, "VECSPACE_")
}

func TestSnapshotCommands(t *testing.T) {
	ctx := context.Background()
	path, dir := writeConfig(t)

	// Leave some changes in the log the way a stopped server would.
	cfg := testConfig(t)
	cfg.ChangeLog.Path = filepath.Join(dir, "changes.log")
	cfg.ChangeLog.Compression = "lz4"
	cfg.Snapshot.Backend = "none"
	d := startDaemon(t, cfg)
	_, err := d.mgr.Upsert(ctx, "docs", []vecspace.Record{
		{ID: "a", Values: []float32{1, 0}},
		{ID: "b", Values: []float32{0, 1}},
	})
	require.NoError(t, err)
	require.NoError(t, d.close(ctx, false))

	for range 3 {
		out, err := execute(t, "snapshot", "save", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "1 namespaces, 2 records")
	}

	store := blobstore.NewLocalStore(filepath.Join(dir, "snapshots"))
	ids, err := snapshot.List(ctx, store)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	out, err := execute(t, "snapshot", "list", "--config", path)
	require.NoError(t, err)
	for _, id := range ids {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "current")

	out, err = execute(t, "snapshot", "prune", "--config", path, "--keep", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "2 snapshots removed")

	ids, err = snapshot.List(ctx, store)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	m, err := snapshot.LoadManifest(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, ids[0], m.ID)
	assert.Equal(t, 2, m.TotalRecords())
}

func TestSnapshotCommands_Disabled(t *testing.T) {
	_, dir := writeConfig(t)
	path := filepath.Join(dir, "none.yaml")
	require.NoError(t, os.WriteFile(path, []byte("snapshot:\n  backend: none\n"), 0o600))

	_, err := execute(t, "snapshot", "list", "--config", path)
	assert.ErrorIs(t, err, errSnapshotsDisabled)
}
