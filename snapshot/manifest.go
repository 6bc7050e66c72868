package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/hupe1980/vecspace/blobstore"
	"github.com/hupe1980/vecspace/namespace"
)

const (
	// CurrentName is the blob holding the path of the latest manifest.
	CurrentName = "CURRENT"
	// ManifestName is the manifest blob inside a snapshot directory.
	ManifestName = "manifest.json"
	// Dir is the directory that holds all snapshots.
	Dir = "snapshots"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

var (
	// ErrNotFound is returned when the store holds no snapshot.
	ErrNotFound = errors.New("snapshot not found")

	// ErrIncompatibleVersion is returned when the manifest version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")

	// ErrCorrupt is returned when a snapshot disagrees with its manifest.
	ErrCorrupt = errors.New("corrupt snapshot")
)

// Manifest describes one snapshot.
type Manifest struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// LSN is the last change log entry contained in the snapshot. Replaying
	// a change log on top of the snapshot starts after it.
	LSN        uint64          `json:"lsn"`
	Namespaces []NamespaceInfo `json:"namespaces"`
}

// NamespaceInfo describes the blob of one namespace.
type NamespaceInfo struct {
	Name    string           `json:"name"`
	Path    string           `json:"path"` // Relative to the store root
	Records int              `json:"records"`
	Size    int64            `json:"size"`
	Config  namespace.Config `json:"config"`
}

// TotalRecords returns the number of records over all namespaces.
func (m *Manifest) TotalRecords() int {
	n := 0
	for _, ns := range m.Namespaces {
		n += ns.Records
	}
	return n
}

func snapshotDir(id string) string {
	return path.Join(Dir, id)
}

func manifestPath(id string) string {
	return path.Join(snapshotDir(id), ManifestName)
}

// LoadManifest returns the manifest CURRENT points to.
func LoadManifest(ctx context.Context, store blobstore.Store) (*Manifest, error) {
	current, err := store.Get(ctx, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", CurrentName, err)
	}
	return readManifest(ctx, store, string(current))
}

// LoadManifestByID returns the manifest of the given snapshot.
func LoadManifestByID(ctx context.Context, store blobstore.Store, id string) (*Manifest, error) {
	return readManifest(ctx, store, manifestPath(id))
}

func readManifest(ctx context.Context, store blobstore.Store, name string) (*Manifest, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: manifest %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", name, err)
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %w", ErrCorrupt, name, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, m.Version)
	}
	return m, nil
}

func writeManifest(ctx context.Context, store blobstore.Store, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return store.Put(ctx, manifestPath(m.ID), data)
}
