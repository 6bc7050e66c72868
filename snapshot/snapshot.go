package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/vecspace/blobstore"
	"github.com/hupe1980/vecspace/changelog"
	"github.com/hupe1980/vecspace/model"
	"github.com/hupe1980/vecspace/namespace"
	"github.com/hupe1980/vecspace/resource"
)

// DefaultBatchSize is the number of records per change log entry.
const DefaultBatchSize = 1000

// Source is the state a snapshot is taken from. *vecspace.Manager
// implements it.
type Source interface {
	ListNamespaces() []string
	NamespaceConfig(name string) namespace.Config
	Export(ctx context.Context, ns string) ([]model.Record, error)
}

// Options configures Save and Load.
type Options struct {
	// Compression applied to namespace blobs. Default: CompressionZstd.
	Compression changelog.Compression
	// BatchSize is the number of records per change log entry.
	BatchSize int
	// Resources throttles blob IO. Nil means unlimited.
	Resources *resource.Controller
	// Retain is the number of snapshots kept after a successful Save.
	// Zero keeps all of them.
	Retain int
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Compression: changelog.CompressionZstd,
		BatchSize:   DefaultBatchSize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return opts
}

// Image is an in-memory copy of the records of every namespace.
type Image struct {
	// LSN is recorded in the manifest. See Manifest.LSN.
	LSN        uint64
	Namespaces []NamespaceImage
}

// NamespaceImage holds the records of one namespace ordered by id.
type NamespaceImage struct {
	Name    string
	Config  namespace.Config
	Records []model.Record
}

// Capture copies every non-empty namespace of src.
//
// Each namespace is exported separately; writes that land while Capture runs
// may or may not be included. Callers that need a consistent image pause
// their writers around Capture, which is much shorter than Save.
func Capture(ctx context.Context, src Source) (*Image, error) {
	img := &Image{}
	for _, ns := range src.ListNamespaces() {
		records, err := src.Export(ctx, ns)
		if err != nil {
			return nil, fmt.Errorf("export namespace %q: %w", ns, err)
		}
		if len(records) == 0 {
			continue // reaped since listing
		}
		img.Namespaces = append(img.Namespaces, NamespaceImage{
			Name:    ns,
			Config:  src.NamespaceConfig(ns),
			Records: records,
		})
	}
	return img, nil
}

// Save captures src and writes it to store. See Image.Save.
func Save(ctx context.Context, store blobstore.Store, src Source, optFns ...func(o *Options)) (*Manifest, error) {
	img, err := Capture(ctx, src)
	if err != nil {
		return nil, err
	}
	return img.Save(ctx, store, optFns...)
}

// Save writes the image to store and points CURRENT at the new snapshot.
func (img *Image) Save(ctx context.Context, store blobstore.Store, optFns ...func(o *Options)) (*Manifest, error) {
	opts := applyOptions(optFns)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate snapshot id: %w", err)
	}

	m := &Manifest{
		Version:   CurrentVersion,
		ID:        id.String(),
		CreatedAt: time.Now().UTC(),
		LSN:       img.LSN,
	}
	dir := snapshotDir(m.ID)

	for i, ns := range img.Namespaces {
		data, err := encodeNamespace(ctx, ns.Name, ns.Records, opts)
		if err != nil {
			return nil, fmt.Errorf("encode namespace %q: %w", ns.Name, err)
		}
		if err := opts.Resources.AcquireIO(ctx, len(data)); err != nil {
			return nil, err
		}

		blob := path.Join(dir, fmt.Sprintf("ns-%06d.log", i))
		if err := store.Put(ctx, blob, data); err != nil {
			return nil, fmt.Errorf("write namespace %q: %w", ns.Name, err)
		}
		m.Namespaces = append(m.Namespaces, NamespaceInfo{
			Name:    ns.Name,
			Path:    blob,
			Records: len(ns.Records),
			Size:    int64(len(data)),
			Config:  ns.Config,
		})
	}

	if err := writeManifest(ctx, store, m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := store.Put(ctx, CurrentName, []byte(manifestPath(m.ID))); err != nil {
		return nil, fmt.Errorf("commit %s: %w", CurrentName, err)
	}

	if opts.Retain > 0 {
		if _, err := Prune(ctx, store, opts.Retain); err != nil {
			return m, fmt.Errorf("prune snapshots: %w", err)
		}
	}
	return m, nil
}

func encodeNamespace(ctx context.Context, ns string, records []model.Record, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	w := changelog.NewWriter(&buf, func(o *changelog.Options) {
		o.Compression = opts.Compression
	})
	for chunk := range slices.Chunk(records, opts.BatchSize) {
		if err := w.Append(ctx, changelog.Entry{
			Op:        changelog.OpUpsert,
			Namespace: ns,
			Records:   chunk,
		}); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load restores the snapshot CURRENT points to into dst. Records are
// upserted on top of whatever dst already holds. It returns ErrNotFound when
// the store holds no snapshot.
func Load(ctx context.Context, store blobstore.Store, dst changelog.Applier, optFns ...func(o *Options)) (*Manifest, error) {
	m, err := LoadManifest(ctx, store)
	if err != nil {
		return nil, err
	}
	if err := Restore(ctx, store, m, dst, optFns...); err != nil {
		return nil, err
	}
	return m, nil
}

// Restore replays the namespaces of m into dst.
func Restore(ctx context.Context, store blobstore.Store, m *Manifest, dst changelog.Applier, optFns ...func(o *Options)) error {
	opts := applyOptions(optFns)

	for _, info := range m.Namespaces {
		data, err := store.Get(ctx, info.Path)
		if err != nil {
			return fmt.Errorf("read namespace %q: %w", info.Name, err)
		}
		if err := opts.Resources.AcquireIO(ctx, len(data)); err != nil {
			return err
		}
		if err := restoreNamespace(ctx, info, data, dst); err != nil {
			return err
		}
	}
	return nil
}

func restoreNamespace(ctx context.Context, info NamespaceInfo, data []byte, dst changelog.Applier) error {
	r := changelog.NewReader(bytes.NewReader(data))
	restored := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: namespace %q: %w", ErrCorrupt, info.Name, err)
		}
		if e.Op != changelog.OpUpsert || e.Namespace != info.Name {
			return fmt.Errorf("%w: namespace %q: unexpected %s entry for %q", ErrCorrupt, info.Name, e.Op, e.Namespace)
		}
		if err := dst.Apply(ctx, e); err != nil {
			return fmt.Errorf("restore namespace %q: %w", info.Name, err)
		}
		restored += len(e.Records)
	}
	if restored != info.Records {
		return fmt.Errorf("%w: namespace %q: %d records, manifest says %d", ErrCorrupt, info.Name, restored, info.Records)
	}
	return nil
}

// List returns the ids of all snapshots in the store, oldest first.
func List(ctx context.Context, store blobstore.Store) ([]string, error) {
	names, err := store.List(ctx, Dir+"/")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, name := range names {
		rel := strings.TrimPrefix(name, Dir+"/")
		id, file, ok := strings.Cut(rel, "/")
		if ok && file == ManifestName {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Prune deletes all but the newest keep snapshots and returns how many were
// deleted. The snapshot CURRENT points to is never deleted.
func Prune(ctx context.Context, store blobstore.Store, keep int) (int, error) {
	if keep <= 0 {
		return 0, fmt.Errorf("keep must be positive, got %d", keep)
	}

	ids, err := List(ctx, store)
	if err != nil {
		return 0, err
	}
	if len(ids) <= keep {
		return 0, nil
	}

	var current string
	if b, err := store.Get(ctx, CurrentName); err == nil {
		current = string(b)
	} else if !errors.Is(err, blobstore.ErrNotFound) {
		return 0, err
	}

	deleted := 0
	for _, id := range ids[:len(ids)-keep] {
		if manifestPath(id) == current {
			continue
		}
		if err := deleteSnapshot(ctx, store, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func deleteSnapshot(ctx context.Context, store blobstore.Store, id string) error {
	names, err := store.List(ctx, snapshotDir(id)+"/")
	if err != nil {
		return err
	}
	// Manifest last, so a partially deleted snapshot is still listed.
	slices.SortFunc(names, func(a, b string) int {
		am, bm := path.Base(a) == ManifestName, path.Base(b) == ManifestName
		switch {
		case am == bm:
			return strings.Compare(a, b)
		case am:
			return 1
		default:
			return -1
		}
	})
	for _, name := range names {
		if err := store.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	return nil
}
