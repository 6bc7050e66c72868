package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecspace"
	"github.com/hupe1980/vecspace/api"
	"github.com/hupe1980/vecspace/blobstore"
	minioblob "github.com/hupe1980/vecspace/blobstore/minio"
	s3blob "github.com/hupe1980/vecspace/blobstore/s3"
	"github.com/hupe1980/vecspace/changelog"
	"github.com/hupe1980/vecspace/distance"
	"github.com/hupe1980/vecspace/internal/config"
	"github.com/hupe1980/vecspace/namespace"
	"github.com/hupe1980/vecspace/resource"
	"github.com/hupe1980/vecspace/snapshot"
)

var errSnapshotsDisabled = errors.New("snapshots are disabled")

// daemon wires the manager to its change log, its snapshot store and the
// HTTP API.
type daemon struct {
	cfg       *config.Config
	logger    *vecspace.Logger
	mgr       *vecspace.Manager
	metrics   *vecspace.BasicMetricsCollector
	resources *resource.Controller
	store     blobstore.Store // nil when snapshots are disabled
	log       *logFile        // nil when the change log is disabled

	// barrier pauses the write routes while a snapshot rotates the log and
	// captures the namespaces.
	barrier sync.RWMutex
	snapMu  sync.Mutex
}

func newDaemon(ctx context.Context, cfg *config.Config, logger *vecspace.Logger) (*daemon, error) {
	d := &daemon{
		cfg:       cfg,
		logger:    logger,
		metrics:   &vecspace.BasicMetricsCollector{},
		resources: resource.NewController(cfg.Resources),
	}

	store, err := openSnapshotStore(ctx, cfg.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	d.store = store

	opts, err := managerOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, vecspace.WithLogger(logger), vecspace.WithMetricsCollector(d.metrics))

	if cfg.ChangeLog.Path != "" {
		c, err := changelog.ParseCompression(cfg.ChangeLog.Compression)
		if err != nil {
			return nil, err
		}
		d.log = newLogFile(cfg.ChangeLog.Path, c)
		opts = append(opts, vecspace.WithChangeLog(d.log))
	}

	mgr, err := vecspace.New(opts...)
	if err != nil {
		return nil, err
	}
	d.mgr = mgr
	return d, nil
}

// managerOptions maps the engine and resource sections to manager options.
func managerOptions(cfg *config.Config) ([]vecspace.Option, error) {
	e := cfg.Engine
	metric, err := distance.ParseMetric(e.Metric)
	if err != nil {
		return nil, err
	}

	opts := []vecspace.Option{
		vecspace.WithDimension(e.Dimension),
		vecspace.WithMetric(metric),
		vecspace.WithHybridAlpha(e.Alpha),
		vecspace.WithCapacity(e.Capacity),
		vecspace.WithMaxTopK(e.MaxTopK),
		vecspace.WithResourceLimits(cfg.Resources),
	}
	if e.KeepEmptyNamespaces {
		opts = append(opts, vecspace.WithKeepEmptyNamespaces())
	}

	for name, ns := range e.Namespaces {
		nc := namespace.Config{Dimension: ns.Dimension, Metric: metric, Alpha: e.Alpha}
		if ns.Metric != "" {
			if nc.Metric, err = distance.ParseMetric(ns.Metric); err != nil {
				return nil, fmt.Errorf("namespace %q: %w", name, err)
			}
		}
		if ns.Alpha != nil {
			nc.Alpha = *ns.Alpha
		}
		opts = append(opts, vecspace.WithNamespaceConfig(name, nc))
	}
	return opts, nil
}

// openSnapshotStore returns nil for the "none" backend.
func openSnapshotStore(ctx context.Context, cfg config.SnapshotConfig) (blobstore.Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "local":
		return blobstore.NewLocalStore(cfg.Dir), nil
	case "s3":
		var optFns []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		store := s3blob.NewStore(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix)
		if cfg.DynamoDBTable == "" {
			return store, nil
		}
		baseURI := "s3://" + path.Join(cfg.Bucket, cfg.Prefix)
		return s3blob.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, baseURI), nil
	case "minio":
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minioblob.NewStore(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

func (d *daemon) snapshotOptions() (func(o *snapshot.Options), error) {
	c, err := changelog.ParseCompression(d.cfg.Snapshot.Compression)
	if err != nil {
		return nil, err
	}
	return func(o *snapshot.Options) {
		o.Compression = c
		o.Resources = d.resources
		o.Retain = d.cfg.Snapshot.Retain
	}, nil
}

// start restores the latest snapshot and replays the change log on top of
// it. Entries the snapshot already covers are skipped.
func (d *daemon) start(ctx context.Context) error {
	var after uint64
	if d.store != nil && d.cfg.Snapshot.RestoreOnStart {
		opt, err := d.snapshotOptions()
		if err != nil {
			return err
		}
		m, err := snapshot.Load(ctx, d.store, d.mgr, opt)
		switch {
		case errors.Is(err, snapshot.ErrNotFound):
			d.logger.InfoContext(ctx, "no snapshot to restore")
		case err != nil:
			return fmt.Errorf("restore snapshot: %w", err)
		default:
			after = m.LSN
			d.logger.InfoContext(ctx, "snapshot restored",
				"snapshot_id", m.ID,
				"namespaces", len(m.Namespaces),
				"records", m.TotalRecords(),
				"lsn", m.LSN,
			)
		}
	}

	if d.log == nil {
		return nil
	}

	var dst changelog.Applier
	if d.cfg.ChangeLog.Replay {
		dst = d.mgr
	}
	res, err := d.log.replay(ctx, after, dst)
	d.logger.LogReplay(ctx, res.Applied, err)
	if err != nil {
		return fmt.Errorf("replay change log: %w", err)
	}
	return d.log.open(res, max(res.LastLSN, after))
}

// snapshot saves the current state. The log is rotated and the namespaces
// are captured with writes paused; the upload runs concurrently with them.
func (d *daemon) snapshot(ctx context.Context) (*snapshot.Manifest, error) {
	if d.store == nil {
		return nil, errSnapshotsDisabled
	}
	opt, err := d.snapshotOptions()
	if err != nil {
		return nil, err
	}

	d.snapMu.Lock()
	defer d.snapMu.Unlock()

	img, err := d.capture(ctx)
	if err != nil {
		d.logger.LogSnapshot(ctx, "", 0, err)
		return nil, err
	}

	m, err := img.Save(ctx, d.store, opt)
	if err != nil {
		d.logger.LogSnapshot(ctx, "", len(img.Namespaces), err)
		return nil, err
	}
	d.logger.LogSnapshot(ctx, m.ID, len(m.Namespaces), nil)

	if d.log != nil {
		if err := d.log.DropPrevious(); err != nil {
			d.logger.WarnContext(ctx, "failed to remove rotated change log", "error", err)
		}
	}
	return m, nil
}

func (d *daemon) capture(ctx context.Context) (*snapshot.Image, error) {
	d.barrier.Lock()
	defer d.barrier.Unlock()

	var lsn uint64
	if d.log != nil {
		var err error
		if lsn, err = d.log.Rotate(); err != nil {
			return nil, fmt.Errorf("rotate change log: %w", err)
		}
	}
	img, err := snapshot.Capture(ctx, d.mgr)
	if err != nil {
		return nil, err
	}
	img.LSN = lsn
	return img, nil
}

// handler returns the API handler behind the write barrier plus the health
// and stats endpoints.
func (d *daemon) handler() http.Handler {
	apiHandler := api.NewHandler(api.NewDispatcher(d.mgr), func(o *api.HandlerOptions) {
		o.MaxBodyBytes = d.cfg.Server.MaxBodyBytes
		o.Logger = d.logger
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /debug/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d.metrics.GetStats())
	})
	mux.Handle("/", d.withWriteBarrier(apiHandler))
	return mux
}

func isWriteRoute(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	switch r.URL.Path {
	case "/vectors/upsert", "/vectors/delete", "/vectors/update":
		return true
	}
	return false
}

func (d *daemon) withWriteBarrier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWriteRoute(r) {
			d.barrier.RLock()
			defer d.barrier.RUnlock()
		}
		next.ServeHTTP(w, r)
	})
}

// serve runs the HTTP server on ln and the periodic snapshots until ctx is
// done, then shuts the server down.
func (d *daemon) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      d.handler(),
		ReadTimeout:  d.cfg.Server.ReadTimeout,
		WriteTimeout: d.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.logger.InfoContext(gctx, "listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), d.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if interval := d.cfg.Snapshot.Interval; interval > 0 && d.store != nil {
		g.Go(func() error {
			d.snapshotLoop(gctx, interval)
			return nil
		})
	}
	return g.Wait()
}

func (d *daemon) snapshotLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures are logged by snapshot; the next tick retries.
			_, _ = d.snapshot(ctx)
		}
	}
}

// close takes the shutdown snapshot if configured and releases the log and
// the manager.
func (d *daemon) close(ctx context.Context, saveSnapshot bool) error {
	var errs []error
	if saveSnapshot && d.store != nil {
		if _, err := d.snapshot(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown snapshot: %w", err))
		}
	}
	if d.log != nil {
		errs = append(errs, d.log.Close())
	}
	errs = append(errs, d.mgr.Close())
	return errors.Join(errs...)
}
