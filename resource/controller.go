// Package resource provides admission control for the engine: bounded query
// concurrency, write throttling and snapshot I/O throttling.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MaxConcurrentQueries bounds the number of query vectors scored at once
	// across all namespaces.
	MaxConcurrentQueries int64 `json:"maxConcurrentQueries" yaml:"max_concurrent_queries"`

	// WriteRecordsPerSec throttles upserted, updated and deleted records.
	WriteRecordsPerSec float64 `json:"writeRecordsPerSec" yaml:"write_records_per_sec"`

	// WriteBurst is the write bucket size. If 0, defaults to one second of
	// WriteRecordsPerSec (at least 1).
	WriteBurst int `json:"writeBurst" yaml:"write_burst"`

	// IOLimitBytesPerSec is the maximum snapshot I/O throughput.
	IOLimitBytesPerSec int64 `json:"ioLimitBytesPerSec" yaml:"io_limit_bytes_per_sec"`
}

// Controller manages shared resources. A nil *Controller admits everything.
type Controller struct {
	cfg Config

	// Concurrency
	querySem      *semaphore.Weighted // nil if unlimited
	activeQueries atomic.Int64

	// Writes
	writeLimiter *rate.Limiter

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}

	if cfg.WriteRecordsPerSec > 0 {
		burst := cfg.WriteBurst
		if burst <= 0 {
			burst = max(int(cfg.WriteRecordsPerSec), 1)
		}
		c.writeLimiter = rate.NewLimiter(rate.Limit(cfg.WriteRecordsPerSec), burst)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the configured limits.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireQuery reserves a query slot.
// Blocks if all slots are busy until one is free or ctx is canceled.
func (c *Controller) AcquireQuery(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.querySem != nil {
		if err := c.querySem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	c.activeQueries.Add(1)
	return nil
}

// ReleaseQuery releases a query slot.
func (c *Controller) ReleaseQuery() {
	if c == nil {
		return
	}
	if c.querySem != nil {
		c.querySem.Release(1)
	}
	c.activeQueries.Add(-1)
}

// ActiveQueries returns the number of queries currently holding a slot.
func (c *Controller) ActiveQueries() int64 {
	if c == nil {
		return 0
	}
	return c.activeQueries.Load()
}

// AcquireWrite waits until the write limit admits n records.
// Batches larger than the burst are admitted in burst-sized steps.
func (c *Controller) AcquireWrite(ctx context.Context, n int) error {
	if c == nil || c.writeLimiter == nil || n <= 0 {
		return nil
	}
	return waitN(ctx, c.writeLimiter, n)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	return waitN(ctx, c.ioLimiter, bytes)
}

// waitN splits n into burst-sized waits; rate.Limiter rejects single waits
// above its burst.
func waitN(ctx context.Context, l *rate.Limiter, n int) error {
	burst := l.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := l.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
