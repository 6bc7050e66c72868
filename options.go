package vecspace

import (
	"log/slog"

	"github.com/hupe1980/vecspace/distance"
	"github.com/hupe1980/vecspace/namespace"
	"github.com/hupe1980/vecspace/resource"
)

// DefaultMaxTopK is the default upper bound for a query's topK.
const DefaultMaxTopK = 10_000

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger

	defaults   namespace.Config
	namespaces map[string]namespace.Config

	capacity  int
	maxTopK   int
	keepEmpty bool

	resources *resource.Controller
	changeLog ChangeLogSink
}

// Option configures a Manager.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecspace.BasicMetricsCollector{}
//	m, _ := vecspace.New(vecspace.WithMetricsCollector(metrics))
//	// ... use m ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecspace.NewJSONLogger(slog.LevelInfo)
//	m, _ := vecspace.New(vecspace.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithDimension fixes the dense dimension of every namespace up front.
// Without it, the first dense insert into a namespace establishes its
// dimension.
func WithDimension(dim int) Option {
	return func(o *options) {
		o.defaults.Dimension = dim
	}
}

// WithMetric sets the default dense similarity metric. Default: cosine.
func WithMetric(metric distance.Metric) Option {
	return func(o *options) {
		o.defaults.Metric = metric
	}
}

// WithHybridAlpha sets the default dense weight of hybrid scores:
// score = alpha*dense + (1-alpha)*sparse. Default: 0.5.
func WithHybridAlpha(alpha float64) Option {
	return func(o *options) {
		o.defaults.Alpha = alpha
	}
}

// WithNamespaceConfig overrides the configuration of one namespace.
func WithNamespaceConfig(name string, cfg namespace.Config) Option {
	return func(o *options) {
		if o.namespaces == nil {
			o.namespaces = make(map[string]namespace.Config)
		}
		o.namespaces[name] = cfg
	}
}

// WithCapacity sets the number of records the manager is sized for. It only
// feeds the index fullness reported by DescribeIndexStats.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithMaxTopK bounds the topK of a single query. Default: DefaultMaxTopK.
func WithMaxTopK(k int) Option {
	return func(o *options) {
		o.maxTopK = k
	}
}

// WithKeepEmptyNamespaces keeps a namespace, and its established dimension,
// after its last record is deleted. By default such namespaces are reaped.
func WithKeepEmptyNamespaces() Option {
	return func(o *options) {
		o.keepEmpty = true
	}
}

// WithResourceLimits bounds concurrent queries and throttles writes.
//
// Example:
//
//	m, _ := vecspace.New(vecspace.WithResourceLimits(resource.Config{
//	    MaxConcurrentQueries: 8,
//	    WriteRecordsPerSec:   50_000,
//	}))
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = resource.NewController(cfg)
	}
}

// WithChangeLog appends every applied mutation to sink.
func WithChangeLog(sink ChangeLogSink) Option {
	return func(o *options) {
		o.changeLog = sink
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		defaults:         namespace.DefaultConfig(),
		maxTopK:          DefaultMaxTopK,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
