package rollup

import (
	"log/slog"

	"github.com/hupe1980/rollup/blobstore"
	"github.com/hupe1980/rollup/blobstore/location"
	"github.com/hupe1980/rollup/codec"
	"github.com/hupe1980/rollup/colindex"
	"github.com/hupe1980/rollup/incremental"
	"github.com/hupe1980/rollup/internal/resource"
)

type options struct {
	dataSource       string
	indexOptions     []incremental.Option
	resource         resource.Config
	store            blobstore.BlobStore
	location         string
	locationConfig   location.Config
	codec            codec.Codec
	compression      string
	parser           incremental.Parser
	spatial          colindex.SpatialConfig
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures an Ingestor.
type Option func(*options)

// WithDataSource names the data source. The name prefixes snapshot blobs
// and is attached to every log record.
func WithDataSource(name string) Option {
	return func(o *options) {
		o.dataSource = name
	}
}

// WithIndexOptions passes options to the underlying incremental index,
// for example incremental.WithMaxRows or incremental.WithKeyPolicy.
func WithIndexOptions(opts ...incremental.Option) Option {
	return func(o *options) {
		o.indexOptions = append(o.indexOptions, opts...)
	}
}

// WithShards sets the number of independently locked lanes of the index.
// Convenience wrapper for WithIndexOptions(incremental.WithShards(n)).
func WithShards(n int) Option {
	return WithIndexOptions(incremental.WithShards(n))
}

// WithMemoryLimit bounds the estimated bytes held by the index. Rows that
// would exceed it are rejected. Zero tracks usage without a limit.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.resource.MemoryLimitBytes = bytes
	}
}

// WithBackgroundWorkers bounds the goroutines used by Fold.
func WithBackgroundWorkers(n int64) Option {
	return func(o *options) {
		o.resource.MaxBackgroundWorkers = n
	}
}

// WithIOLimit throttles snapshot reads and writes to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.resource.IOLimitBytesPerSec = bytesPerSec
	}
}

// WithStore persists snapshots to store.
func WithStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithLocation persists snapshots to the store at uri, opened with
// location.Open when the Ingestor is created. Supported schemes are file://
// (or a bare path), mem://, s3:// and minio://.
//
// Example:
//
//	ing, _ := rollup.New(ctx, schema,
//	    rollup.WithLocation("s3://my-bucket/rollups", location.Config{CommitTable: "commits"}),
//	)
func WithLocation(uri string, cfg location.Config) Option {
	return func(o *options) {
		o.location = uri
		o.locationConfig = cfg
	}
}

// WithCodec configures the codec of snapshot headers.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression compresses snapshot rows. name is "none", "lz4" or "zstd".
// Unknown names make New fail.
func WithCompression(name string) Option {
	return func(o *options) {
		o.compression = name
	}
}

// WithParser sets the parser used by Ingest. Defaults to a JSONParser that
// reads the timestamp from "timestamp" and the metric fields of the schema.
func WithParser(p incremental.Parser) Option {
	return func(o *options) {
		o.parser = p
	}
}

// WithSpatialConfig tunes the cell coverings of spatial columns in segments.
func WithSpatialConfig(cfg colindex.SpatialConfig) Option {
	return func(o *options) {
		o.spatial = cfg
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &rollup.BasicMetricsCollector{}
//	ing, _ := rollup.New(ctx, schema, rollup.WithMetricsCollector(metrics))
//	// ... use ing ...
//	stats := metrics.GetStats()
//	fmt.Printf("Rows: %d, rejected: %d\n", stats.AddCount, stats.AddRejections)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := rollup.NewJSONLogger(slog.LevelInfo)
//	ing, _ := rollup.New(ctx, schema, rollup.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
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

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		spatial:          colindex.DefaultSpatialConfig(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
