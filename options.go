package blobio

import (
	"log/slog"

	"github.com/hupe1980/blobio/internal/cache"
	"github.com/hupe1980/blobio/resource"
)

const (
	// DefaultReadBufferSize is the chunk size fetched per range read.
	DefaultReadBufferSize = 16 * 1024 * 1024

	// DefaultBlockSize is the upload block size.
	DefaultBlockSize = 8 * 1024 * 1024

	// DefaultUploadConcurrency is the number of blocks staged in parallel per upload.
	DefaultUploadConcurrency = 4

	// DefaultBatchWorkers is the worker pool size of batch operations.
	DefaultBatchWorkers = 16

	// MaxBatchSize caps the items handled per sub-batch.
	MaxBatchSize = 100

	// DefaultContentType is applied to committed objects.
	DefaultContentType = "application/octet-stream"

	// DefaultListProgressInterval is how many listed entries pass between progress logs.
	DefaultListProgressInterval = 10000
)

type options struct {
	logger               *Logger
	metricsCollector     MetricsCollector
	readBufferSize       int
	blockSize            int
	uploadConcurrency    int
	batchWorkers         int
	maxBatchSize         int
	retryPolicy          RetryPolicy
	resources            *resource.Controller
	readCacheBytes       int64
	readCache            cache.ChunkCache
	contentType          string
	listProgressInterval int
}

// Option configures Storage behavior.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:               NoopLogger(),
		metricsCollector:     NoopMetricsCollector{},
		readBufferSize:       DefaultReadBufferSize,
		blockSize:            DefaultBlockSize,
		uploadConcurrency:    DefaultUploadConcurrency,
		batchWorkers:         DefaultBatchWorkers,
		maxBatchSize:         MaxBatchSize,
		retryPolicy:          DefaultRetryPolicy(),
		contentType:          DefaultContentType,
		listProgressInterval: DefaultListProgressInterval,
	}
}

func applyOptions(optFns []Option) options {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.readBufferSize <= 0 {
		o.readBufferSize = DefaultReadBufferSize
	}
	if o.blockSize <= 0 {
		o.blockSize = DefaultBlockSize
	}
	if o.uploadConcurrency <= 0 {
		o.uploadConcurrency = 1
	}
	if o.batchWorkers <= 0 {
		o.batchWorkers = 1
	}
	if o.maxBatchSize <= 0 || o.maxBatchSize > MaxBatchSize {
		o.maxBatchSize = MaxBatchSize
	}
	if o.contentType == "" {
		o.contentType = DefaultContentType
	}
	if o.listProgressInterval <= 0 {
		o.listProgressInterval = DefaultListProgressInterval
	}
	if o.readCacheBytes > 0 {
		lru := cache.NewLRU(o.readCacheBytes, o.resources)
		o.resources.AddReclaimer(lru)
		o.readCache = lru
	}

	return o
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := blobio.NewJSONLogger(slog.LevelInfo)
//	s := blobio.New(client, blobio.WithLogger(logger))
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

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &blobio.BasicMetricsCollector{}
//	s := blobio.New(client, blobio.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Blocks: %d, Retries: %d\n", stats.BlockUploads, stats.Retries)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithReadBufferSize sets the chunk size fetched by each range read.
func WithReadBufferSize(n int) Option {
	return func(o *options) {
		o.readBufferSize = n
	}
}

// WithBlockSize sets the upload block size. The final block of an object may be shorter.
func WithBlockSize(n int) Option {
	return func(o *options) {
		o.blockSize = n
	}
}

// WithUploadConcurrency sets how many blocks of one upload are staged in parallel.
// Upload memory is bounded by blockSize * (concurrency + 1).
func WithUploadConcurrency(n int) Option {
	return func(o *options) {
		o.uploadConcurrency = n
	}
}

// WithBatchWorkers sets the worker pool size of DeleteBatch and ExistsBatch.
func WithBatchWorkers(n int) Option {
	return func(o *options) {
		o.batchWorkers = n
	}
}

// WithMaxBatchSize lowers the per-sub-batch item cap (at most MaxBatchSize).
func WithMaxBatchSize(n int) Option {
	return func(o *options) {
		o.maxBatchSize = n
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) {
		o.retryPolicy = p
	}
}

// WithResourceController shares memory, request and rate limits across components.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithReadCache enables a shared LRU of downloaded chunks with the given capacity in bytes.
// Cached memory is accounted against the resource controller, if any, and is
// evicted whenever an upload block would otherwise wait for memory.
func WithReadCache(capacityBytes int64) Option {
	return func(o *options) {
		o.readCacheBytes = capacityBytes
	}
}

// WithContentType sets the content type applied to written objects.
func WithContentType(contentType string) Option {
	return func(o *options) {
		o.contentType = contentType
	}
}

// WithListProgressInterval sets how many entries pass between listing progress logs.
func WithListProgressInterval(n int) Option {
	return func(o *options) {
		o.listProgressInterval = n
	}
}
