package blobio

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prometheus package ships a Prometheus implementation.
type MetricsCollector interface {
	// RecordRangeRead is called after each ranged download (including cache hits).
	RecordRangeRead(bytes int, duration time.Duration, cached bool, err error)

	// RecordBlockUpload is called after each staged block, retries included.
	RecordBlockUpload(bytes int, duration time.Duration, err error)

	// RecordCommit is called after each commit attempt sequence.
	RecordCommit(blocks int, duration time.Duration, err error)

	// RecordBatch is called after each batch operation.
	// count is the number of items attempted, failed is the number that failed.
	RecordBatch(op string, count, failed int, duration time.Duration)

	// RecordList is called after each prefix listing.
	RecordList(entries, pages int, duration time.Duration, err error)

	// RecordRetry is called every time a transient failure is retried.
	RecordRetry(op string, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRangeRead(int, time.Duration, bool, error) {}
func (NoopMetricsCollector) RecordBlockUpload(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordCommit(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordBatch(string, int, int, time.Duration)     {}
func (NoopMetricsCollector) RecordList(int, int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordRetry(string, error)                       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	RangeReads       atomic.Int64
	RangeReadBytes   atomic.Int64
	RangeReadErrors  atomic.Int64
	CacheHits        atomic.Int64
	BlockUploads     atomic.Int64
	BlockUploadBytes atomic.Int64
	BlockErrors      atomic.Int64
	Commits          atomic.Int64
	CommitErrors     atomic.Int64
	CommitTotalNanos atomic.Int64
	Batches          atomic.Int64
	BatchItems       atomic.Int64
	BatchFailed      atomic.Int64
	Lists            atomic.Int64
	ListEntries      atomic.Int64
	ListPages        atomic.Int64
	Retries          atomic.Int64
}

// RecordRangeRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRangeRead(bytes int, _ time.Duration, cached bool, err error) {
	b.RangeReads.Add(1)
	if err != nil {
		b.RangeReadErrors.Add(1)
		return
	}
	b.RangeReadBytes.Add(int64(bytes))
	if cached {
		b.CacheHits.Add(1)
	}
}

// RecordBlockUpload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBlockUpload(bytes int, _ time.Duration, err error) {
	b.BlockUploads.Add(1)
	if err != nil {
		b.BlockErrors.Add(1)
		return
	}
	b.BlockUploadBytes.Add(int64(bytes))
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(_ int, duration time.Duration, err error) {
	b.Commits.Add(1)
	b.CommitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CommitErrors.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(_ string, count, failed int, _ time.Duration) {
	b.Batches.Add(1)
	b.BatchItems.Add(int64(count))
	b.BatchFailed.Add(int64(failed))
}

// RecordList implements MetricsCollector.
func (b *BasicMetricsCollector) RecordList(entries, pages int, _ time.Duration, _ error) {
	b.Lists.Add(1)
	b.ListEntries.Add(int64(entries))
	b.ListPages.Add(int64(pages))
}

// RecordRetry implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRetry(string, error) {
	b.Retries.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RangeReads:       b.RangeReads.Load(),
		RangeReadBytes:   b.RangeReadBytes.Load(),
		RangeReadErrors:  b.RangeReadErrors.Load(),
		CacheHits:        b.CacheHits.Load(),
		BlockUploads:     b.BlockUploads.Load(),
		BlockUploadBytes: b.BlockUploadBytes.Load(),
		BlockErrors:      b.BlockErrors.Load(),
		Commits:          b.Commits.Load(),
		CommitErrors:     b.CommitErrors.Load(),
		CommitAvgNanos:   b.getAvgCommitNanos(),
		Batches:          b.Batches.Load(),
		BatchItems:       b.BatchItems.Load(),
		BatchFailed:      b.BatchFailed.Load(),
		Lists:            b.Lists.Load(),
		ListEntries:      b.ListEntries.Load(),
		ListPages:        b.ListPages.Load(),
		Retries:          b.Retries.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgCommitNanos() int64 {
	count := b.Commits.Load()
	if count == 0 {
		return 0
	}
	return b.CommitTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RangeReads       int64
	RangeReadBytes   int64
	RangeReadErrors  int64
	CacheHits        int64
	BlockUploads     int64
	BlockUploadBytes int64
	BlockErrors      int64
	Commits          int64
	CommitErrors     int64
	CommitAvgNanos   int64
	Batches          int64
	BatchItems       int64
	BatchFailed      int64
	Lists            int64
	ListEntries      int64
	ListPages        int64
	Retries          int64
}
