package blobio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/samber/mo"

	"github.com/hupe1980/blobio/internal/cache"
	"github.com/hupe1980/blobio/resource"
)

// Downloader pulls byte ranges of one object through a Client with retry.
//
// The object size is fetched lazily on first use and cached for the lifetime
// of the Downloader; the object is assumed immutable during a read session.
// A Downloader is not safe for concurrent use.
type Downloader struct {
	client     Client
	loc        Locator
	path       string
	size       mo.Option[int64]
	bufferSize int

	retry     *retrier
	cache     cache.ChunkCache
	resources *resource.Controller
	metrics   MetricsCollector
}

func newDownloader(client Client, loc Locator, o *options) *Downloader {
	return &Downloader{
		client:     client,
		loc:        loc,
		path:       loc.String(),
		size:       mo.None[int64](),
		bufferSize: o.readBufferSize,
		retry:      &retrier{policy: o.retryPolicy, logger: o.logger, metrics: o.metricsCollector},
		cache:      o.readCache,
		resources:  o.resources,
		metrics:    o.metricsCollector,
	}
}

// Locator returns the object the Downloader reads.
func (d *Downloader) Locator() Locator { return d.loc }

// BufferSize returns the chunk size used by readers built on d.
func (d *Downloader) BufferSize() int { return d.bufferSize }

// Size returns the object length, fetching it on first call.
// Fails with ErrNotFound if the object does not exist.
func (d *Downloader) Size(ctx context.Context) (int64, error) {
	if size, ok := d.size.Get(); ok {
		return size, nil
	}

	props, err := retryValue(ctx, d.retry, "get_properties", func(ctx context.Context) (Properties, error) {
		if err := d.resources.AcquireRequest(ctx); err != nil {
			return Properties{}, err
		}
		defer d.resources.ReleaseRequest()

		return d.client.GetProperties(ctx, d.loc)
	})
	if err != nil {
		return 0, fmt.Errorf("size %s: %w", d.path, err)
	}

	d.size = mo.Some(props.Size)
	return props.Size, nil
}

// sizeKnown reports whether Size has already been fetched.
func (d *Downloader) sizeKnown() bool {
	return d.size.IsPresent()
}

// ReadRange returns exactly min(length, size-off) bytes starting at off.
// Reads at or past the end return an empty slice without issuing an RPC.
// Transient failures are retried; ErrNotFound and other permanent errors are not.
func (d *Downloader) ReadRange(ctx context.Context, off, length int64) ([]byte, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("read range %s: invalid range off=%d length=%d", d.path, off, length)
	}

	size, err := d.Size(ctx)
	if err != nil {
		return nil, err
	}

	if off >= size || length == 0 {
		return []byte{}, nil
	}

	n := min(length, size-off)
	key := cache.ChunkKey{Path: d.path, Offset: off, Length: n}

	if d.cache != nil {
		if b, ok := d.cache.Get(ctx, key); ok {
			d.metrics.RecordRangeRead(len(b), 0, true, nil)
			return b, nil
		}
	}

	start := time.Now()
	data, err := retryValue(ctx, d.retry, "download_range", func(ctx context.Context) ([]byte, error) {
		if err := d.resources.AcquireRequest(ctx); err != nil {
			return nil, err
		}
		defer d.resources.ReleaseRequest()

		b, err := d.client.DownloadRange(ctx, d.loc, off, n)
		if err != nil {
			return nil, err
		}
		// A short body means the connection dropped mid-transfer.
		if int64(len(b)) < n {
			return nil, Transient(fmt.Errorf("short range read: got %d of %d bytes: %w", len(b), n, io.ErrUnexpectedEOF))
		}
		return b[:n], nil
	})
	d.metrics.RecordRangeRead(len(data), time.Since(start), false, err)
	if err != nil {
		return nil, fmt.Errorf("read range %s [%d,%d): %w", d.path, off, off+n, err)
	}

	if err := d.resources.AcquireIO(ctx, len(data)); err != nil {
		return nil, err
	}

	if d.cache != nil {
		d.cache.Set(ctx, key, data)
	}

	return data, nil
}
