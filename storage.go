package blobio

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Open modes.
const (
	ModeRead        = "r"
	ModeReadBinary  = "rb"
	ModeWrite       = "w"
	ModeWriteBinary = "wb"
)

// Storage is the entry point composing Downloader and Uploader into streams and
// exposing listing, copy, delete and batch operations over a Client.
//
// The Client is shared read-only by every stream and batch; Storage is safe
// for concurrent use. Streams returned by Open are not.
type Storage struct {
	client Client
	opts   options
	batch  *BatchExecutor
	retry  *retrier
}

// New creates a Storage over client.
func New(client Client, optFns ...Option) *Storage {
	o := applyOptions(optFns)

	return &Storage{
		client: client,
		opts:   o,
		batch:  newBatchExecutor(&o),
		retry:  &retrier{policy: o.retryPolicy, logger: o.logger, metrics: o.metricsCollector},
	}
}

// Scheme returns the URL scheme handled by Storage.
func (s *Storage) Scheme() string { return Scheme }

// HasDirs reports whether the store has real directories. It does not.
func (s *Storage) HasDirs() bool { return false }

// Mkdirs is a no-op: directories are implied by object keys.
func (s *Storage) Mkdirs(context.Context, string) error { return nil }

// Join appends path components to base. See the package-level Join.
func (s *Storage) Join(base string, parts ...string) string { return Join(base, parts...) }

// Split splits path into parent and final component. See the package-level Split.
func (s *Storage) Split(path string) (string, string, error) { return Split(path) }

// Open returns a *Reader for modes "r"/"rb" and a *Writer for "w"/"wb".
// Any other mode fails with *InvalidModeError; a malformed path with
// *InvalidPathError. No RPC is issued by Open itself.
//
// ctx is bound to the returned stream and governs all of its RPCs.
// The concrete type follows the mode, so callers assert it:
//
//	f, err := s.Open(ctx, path, "wb")
//	if err != nil {
//	    return err
//	}
//	w := f.(*blobio.Writer)
//
// OpenReader and Create return the typed streams directly.
func (s *Storage) Open(ctx context.Context, path, mode string) (io.Closer, error) {
	switch mode {
	case ModeRead, ModeReadBinary:
		r, err := s.OpenReader(ctx, path)
		if err != nil {
			return nil, err
		}
		return r, nil
	case ModeWrite, ModeWriteBinary:
		w, err := s.Create(ctx, path)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		err := &InvalidModeError{Mode: mode}
		s.opts.logger.LogOpen(ctx, path, mode, err)
		return nil, err
	}
}

// OpenReader opens path for reading.
func (s *Storage) OpenReader(ctx context.Context, path string) (*Reader, error) {
	loc, err := ParseLocator(path, false)
	if err != nil {
		s.opts.logger.LogOpen(ctx, path, ModeRead, err)
		return nil, err
	}

	s.opts.logger.LogOpen(ctx, path, ModeRead, nil)
	return NewReader(ctx, newDownloader(s.client, loc, &s.opts)), nil
}

// Create opens path for writing. Nothing is visible until Writer.Finish succeeds.
func (s *Storage) Create(ctx context.Context, path string) (*Writer, error) {
	loc, err := ParseLocator(path, false)
	if err != nil {
		s.opts.logger.LogOpen(ctx, path, ModeWrite, err)
		return nil, err
	}

	s.invalidate(loc)
	s.opts.logger.LogOpen(ctx, path, ModeWrite, nil)

	u := newUploader(ctx, s.client, loc, &s.opts)
	// Readers may have cached the old content while the upload was open.
	u.onCommit = func() { s.invalidate(loc) }

	return NewWriter(u), nil
}

// ListPrefix returns full path -> size for every object under path.
//
// Pages are fetched until the backend returns an empty continuation token; each
// page is retried independently. A token handed out twice aborts the listing
// with ErrRepeatedPageToken instead of looping forever.
func (s *Storage) ListPrefix(ctx context.Context, path string) (map[string]int64, error) {
	prefix, err := ParseLocator(path, true)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sizes := make(map[string]int64)
	seen := make(map[string]struct{})
	token := ""
	pages := 0
	counter := 0

	s.opts.logger.InfoContext(ctx, "starting listing", "prefix", path)

	for {
		page, err := retryValue(ctx, s.retry, "list_objects", func(ctx context.Context) (ListPage, error) {
			if err := s.opts.resources.AcquireRequest(ctx); err != nil {
				return ListPage{}, err
			}
			defer s.opts.resources.ReleaseRequest()

			return s.client.ListObjects(ctx, prefix, token)
		})
		if err != nil {
			err = fmt.Errorf("list %s: %w", path, err)
			s.opts.metricsCollector.RecordList(counter, pages, time.Since(start), err)
			s.opts.logger.LogListDone(ctx, path, counter, pages, time.Since(start), err)
			return nil, err
		}
		pages++

		for _, e := range page.Entries {
			sizes[prefix.WithKey(e.Key).String()] = e.Size
			counter++
			if counter%s.opts.listProgressInterval == 0 {
				s.opts.logger.LogListProgress(ctx, path, len(sizes))
			}
		}

		if page.NextPageToken == "" {
			break
		}

		if _, dup := seen[page.NextPageToken]; dup {
			err := fmt.Errorf("list %s: %w: %q", path, ErrRepeatedPageToken, page.NextPageToken)
			s.opts.metricsCollector.RecordList(counter, pages, time.Since(start), err)
			s.opts.logger.LogListDone(ctx, path, counter, pages, time.Since(start), err)
			return nil, err
		}
		seen[page.NextPageToken] = struct{}{}
		token = page.NextPageToken
	}

	s.opts.metricsCollector.RecordList(counter, pages, time.Since(start), nil)
	s.opts.logger.LogListDone(ctx, path, counter, pages, time.Since(start), nil)

	return sizes, nil
}

// Copy copies src to dst server-side. The destination is either fully present
// with the source bytes or absent.
func (s *Storage) Copy(ctx context.Context, src, dst string) error {
	srcLoc, err := ParseLocator(src, false)
	if err != nil {
		return err
	}
	dstLoc, err := ParseLocator(dst, false)
	if err != nil {
		return err
	}

	err = s.retry.do(ctx, "copy_object", func(ctx context.Context) error {
		return s.client.CopyObject(ctx, srcLoc, dstLoc)
	})
	s.invalidate(dstLoc)
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	return nil
}

// Delete removes path. Deleting an absent object succeeds.
func (s *Storage) Delete(ctx context.Context, path string) error {
	loc, err := ParseLocator(path, false)
	if err != nil {
		return err
	}

	if err := s.retry.do(ctx, "delete_object", s.deleteOp(loc)); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	return nil
}

func (s *Storage) deleteOp(loc Locator) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		defer s.invalidate(loc)

		err := s.client.DeleteObject(ctx, loc)
		if IsNotFound(err) {
			return nil
		}
		return err
	}
}

// DeleteBatch deletes every path and reports one result per input, in order.
// Absent objects and successful deletes both report success; a malformed path
// reports a KindInvalidPath item error. No item aborts the others.
func (s *Storage) DeleteBatch(ctx context.Context, paths []string) []BatchResult {
	start := time.Now()
	results := make([]BatchResult, len(paths))
	locs := make([]Locator, len(paths))
	parseErrs := make([]error, len(paths))

	for i, p := range paths {
		results[i].Path = p
		locs[i], parseErrs[i] = ParseLocator(p, false)
	}

	errs := s.batch.Run(ctx, "delete_object", len(paths), func(ctx context.Context, i int) error {
		if parseErrs[i] != nil {
			return parseErrs[i]
		}
		return s.deleteOp(locs[i])(ctx)
	})

	for i, err := range errs {
		results[i].Err = itemError(paths[i], err)
	}

	s.recordBatch(ctx, "delete", len(paths), countFailed(results), start)

	return results
}

// Exists reports whether path exists.
func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	loc, err := ParseLocator(path, false)
	if err != nil {
		return false, err
	}

	return s.exists(ctx, loc)
}

func (s *Storage) exists(ctx context.Context, loc Locator) (bool, error) {
	_, err := retryValue(ctx, s.retry, "get_properties", func(ctx context.Context) (Properties, error) {
		return s.client.GetProperties(ctx, loc)
	})

	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("exists %s: %w", loc, err)
	}
}

// ExistsBatch checks every path and reports one result per input, in order.
func (s *Storage) ExistsBatch(ctx context.Context, paths []string) []ExistsResult {
	start := time.Now()
	results := make([]ExistsResult, len(paths))

	errs := s.batch.Run(ctx, "get_properties", len(paths), func(ctx context.Context, i int) error {
		loc, err := ParseLocator(paths[i], false)
		if err != nil {
			return err
		}

		_, err = s.client.GetProperties(ctx, loc)
		switch {
		case err == nil:
			results[i].Exists = true
		case IsNotFound(err):
			results[i].Exists = false
		default:
			return err
		}
		return nil
	})

	failed := 0
	for i, err := range errs {
		results[i].Path = paths[i]
		if err != nil {
			results[i].Err = itemError(paths[i], err)
			failed++
		}
	}

	s.recordBatch(ctx, "exists", len(paths), failed, start)

	return results
}

// Size returns the length of path in bytes.
func (s *Storage) Size(ctx context.Context, path string) (int64, error) {
	loc, err := ParseLocator(path, false)
	if err != nil {
		return 0, err
	}

	return newDownloader(s.client, loc, &s.opts).Size(ctx)
}

func (s *Storage) invalidate(loc Locator) {
	if s.opts.readCache != nil {
		s.opts.readCache.InvalidatePath(loc.String())
	}
}
