// Package blobio adapts a range-addressable object store to seekable read
// streams, chunked write streams and per-item batch operations.
//
// Objects are addressed as azfs://<account>/<container>/<key>. The store itself
// is reached through the Client interface; the backend packages provide
// implementations for Azure Blob Storage, S3, MinIO, any thanos objstore
// bucket and an in-memory store for tests.
//
// # Reading
//
//	s := blobio.New(client)
//	r, err := s.OpenReader(ctx, "azfs://account/container/data.bin")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	if _, err := r.Seek(1024, io.SeekStart); err != nil {
//	    return err
//	}
//	buf := make([]byte, 4096)
//	n, err := io.ReadFull(r, buf)
//
// Reads are served from an aligned chunk of WithReadBufferSize bytes (16 MiB by
// default). The object size is fetched lazily and cached per Reader. Reading at
// or past the end returns io.EOF.
//
// # Writing
//
//	w, err := s.Create(ctx, "azfs://account/container/out.bin")
//	if err != nil {
//	    return err
//	}
//	defer w.Close() // aborts unless Finish succeeded
//
//	if _, err := io.Copy(w, src); err != nil {
//	    return err
//	}
//	if err := w.Finish(); err != nil {
//	    return err
//	}
//
// Writes are cut into blocks of WithBlockSize bytes, staged in parallel and
// committed in write order by Finish. Nothing is visible before Finish returns
// nil; a failed Finish leaves the destination absent or undefined.
//
// # Errors and retries
//
// Transient failures (network errors, 5xx, throttling, attempt timeouts) are
// retried with exponential backoff and jitter. ErrNotFound and malformed
// requests are never retried. Once the retry budget is spent the error is
// returned as *RetriesExhaustedError, which Classify reports as permanent.
//
// # Batches
//
// DeleteBatch and ExistsBatch split their input into sub-batches of at most
// MaxBatchSize items run on a bounded worker pool. They always return one
// result per input, in input order; one item's failure never aborts another.
// Deleting an absent object is a success.
package blobio
