package blobio

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/blobio/resource"
)

// BatchExecutor runs independent per-item operations with bounded parallelism.
//
// Items are split into sub-batches of at most maxBatch and every sub-batch runs
// on a pool of workers goroutines. Each item runs under the retry policy; a
// failing item never cancels its siblings. The result slice always has one
// slot per input, in input order.
type BatchExecutor struct {
	workers   int
	maxBatch  int
	retry     *retrier
	resources *resource.Controller
}

func newBatchExecutor(o *options) *BatchExecutor {
	return &BatchExecutor{
		workers:   o.batchWorkers,
		maxBatch:  o.maxBatchSize,
		retry:     &retrier{policy: o.retryPolicy, logger: o.logger, metrics: o.metricsCollector},
		resources: o.resources,
	}
}

// Run invokes op for every index in [0, n) and returns one error slot per index.
// Items not started before ctx is done report the context error.
func (e *BatchExecutor) Run(ctx context.Context, name string, n int, op func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)

	for start := 0; start < n; start += e.maxBatch {
		end := min(start+e.maxBatch, n)

		// A plain Group: one item's failure must not cancel the others.
		var g errgroup.Group
		g.SetLimit(e.workers)

		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				continue
			}

			g.Go(func() error {
				if err := e.resources.AcquireOps(ctx); err != nil {
					errs[i] = err
					return nil
				}

				errs[i] = e.retry.do(ctx, name, func(ctx context.Context) error {
					return op(ctx, i)
				})
				return nil
			})
		}

		_ = g.Wait()
	}

	return errs
}

// BatchResult is the outcome of one item of a batch call.
// Err is nil on success, otherwise a *BatchItemError.
type BatchResult struct {
	Path string
	Err  error
}

// ExistsResult is the outcome of one item of an existence batch.
type ExistsResult struct {
	Path   string
	Exists bool
	Err    error
}

func itemError(path string, err error) error {
	if err == nil {
		return nil
	}
	return &BatchItemError{Path: path, Kind: Classify(err), Err: err}
}

func countFailed(results []BatchResult) int {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	return failed
}

func (s *Storage) recordBatch(ctx context.Context, op string, count, failed int, start time.Time) {
	s.opts.metricsCollector.RecordBatch(op, count, failed, time.Since(start))
	s.opts.logger.LogBatch(ctx, op, count, failed)
}
