package blobio

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/blobio/resource"
)

// UploadState is the lifecycle state of an Uploader.
type UploadState int

const (
	// UploadOpen accepts writes; nothing is visible at the destination yet.
	UploadOpen UploadState = iota
	// UploadCommitted means Finish succeeded and the object holds the written bytes.
	UploadCommitted
	// UploadFailed means a block or the commit failed; the destination is absent or undefined.
	UploadFailed
	// UploadAborted means the upload was abandoned before commit.
	UploadAborted
)

func (s UploadState) String() string {
	switch s {
	case UploadOpen:
		return "OPEN"
	case UploadCommitted:
		return "COMMITTED"
	case UploadFailed:
		return "FAILED"
	default:
		return "ABORTED"
	}
}

// abortTimeout bounds session cleanup after the caller's context is gone.
const abortTimeout = 30 * time.Second

// Uploader buffers writes into fixed-size blocks, stages them in parallel and
// commits the ordered block list on Finish.
//
// Memory is bounded by blockSize times (concurrency + 1) regardless of object
// size. Blocks are committed in write order whatever order they were
// acknowledged in. The destination is not touched until Finish succeeds.
//
// An Uploader is single-owner and not safe for concurrent use.
type Uploader struct {
	client      Client
	loc         Locator
	path        string
	blockSize   int
	contentType string
	sessionID   string

	parent context.Context
	gctx   context.Context
	cancel context.CancelFunc
	g      *errgroup.Group

	// Owned by the writing goroutine.
	pending  []byte
	next     int
	written  int64
	state    UploadState
	started  bool
	uploadID string

	// Shared with staging goroutines.
	mu      sync.Mutex
	staged  map[int]Block
	acked   *roaring.Bitmap
	failure error

	retry     *retrier
	logger    *Logger
	metrics   MetricsCollector
	resources *resource.Controller

	// onCommit runs after every commit attempt, successful or not.
	onCommit func()
}

func newUploader(ctx context.Context, client Client, loc Locator, o *options) *Uploader {
	cctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(cctx)
	g.SetLimit(o.uploadConcurrency)

	return &Uploader{
		client:      client,
		loc:         loc,
		path:        loc.String(),
		blockSize:   o.blockSize,
		contentType: o.contentType,
		sessionID:   uuid.NewString(),
		parent:      ctx,
		gctx:        gctx,
		cancel:      cancel,
		g:           g,
		staged:      make(map[int]Block),
		acked:       roaring.New(),
		retry:       &retrier{policy: o.retryPolicy, logger: o.logger, metrics: o.metricsCollector},
		logger:      o.logger,
		metrics:     o.metricsCollector,
		resources:   o.resources,
	}
}

// blockID returns the fixed-width base64 ID of block num in a session.
func blockID(sessionID string, num int) string {
	return base64.StdEncoding.EncodeToString(fmt.Appendf(nil, "%s-%08d", sessionID, num))
}

// Locator returns the destination object.
func (u *Uploader) Locator() Locator { return u.loc }

// State returns the lifecycle state.
func (u *Uploader) State() UploadState { return u.state }

// Written returns the number of bytes accepted so far.
func (u *Uploader) Written() int64 { return u.written }

// Blocks returns the number of blocks dispatched so far.
func (u *Uploader) Blocks() int { return u.next }

// Write appends p to the pending block, staging every block that fills up.
// It fails fast once any earlier block has failed.
func (u *Uploader) Write(p []byte) (int, error) {
	if u.state != UploadOpen {
		return 0, ErrClosed
	}

	if err := u.firstFailure(); err != nil {
		return 0, err
	}

	n := 0
	for len(p) > 0 {
		if u.pending == nil {
			u.pending = make([]byte, 0, u.blockSize)
		}

		take := min(len(p), u.blockSize-len(u.pending))
		u.pending = append(u.pending, p[:take]...)
		p = p[take:]
		n += take
		u.written += int64(take)

		if len(u.pending) == u.blockSize {
			block := u.pending
			u.pending = nil
			if err := u.stage(block); err != nil {
				return n, err
			}
		}
	}

	return n, nil
}

// ensureStarted opens a backend upload session if the client needs one.
func (u *Uploader) ensureStarted() error {
	if u.started {
		return nil
	}

	if mc, ok := u.client.(MultipartClient); ok {
		id, err := retryValue(u.gctx, u.retry, "start_upload", func(ctx context.Context) (string, error) {
			return mc.StartUpload(ctx, u.loc, CommitOptions{ContentType: u.contentType})
		})
		if err != nil {
			return &UploadError{Path: u.path, Block: 0, cause: err}
		}
		u.uploadID = id
	}

	u.started = true
	return nil
}

// stage dispatches one block to the worker pool. It blocks while the pool is full.
func (u *Uploader) stage(data []byte) error {
	if err := u.ensureStarted(); err != nil {
		u.setFailure(err)
		return err
	}

	size := int64(len(data))
	if err := u.resources.AcquireMemory(u.gctx, size); err != nil {
		uerr := &UploadError{Path: u.path, Block: u.next + 1, cause: err}
		u.setFailure(uerr)
		return uerr
	}

	u.next++
	block := Block{
		Number:   u.next,
		ID:       blockID(u.sessionID, u.next),
		UploadID: u.uploadID,
	}

	u.g.Go(func() error {
		defer u.resources.ReleaseMemory(size)

		start := time.Now()
		acked, err := retryValue(u.gctx, u.retry, "stage_block", func(ctx context.Context) (Block, error) {
			if err := u.resources.AcquireRequest(ctx); err != nil {
				return Block{}, err
			}
			defer u.resources.ReleaseRequest()

			if err := u.resources.AcquireIO(ctx, len(data)); err != nil {
				return Block{}, err
			}

			return u.client.StageBlock(ctx, u.loc, block, data)
		})
		u.metrics.RecordBlockUpload(len(data), time.Since(start), err)

		if err != nil {
			uerr := &UploadError{Path: u.path, Block: block.Number, cause: err}
			u.setFailure(uerr)
			return uerr
		}

		if acked.ID == "" {
			acked = block
		}

		u.mu.Lock()
		u.staged[block.Number] = acked
		u.acked.Add(uint32(block.Number))
		u.mu.Unlock()

		return nil
	})

	return nil
}

func (u *Uploader) setFailure(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.failure == nil {
		u.failure = err
	}
}

func (u *Uploader) firstFailure() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.failure
}

// Finish flushes the final (possibly short) block, waits for every staged
// block and commits the ordered block list.
//
// It fails with *UploadError if any block failed and with *CommitError if the
// commit failed or the upload is no longer open. A failed Finish leaves the
// destination absent or undefined.
func (u *Uploader) Finish() error {
	if u.state != UploadOpen {
		return &CommitError{Path: u.path, Reason: "upload is " + u.state.String()}
	}

	if len(u.pending) > 0 {
		block := u.pending
		u.pending = nil
		// Failures surface through firstFailure below.
		_ = u.stage(block)
	}

	waitErr := u.g.Wait()
	u.cancel()

	if err := u.firstFailure(); err != nil {
		return u.fail(err)
	}
	if waitErr != nil {
		return u.fail(&UploadError{Path: u.path, Block: 0, cause: waitErr})
	}

	expected := roaring.New()
	if u.next > 0 {
		expected.AddRange(1, uint64(u.next)+1)
	}
	if !expected.Equals(u.acked) {
		return u.fail(&CommitError{
			Path:   u.path,
			Reason: fmt.Sprintf("acknowledged %d of %d blocks", u.acked.GetCardinality(), u.next),
		})
	}

	blocks := make([]Block, 0, u.next)
	for i := 1; i <= u.next; i++ {
		blocks = append(blocks, u.staged[i])
	}

	start := time.Now()
	err := u.retry.do(u.parent, "commit_blocks", func(ctx context.Context) error {
		return u.client.CommitBlocks(ctx, u.loc, blocks, CommitOptions{ContentType: u.contentType})
	})
	u.metrics.RecordCommit(len(blocks), time.Since(start), err)

	if u.onCommit != nil {
		u.onCommit()
	}

	if err != nil {
		return u.fail(&CommitError{Path: u.path, Reason: "commit block list", cause: err})
	}

	u.state = UploadCommitted
	u.logger.LogCommit(u.parent, u.path, len(blocks), u.written, nil)

	return nil
}

// fail moves the upload to FAILED and releases the backend session.
func (u *Uploader) fail(err error) error {
	u.state = UploadFailed
	u.pending = nil
	u.logger.LogCommit(u.parent, u.path, u.next, u.written, err)

	if aerr := u.abortSession(); aerr != nil {
		u.logger.LogAbort(u.parent, u.path, aerr)
	}

	return err
}

// Abort abandons the upload without committing. It is a no-op unless the
// upload is still open.
func (u *Uploader) Abort() error {
	if u.state != UploadOpen {
		return nil
	}

	u.state = UploadAborted
	u.pending = nil
	u.cancel()
	_ = u.g.Wait()

	err := u.abortSession()
	u.logger.LogAbort(u.parent, u.path, err)

	return err
}

func (u *Uploader) abortSession() error {
	if u.uploadID == "" {
		return nil
	}

	mc, ok := u.client.(MultipartClient)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(u.parent), abortTimeout)
	defer cancel()

	return u.retry.do(ctx, "abort_upload", func(ctx context.Context) error {
		err := mc.AbortUpload(ctx, u.loc, u.uploadID)
		if IsNotFound(err) {
			return nil
		}
		return err
	})
}
