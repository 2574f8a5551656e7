package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/blobio"
)

// Op names a Client method for fault injection and call counting.
type Op string

const (
	OpGetProperties Op = "GetProperties"
	OpDownloadRange Op = "DownloadRange"
	OpStageBlock    Op = "StageBlock"
	OpCommitBlocks  Op = "CommitBlocks"
	OpDeleteObject  Op = "DeleteObject"
	OpListObjects   Op = "ListObjects"
	OpCopyObject    Op = "CopyObject"
)

// FaultClient wraps a blobio.Client, counting calls and failing them on demand.
// Queued faults are consumed one per call before the inner client is reached.
type FaultClient struct {
	inner blobio.Client

	mu     sync.Mutex
	queued map[Op][]error
	always map[Op]error
	calls  map[Op]int
	hook   map[Op]func()
}

var _ blobio.Client = (*FaultClient)(nil)

// NewFaultClient wraps inner.
func NewFaultClient(inner blobio.Client) *FaultClient {
	return &FaultClient{
		inner:  inner,
		queued: make(map[Op][]error),
		always: make(map[Op]error),
		calls:  make(map[Op]int),
		hook:   make(map[Op]func()),
	}
}

// FailNext makes the next len(errs) calls of op fail with errs, in order.
func (f *FaultClient) FailNext(op Op, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[op] = append(f.queued[op], errs...)
}

// FailAlways makes every call of op fail with err. A nil err clears it.
func (f *FaultClient) FailAlways(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.always, op)
		return
	}
	f.always[op] = err
}

// OnCall registers fn to run at the start of every call of op.
func (f *FaultClient) OnCall(op Op, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook[op] = fn
}

// Calls returns how many times op was invoked, failed calls included.
func (f *FaultClient) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Reset clears counters and faults.
func (f *FaultClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = make(map[Op][]error)
	f.always = make(map[Op]error)
	f.calls = make(map[Op]int)
	f.hook = make(map[Op]func())
}

func (f *FaultClient) enter(op Op) error {
	f.mu.Lock()
	f.calls[op]++
	hook := f.hook[op]

	var err error
	if q := f.queued[op]; len(q) > 0 {
		err = q[0]
		f.queued[op] = q[1:]
	} else if e, ok := f.always[op]; ok {
		err = e
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

// GetProperties implements blobio.Client.
func (f *FaultClient) GetProperties(ctx context.Context, loc blobio.Locator) (blobio.Properties, error) {
	if err := f.enter(OpGetProperties); err != nil {
		return blobio.Properties{}, err
	}
	return f.inner.GetProperties(ctx, loc)
}

// DownloadRange implements blobio.Client.
func (f *FaultClient) DownloadRange(ctx context.Context, loc blobio.Locator, off, length int64) ([]byte, error) {
	if err := f.enter(OpDownloadRange); err != nil {
		return nil, err
	}
	return f.inner.DownloadRange(ctx, loc, off, length)
}

// StageBlock implements blobio.Client.
func (f *FaultClient) StageBlock(ctx context.Context, loc blobio.Locator, block blobio.Block, data []byte) (blobio.Block, error) {
	if err := f.enter(OpStageBlock); err != nil {
		return blobio.Block{}, err
	}
	return f.inner.StageBlock(ctx, loc, block, data)
}

// CommitBlocks implements blobio.Client.
func (f *FaultClient) CommitBlocks(ctx context.Context, loc blobio.Locator, blocks []blobio.Block, opts blobio.CommitOptions) error {
	if err := f.enter(OpCommitBlocks); err != nil {
		return err
	}
	return f.inner.CommitBlocks(ctx, loc, blocks, opts)
}

// DeleteObject implements blobio.Client.
func (f *FaultClient) DeleteObject(ctx context.Context, loc blobio.Locator) error {
	if err := f.enter(OpDeleteObject); err != nil {
		return err
	}
	return f.inner.DeleteObject(ctx, loc)
}

// ListObjects implements blobio.Client.
func (f *FaultClient) ListObjects(ctx context.Context, prefix blobio.Locator, pageToken string) (blobio.ListPage, error) {
	if err := f.enter(OpListObjects); err != nil {
		return blobio.ListPage{}, err
	}
	return f.inner.ListObjects(ctx, prefix, pageToken)
}

// CopyObject implements blobio.Client.
func (f *FaultClient) CopyObject(ctx context.Context, src, dst blobio.Locator) error {
	if err := f.enter(OpCopyObject); err != nil {
		return err
	}
	return f.inner.CopyObject(ctx, src, dst)
}
