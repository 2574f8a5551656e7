package resource

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	err := c.AcquireMemory(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.MemoryUsage())

	err = c.AcquireMemory(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Over the limit
	ok := c.TryAcquireMemory(20)
	assert.False(t, ok)
	assert.Equal(t, int64(90), c.MemoryUsage())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = c.AcquireMemory(ctx, 20)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	err = c.AcquireMemory(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_MemoryRequestTooLarge(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 64})

	err := c.AcquireMemory(context.Background(), 65)
	require.ErrorIs(t, err, ErrMemoryRequestTooLarge)
	assert.Equal(t, int64(0), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(context.Background(), 64))
}

type fakeReclaimer struct {
	c     *Controller
	held  int64
	calls int
}

func (r *fakeReclaimer) Reclaim(bytes int64) int64 {
	r.calls++
	n := min(bytes, r.held)
	r.held -= n
	r.c.ReleaseMemory(n)
	return n
}

func TestController_Reclaim(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	r := &fakeReclaimer{c: c, held: 80}
	require.True(t, c.TryAcquireMemory(80))
	c.AddReclaimer(r)

	// Fits without reclaiming.
	require.NoError(t, c.AcquireMemory(context.Background(), 20))
	assert.Equal(t, 0, r.calls)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.AcquireMemory(ctx, 50))
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, int64(30), r.held)
	assert.Equal(t, int64(100), c.MemoryUsage())

	// TryAcquireMemory never reclaims.
	assert.False(t, c.TryAcquireMemory(10))
	assert.Equal(t, 1, r.calls)
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	err := c.AcquireMemory(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Requests(t *testing.T) {
	c := NewController(Config{MaxConcurrentRequests: 2})

	require.NoError(t, c.AcquireRequest(context.Background()))
	require.NoError(t, c.AcquireRequest(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireRequest(ctx), context.DeadlineExceeded)

	c.ReleaseRequest()
	require.NoError(t, c.AcquireRequest(context.Background()))
}

func TestController_Ops(t *testing.T) {
	c := NewController(Config{OpsPerSecond: 1})

	// Burst of one is available immediately.
	require.NoError(t, c.AcquireOps(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireOps(ctx))
}

func TestController_IOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// 1.5 bursts: the first MiB is free, the remainder waits about half a second.
	start := time.Now()
	require.NoError(t, c.AcquireIO(context.Background(), 3<<19))
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller

	ctx := context.Background()
	require.NoError(t, c.AcquireMemory(ctx, 1<<40))
	assert.True(t, c.TryAcquireMemory(1<<40))
	c.ReleaseMemory(1 << 40)
	require.NoError(t, c.AcquireRequest(ctx))
	c.ReleaseRequest()
	require.NoError(t, c.AcquireOps(ctx))
	require.NoError(t, c.AcquireIO(ctx, 1<<30))
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Equal(t, Config{}, c.Config())
}

func TestRateLimitedReadWrite(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	ctx := context.Background()

	var out bytes.Buffer
	w := NewRateLimitedWriter(ctx, &out, c)
	r := NewRateLimitedReader(ctx, strings.NewReader("hello blob"), c)

	n, err := io.Copy(w, r)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Equal(t, "hello blob", out.String())
}
