package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits shared by every stream and batch of a Storage.
type Config struct {
	// MemoryLimitBytes is the hard limit for in-flight block and cache memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxConcurrentRequests caps RPCs in flight across all components.
	// If 0, unlimited.
	MaxConcurrentRequests int64

	// OpsPerSecond paces batch item operations. If 0, unlimited.
	OpsPerSecond float64

	// IOLimitBytesPerSec is the maximum transfer throughput for reads and block uploads.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// ErrMemoryRequestTooLarge is returned by AcquireMemory for a request that can
// never fit under MemoryLimitBytes.
var ErrMemoryRequestTooLarge = errors.New("memory request exceeds limit")

// Reclaimer holds memory against a Controller that it can give back on demand,
// such as cached read chunks. Reclaim releases up to bytes and returns the
// amount released.
type Reclaimer interface {
	Reclaim(bytes int64) int64
}

// Controller manages shared resources (memory, concurrency, request rate).
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	reclaimMu  sync.Mutex
	reclaimers []Reclaimer

	// Concurrency
	reqSem *semaphore.Weighted // nil if unlimited

	// Rate
	opsLimiter *rate.Limiter
	ioLimiter  *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{
		cfg: cfg,
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.MaxConcurrentRequests > 0 {
		c.reqSem = semaphore.NewWeighted(cfg.MaxConcurrentRequests)
	}

	if cfg.OpsPerSecond > 0 {
		burst := int(cfg.OpsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.opsLimiter = rate.NewLimiter(rate.Limit(cfg.OpsPerSecond), burst)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the limits the controller was built with.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AddReclaimer registers r to be asked for memory before AcquireMemory blocks.
func (c *Controller) AddReclaimer(r Reclaimer) {
	if c == nil || r == nil {
		return
	}

	c.reclaimMu.Lock()
	defer c.reclaimMu.Unlock()
	c.reclaimers = append(c.reclaimers, r)
}

// AcquireMemory attempts to reserve memory.
// If a hard limit is configured and usage would exceed it, registered
// reclaimers are asked to give memory back first; then this blocks until
// memory is available or ctx is canceled. A request above the limit fails
// immediately with ErrMemoryRequestTooLarge.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if bytes > c.cfg.MemoryLimitBytes {
			return fmt.Errorf("%w: %d > %d bytes", ErrMemoryRequestTooLarge, bytes, c.cfg.MemoryLimitBytes)
		}

		if !c.memSem.TryAcquire(bytes) {
			c.reclaim(bytes)
			if err := c.memSem.Acquire(ctx, bytes); err != nil {
				return err
			}
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if limit would be exceeded.
// It never calls reclaimers, so a Reclaimer may use it while holding its own lock.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

func (c *Controller) reclaim(bytes int64) {
	c.reclaimMu.Lock()
	rs := append([]Reclaimer(nil), c.reclaimers...)
	c.reclaimMu.Unlock()

	for _, r := range rs {
		if bytes <= 0 {
			return
		}
		bytes -= r.Reclaim(bytes)
	}
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireRequest reserves an in-flight request slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	if c == nil || c.reqSem == nil {
		return nil
	}
	return c.reqSem.Acquire(ctx, 1)
}

// ReleaseRequest releases an in-flight request slot.
func (c *Controller) ReleaseRequest() {
	if c == nil || c.reqSem == nil {
		return
	}
	c.reqSem.Release(1)
}

// AcquireOps waits until the operation rate allows one more call.
func (c *Controller) AcquireOps(ctx context.Context) error {
	if c == nil || c.opsLimiter == nil {
		return nil
	}
	return c.opsLimiter.Wait(ctx)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the burst are split so they never fail outright.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}

	return nil
}
