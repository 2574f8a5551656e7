// Package resource implements the Controller for shared limits across streams and batches.
//
// The Controller governs four resource types:
//
//   - Memory: in-flight upload blocks and cached read chunks
//   - Requests: RPCs in flight across all components
//   - Ops: batch item operations per second
//   - IO: transfer bytes per second for range reads and block uploads
//
// # Memory
//
// Memory tracking uses a weighted semaphore for hard limits and an atomic
// counter for usage. AcquireMemory blocks until memory is available:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 256 << 20,
//	})
//
//	if err := rc.AcquireMemory(ctx, blockSize); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(blockSize)
//
// TryAcquireMemory is the fail-fast variant used by the read cache. The cache
// registers itself with AddReclaimer, so a blocked AcquireMemory evicts cached
// chunks before it waits on in-flight uploads.
//
// # Rate limiting
//
// Token buckets pace batch operations and transfer throughput:
//
//	rc := resource.NewController(resource.Config{
//	    OpsPerSecond:       500,
//	    IOLimitBytesPerSec: 100 << 20,
//	})
//
//	writer := resource.NewRateLimitedWriter(ctx, w, rc)
//	reader := resource.NewRateLimitedReader(ctx, r, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
