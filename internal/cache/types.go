package cache

import "context"

// ChunkKey identifies one downloaded range of an object.
// Path is the full azfs:// path; Offset and Length are in bytes.
type ChunkKey struct {
	Path   string
	Offset int64
	Length int64
}

// ChunkCache is a byte-oriented cache for downloaded object ranges.
// Returned slices must be treated as read-only.
type ChunkCache interface {
	// Get returns a cached chunk. ok=false if missing.
	Get(ctx context.Context, key ChunkKey) (b []byte, ok bool)
	// Set caches a chunk. The caller must treat b as immutable afterwards.
	Set(ctx context.Context, key ChunkKey, b []byte)
	// InvalidatePath removes every chunk of path.
	InvalidatePath(path string)
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}
