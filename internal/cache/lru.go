package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/blobio/resource"
)

// LRU implements ChunkCache with least-recently-used eviction.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[ChunkKey]*list.Element
	byPath    map[string]map[ChunkKey]struct{}
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   ChunkKey
	value []byte
}

var _ resource.Reclaimer = (*LRU)(nil)

// NewLRU creates a new LRU cache with the given capacity in bytes.
// If rc is provided, it will be used to track memory usage.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[ChunkKey]*list.Element),
		byPath:    make(map[string]map[ChunkKey]struct{}),
		evictList: list.New(),
		rc:        rc,
	}
}

// Get returns a cached chunk.
func (c *LRU) Get(_ context.Context, key ChunkKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set caches a chunk.
func (c *LRU) Set(_ context.Context, key ChunkKey, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		oldSize := int64(len(ent.Value.(*entry).value))
		newSize := int64(len(b))
		if c.rc != nil && newSize > oldSize {
			// Keep the old value if the controller denies the growth.
			if !c.rc.TryAcquireMemory(newSize - oldSize) {
				return
			}
		}

		c.size += newSize - oldSize
		if c.rc != nil && newSize < oldSize {
			c.rc.ReleaseMemory(oldSize - newSize)
		}

		ent.Value.(*entry).value = b
		c.evict()
		return
	}

	itemSize := int64(len(b))
	if itemSize > c.capacity {
		return
	}

	// Evict locally first so released memory is visible to the controller.
	for c.size+itemSize > c.capacity {
		ent := c.evictList.Back()
		if ent == nil {
			break
		}
		c.removeElement(ent)
	}

	if c.rc != nil && !c.rc.TryAcquireMemory(itemSize) {
		return
	}

	element := c.evictList.PushFront(&entry{key, b})
	c.items[key] = element
	keys, ok := c.byPath[key.Path]
	if !ok {
		keys = make(map[ChunkKey]struct{})
		c.byPath[key.Path] = keys
	}
	keys[key] = struct{}{}
	c.size += itemSize
}

// InvalidatePath removes every chunk cached for path.
func (c *LRU) InvalidatePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.byPath[path] {
		if e, ok := c.items[key]; ok {
			c.removeElement(e)
		}
	}
}

func (c *LRU) evict() {
	for c.size > c.capacity {
		element := c.evictList.Back()
		if element == nil {
			break
		}
		c.removeElement(element)
	}
}

// Reclaim evicts least-recently-used chunks until at least bytes were freed
// or the cache is empty. It implements resource.Reclaimer.
func (c *LRU) Reclaim(bytes int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var freed int64
	for freed < bytes {
		element := c.evictList.Back()
		if element == nil {
			break
		}
		freed += int64(len(element.Value.(*entry).value))
		c.removeElement(element)
	}

	return freed
}

// Stats returns hit and miss counters.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LRU) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry)
	delete(c.items, kv.key)
	if keys, ok := c.byPath[kv.key.Path]; ok {
		delete(keys, kv.key)
		if len(keys) == 0 {
			delete(c.byPath, kv.key.Path)
		}
	}
	itemSize := int64(len(kv.value))
	c.size -= itemSize
	if c.rc != nil {
		c.rc.ReleaseMemory(itemSize)
	}
}

// Size returns the current size of the cache in bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached chunks.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
