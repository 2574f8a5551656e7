package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/blobio"
	"github.com/hupe1980/blobio/internal/hash"
)

// DefaultPageSize is the number of entries per listing page.
const DefaultPageSize = 1000

var (
	errBlockNotStaged   = errors.New("block not staged")
	errChecksumMismatch = errors.New("checksum mismatch")
)

// Client is an in-memory blobio.Client for tests and local tooling.
// It supports staged blocks, paginated listing and server-side copy.
// Thread-safe for concurrent use.
type Client struct {
	mu       sync.RWMutex
	objects  map[string]object
	staged   map[string]map[string]stagedBlock
	pageSize int
}

type object struct {
	data        []byte
	contentType string
	etag        string
}

type stagedBlock struct {
	data     []byte
	checksum uint32
}

// Option configures the in-memory client.
type Option func(*Client)

// WithPageSize sets the number of entries per listing page.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New creates an empty in-memory store.
func New(optFns ...Option) *Client {
	c := &Client{
		objects:  make(map[string]object),
		staged:   make(map[string]map[string]stagedBlock),
		pageSize: DefaultPageSize,
	}
	for _, fn := range optFns {
		fn(c)
	}
	return c
}

var (
	_ blobio.Client = (*Client)(nil)
)

func objectKey(loc blobio.Locator) string {
	return loc.Account + "/" + loc.Container + "/" + loc.Key
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Put writes an object atomically, bypassing block staging.
func (c *Client) Put(loc blobio.Locator, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.objects[objectKey(loc)] = object{
		data:        cloneBytes(data),
		contentType: blobio.DefaultContentType,
		etag:        hash.CRC32CBase64(data),
	}
}

// Get returns a copy of an object's bytes.
func (c *Client) Get(loc blobio.Locator) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	obj, ok := c.objects[objectKey(loc)]
	if !ok {
		return nil, false
	}
	return cloneBytes(obj.data), true
}

// Len returns the number of committed objects.
func (c *Client) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}

// StagedBlocks returns the number of uncommitted blocks for loc.
func (c *Client) StagedBlocks(loc blobio.Locator) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.staged[objectKey(loc)])
}

// GetProperties implements blobio.Client.
func (c *Client) GetProperties(_ context.Context, loc blobio.Locator) (blobio.Properties, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	obj, ok := c.objects[objectKey(loc)]
	if !ok {
		return blobio.Properties{}, blobio.NotFound(fmt.Errorf("blob %s", loc))
	}

	return blobio.Properties{
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		ETag:        obj.etag,
	}, nil
}

// DownloadRange implements blobio.Client.
func (c *Client) DownloadRange(_ context.Context, loc blobio.Locator, off, length int64) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	obj, ok := c.objects[objectKey(loc)]
	if !ok {
		return nil, blobio.NotFound(fmt.Errorf("blob %s", loc))
	}

	size := int64(len(obj.data))
	if off < 0 || length < 0 || off > size {
		return nil, fmt.Errorf("blob %s: range [%d,+%d) not satisfiable", loc, off, length)
	}

	end := min(off+length, size)
	return cloneBytes(obj.data[off:end]), nil
}

// StageBlock implements blobio.Client.
func (c *Client) StageBlock(_ context.Context, loc blobio.Locator, block blobio.Block, data []byte) (blobio.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := objectKey(loc)
	blocks, ok := c.staged[k]
	if !ok {
		blocks = make(map[string]stagedBlock)
		c.staged[k] = blocks
	}

	blocks[block.ID] = stagedBlock{
		data:     cloneBytes(data),
		checksum: hash.CRC32C(data),
	}

	block.Checksum = hash.CRC32CBase64(data)
	block.ETag = block.Checksum
	return block, nil
}

// CommitBlocks implements blobio.Client.
// Every listed block must have been staged. A block that carries the checksum
// acknowledged by StageBlock must match the staged data.
func (c *Client) CommitBlocks(_ context.Context, loc blobio.Locator, blocks []blobio.Block, opts blobio.CommitOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := objectKey(loc)
	staged := c.staged[k]

	total := 0
	for _, b := range blocks {
		sb, ok := staged[b.ID]
		if !ok {
			return fmt.Errorf("commit %s: block %d: %w", loc, b.Number, errBlockNotStaged)
		}
		if b.Checksum != "" && b.Checksum != hash.Base64(sb.checksum) {
			return fmt.Errorf("commit %s: block %d: %w", loc, b.Number, errChecksumMismatch)
		}
		total += len(sb.data)
	}

	data := make([]byte, 0, total)
	for _, b := range blocks {
		data = append(data, staged[b.ID].data...)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = blobio.DefaultContentType
	}

	c.objects[k] = object{
		data:        data,
		contentType: contentType,
		etag:        hash.CRC32CBase64(data),
	}
	delete(c.staged, k)

	return nil
}

// DeleteObject implements blobio.Client.
func (c *Client) DeleteObject(_ context.Context, loc blobio.Locator) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := objectKey(loc)
	if _, ok := c.objects[k]; !ok {
		return blobio.NotFound(fmt.Errorf("blob %s", loc))
	}

	delete(c.objects, k)
	return nil
}

// ListObjects implements blobio.Client. Keys are returned in lexical order;
// the page token is the last key of the previous page.
func (c *Client) ListObjects(_ context.Context, prefix blobio.Locator, pageToken string) (blobio.ListPage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	containerPrefix := prefix.Account + "/" + prefix.Container + "/"

	var keys []string
	for k := range c.objects {
		if !strings.HasPrefix(k, containerPrefix) {
			continue
		}
		key := k[len(containerPrefix):]
		if strings.HasPrefix(key, prefix.Key) && key > pageToken {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	page := blobio.ListPage{}
	for i, key := range keys {
		if i == c.pageSize {
			page.NextPageToken = keys[i-1]
			break
		}
		page.Entries = append(page.Entries, blobio.ObjectInfo{
			Key:  key,
			Size: int64(len(c.objects[containerPrefix+key].data)),
		})
	}

	return page, nil
}

// CopyObject implements blobio.Client.
func (c *Client) CopyObject(_ context.Context, src, dst blobio.Locator) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj, ok := c.objects[objectKey(src)]
	if !ok {
		return blobio.NotFound(fmt.Errorf("copy source %s", src))
	}

	obj.data = cloneBytes(obj.data)
	c.objects[objectKey(dst)] = obj
	return nil
}
