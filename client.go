package blobio

import "context"

// Properties holds object metadata returned by Client.GetProperties.
type Properties struct {
	Size        int64
	ContentType string
	ETag        string
}

// Block is one contiguous chunk of an upload, referenced by ID at commit time.
type Block struct {
	// Number is the 1-based position of the block in write order.
	Number int

	// ID is the opaque, fixed-width, base64 block identifier.
	ID string

	// UploadID is the session handed out by MultipartClient.StartUpload, if any.
	UploadID string

	// ETag is filled in by backends that need it at commit time.
	ETag string

	// Checksum is the base64 big-endian CRC32C of the block data, if the
	// backend verifies it.
	Checksum string
}

// ObjectInfo is one listing entry. Key is relative to the container.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ListPage is a single page of a prefix listing.
// An empty NextPageToken means the listing is exhausted.
type ListPage struct {
	Entries       []ObjectInfo
	NextPageToken string
}

// CommitOptions carries per-object settings applied when the block list is committed.
type CommitOptions struct {
	ContentType string
}

// Client is the object-store RPC surface consumed by the adapter.
//
// Implementations must be safe for concurrent use. Failures must be wrapped so
// that errors.Is(err, ErrNotFound) and errors.Is(err, ErrTransient) classify them.
type Client interface {
	// GetProperties returns object metadata, or ErrNotFound.
	GetProperties(ctx context.Context, loc Locator) (Properties, error)

	// DownloadRange returns exactly length bytes starting at off.
	// Callers never request bytes past the end of the object.
	DownloadRange(ctx context.Context, loc Locator, off, length int64) ([]byte, error)

	// StageBlock uploads one uncommitted block and returns it acknowledged.
	StageBlock(ctx context.Context, loc Locator, block Block, data []byte) (Block, error)

	// CommitBlocks makes the ordered block list the object's content.
	CommitBlocks(ctx context.Context, loc Locator, blocks []Block, opts CommitOptions) error

	// DeleteObject removes an object, or returns ErrNotFound.
	DeleteObject(ctx context.Context, loc Locator) error

	// ListObjects returns one page of objects whose key starts with prefix.Key.
	ListObjects(ctx context.Context, prefix Locator, pageToken string) (ListPage, error)

	// CopyObject copies src to dst server-side. dst is either fully written or absent.
	CopyObject(ctx context.Context, src, dst Locator) error
}

// MultipartClient is an optional interface for backends whose block uploads
// live inside an explicit upload session (S3 and compatibles).
type MultipartClient interface {
	// StartUpload opens a session; its ID is attached to every staged Block.
	StartUpload(ctx context.Context, loc Locator, opts CommitOptions) (string, error)

	// AbortUpload discards a session and all blocks staged in it.
	AbortUpload(ctx context.Context, loc Locator, uploadID string) error
}
