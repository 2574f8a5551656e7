package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/blobio"
)

// DefaultPageSize is the number of entries returned per listing page.
const DefaultPageSize = 1000

// Store implements blobio.Client for MinIO and S3-compatible storage.
//
// The locator's container is the bucket. Blocks are uploaded as multipart
// parts through the low-level Core API.
type Store struct {
	core     *minio.Core
	prefix   string
	pageSize int
}

var (
	_ blobio.Client          = (*Store)(nil)
	_ blobio.MultipartClient = (*Store)(nil)
)

// Config holds connection settings for New.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Region    string
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix prepends prefix to every object key.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithPageSize sets the listing page size.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// New connects to a MinIO endpoint with static credentials.
func New(cfg Config, optFns ...Option) (*Store, error) {
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return NewStore(core, optFns...), nil
}

// NewStore wraps an existing MinIO core client.
func NewStore(core *minio.Core, optFns ...Option) *Store {
	s := &Store{core: core, pageSize: DefaultPageSize}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

func (s *Store) key(loc blobio.Locator) string {
	if s.prefix == "" {
		return loc.Key
	}
	return path.Join(s.prefix, loc.Key)
}

func (s *Store) listPrefix(loc blobio.Locator) string {
	if s.prefix == "" {
		return loc.Key
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + loc.Key
}

func (s *Store) relKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, strings.TrimSuffix(s.prefix, "/")), "/")
}

// GetProperties implements blobio.Client.
func (s *Store) GetProperties(ctx context.Context, loc blobio.Locator) (blobio.Properties, error) {
	info, err := s.core.Client.StatObject(ctx, loc.Container, s.key(loc), minio.StatObjectOptions{})
	if err != nil {
		return blobio.Properties{}, mapError(err)
	}

	return blobio.Properties{
		Size:        info.Size,
		ContentType: info.ContentType,
		ETag:        info.ETag,
	}, nil
}

// DownloadRange implements blobio.Client.
func (s *Store) DownloadRange(ctx context.Context, loc blobio.Locator, off, length int64) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, off+length-1); err != nil {
		return nil, err
	}

	body, _, _, err := s.core.GetObject(ctx, loc.Container, s.key(loc), opts)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, blobio.Transient(err)
	}

	return data, nil
}

// StartUpload implements blobio.MultipartClient.
func (s *Store) StartUpload(ctx context.Context, loc blobio.Locator, opts blobio.CommitOptions) (string, error) {
	id, err := s.core.NewMultipartUpload(ctx, loc.Container, s.key(loc), minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

// StageBlock implements blobio.Client by uploading one part.
func (s *Store) StageBlock(ctx context.Context, loc blobio.Locator, block blobio.Block, data []byte) (blobio.Block, error) {
	if block.UploadID == "" {
		return blobio.Block{}, fmt.Errorf("stage %s: block %d has no upload session", loc, block.Number)
	}

	part, err := s.core.PutObjectPart(ctx, loc.Container, s.key(loc), block.UploadID, block.Number,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectPartOptions{})
	if err != nil {
		return blobio.Block{}, mapError(err)
	}

	block.ETag = part.ETag
	return block, nil
}

// CommitBlocks implements blobio.Client.
func (s *Store) CommitBlocks(ctx context.Context, loc blobio.Locator, blocks []blobio.Block, opts blobio.CommitOptions) error {
	putOpts := minio.PutObjectOptions{ContentType: opts.ContentType}

	if len(blocks) == 0 {
		_, err := s.core.Client.PutObject(ctx, loc.Container, s.key(loc), bytes.NewReader(nil), 0, putOpts)
		return mapError(err)
	}

	parts := make([]minio.CompletePart, len(blocks))
	for i, b := range blocks {
		parts[i] = minio.CompletePart{PartNumber: b.Number, ETag: b.ETag}
	}

	_, err := s.core.CompleteMultipartUpload(ctx, loc.Container, s.key(loc), blocks[0].UploadID, parts, putOpts)
	return mapError(err)
}

// AbortUpload implements blobio.MultipartClient.
func (s *Store) AbortUpload(ctx context.Context, loc blobio.Locator, uploadID string) error {
	return mapError(s.core.AbortMultipartUpload(ctx, loc.Container, s.key(loc), uploadID))
}

// DeleteObject implements blobio.Client. Removal of a missing key is silent
// in MinIO, so existence is checked first.
func (s *Store) DeleteObject(ctx context.Context, loc blobio.Locator) error {
	if _, err := s.GetProperties(ctx, loc); err != nil {
		return err
	}

	return mapError(s.core.Client.RemoveObject(ctx, loc.Container, s.key(loc), minio.RemoveObjectOptions{}))
}

// ListObjects implements blobio.Client. The page token is the last key of
// the previous page and is passed back as StartAfter.
func (s *Store) ListObjects(ctx context.Context, prefix blobio.Locator, pageToken string) (blobio.ListPage, error) {
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := s.core.Client.ListObjects(lctx, prefix.Container, minio.ListObjectsOptions{
		Prefix:     s.listPrefix(prefix),
		Recursive:  true,
		StartAfter: pageToken,
		MaxKeys:    s.pageSize,
	})

	page := blobio.ListPage{}
	var lastKey string

	for obj := range ch {
		if obj.Err != nil {
			cancel()
			drain(ch)
			return blobio.ListPage{}, mapError(obj.Err)
		}

		if len(page.Entries) == s.pageSize {
			page.NextPageToken = lastKey
			cancel()
			drain(ch)
			break
		}

		page.Entries = append(page.Entries, blobio.ObjectInfo{Key: s.relKey(obj.Key), Size: obj.Size})
		lastKey = obj.Key
	}

	return page, nil
}

// drain consumes the listing channel until the producer goroutine exits.
func drain(ch <-chan minio.ObjectInfo) {
	for range ch {
	}
}

// CopyObject implements blobio.Client.
func (s *Store) CopyObject(ctx context.Context, src, dst blobio.Locator) error {
	_, err := s.core.Client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dst.Container, Object: s.key(dst)},
		minio.CopySrcOptions{Bucket: src.Container, Object: s.key(src)},
	)
	return mapError(err)
}

var transientCodes = map[string]struct{}{
	"SlowDown":                   {},
	"RequestTimeout":             {},
	"InternalError":              {},
	"ServiceUnavailable":         {},
	"XMinioServerNotInitialized": {},
}

// mapError classifies a MinIO error for the retry layer.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket", "NoSuchUpload":
		return blobio.NotFound(err)
	}
	if _, ok := transientCodes[resp.Code]; ok {
		return blobio.Transient(err)
	}

	switch code := resp.StatusCode; {
	case code == http.StatusNotFound:
		return blobio.NotFound(err)
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return blobio.Transient(err)
	}

	return err
}
