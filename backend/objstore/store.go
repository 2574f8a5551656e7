package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/thanos-io/objstore"

	"github.com/hupe1980/blobio"
	blobhash "github.com/hupe1980/blobio/internal/hash"
)

const (
	// DefaultPageSize is the number of entries returned per listing page.
	DefaultPageSize = 1000

	// stagingDir holds uncommitted blocks, one directory per upload session.
	stagingDir = ".blobio-staging"
)

var errChecksumMismatch = errors.New("staged block checksum mismatch")

// Store implements blobio.Client on any thanos objstore.Bucket.
//
// The bucket is addressed as <container>/<key>; the account is ignored.
// Blocks are written as hidden staging objects and concatenated into the
// destination on commit.
type Store struct {
	bucket   objstore.Bucket
	pageSize int
}

var (
	_ blobio.Client          = (*Store)(nil)
	_ blobio.MultipartClient = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets the listing page size.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// New wraps bucket.
func New(bucket objstore.Bucket, optFns ...Option) *Store {
	s := &Store{bucket: bucket, pageSize: DefaultPageSize}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

func objectName(loc blobio.Locator) string {
	return loc.Container + "/" + loc.Key
}

func stagingName(container, uploadID string, number int) string {
	return fmt.Sprintf("%s/%s/%s/%08d", container, stagingDir, uploadID, number)
}

func (s *Store) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s.bucket.IsObjNotFoundErr(err) {
		return blobio.NotFound(err)
	}
	return err
}

// GetProperties implements blobio.Client.
func (s *Store) GetProperties(ctx context.Context, loc blobio.Locator) (blobio.Properties, error) {
	attrs, err := s.bucket.Attributes(ctx, objectName(loc))
	if err != nil {
		return blobio.Properties{}, s.mapError(err)
	}

	return blobio.Properties{Size: attrs.Size}, nil
}

// DownloadRange implements blobio.Client.
func (s *Store) DownloadRange(ctx context.Context, loc blobio.Locator, off, length int64) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}

	rc, err := s.bucket.GetRange(ctx, objectName(loc), off, length)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, blobio.Transient(err)
	}

	return data, nil
}

// StartUpload implements blobio.MultipartClient.
func (s *Store) StartUpload(context.Context, blobio.Locator, blobio.CommitOptions) (string, error) {
	return uuid.NewString(), nil
}

// StageBlock implements blobio.Client.
func (s *Store) StageBlock(ctx context.Context, loc blobio.Locator, block blobio.Block, data []byte) (blobio.Block, error) {
	if block.UploadID == "" {
		return blobio.Block{}, fmt.Errorf("stage %s: block %d has no upload session", loc, block.Number)
	}

	name := stagingName(loc.Container, block.UploadID, block.Number)
	if err := s.bucket.Upload(ctx, name, bytes.NewReader(data)); err != nil {
		return blobio.Block{}, s.mapError(err)
	}

	block.Checksum = blobhash.CRC32CBase64(data)
	return block, nil
}

// CommitBlocks implements blobio.Client by streaming the staged blocks, in
// order, into the destination. A block whose checksum changed fails the commit.
func (s *Store) CommitBlocks(ctx context.Context, loc blobio.Locator, blocks []blobio.Block, _ blobio.CommitOptions) error {
	readers := make([]io.Reader, 0, len(blocks))
	closers := make([]io.Closer, 0, len(blocks))
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	for _, b := range blocks {
		rc, err := s.bucket.Get(ctx, stagingName(loc.Container, b.UploadID, b.Number))
		if err != nil {
			return fmt.Errorf("block %d: %w", b.Number, s.mapError(err))
		}
		closers = append(closers, rc)
		readers = append(readers, &verifyingReader{r: rc, h: blobhash.NewCRC32C(), want: b.Checksum, number: b.Number})
	}

	if err := s.bucket.Upload(ctx, objectName(loc), io.MultiReader(readers...)); err != nil {
		return s.mapError(err)
	}

	if len(blocks) > 0 {
		// Best effort: leftovers only cost storage.
		_ = s.AbortUpload(ctx, loc, blocks[0].UploadID)
	}

	return nil
}

// AbortUpload implements blobio.MultipartClient by deleting every staged block of the session.
func (s *Store) AbortUpload(ctx context.Context, loc blobio.Locator, uploadID string) error {
	dir := path.Join(loc.Container, stagingDir, uploadID) + objstore.DirDelim

	var names []string
	if err := s.bucket.Iter(ctx, dir, func(name string) error {
		names = append(names, name)
		return nil
	}, objstore.WithRecursiveIter()); err != nil {
		return s.mapError(err)
	}

	for _, name := range names {
		if err := s.bucket.Delete(ctx, name); err != nil && !s.bucket.IsObjNotFoundErr(err) {
			return err
		}
	}

	return nil
}

// DeleteObject implements blobio.Client.
func (s *Store) DeleteObject(ctx context.Context, loc blobio.Locator) error {
	return s.mapError(s.bucket.Delete(ctx, objectName(loc)))
}

// ListObjects implements blobio.Client. Objects are listed in lexical order;
// the page token is the last key of the previous page.
//
// objstore iterates directories, so the listing starts at the directory that
// contains the key prefix and filters from there.
func (s *Store) ListObjects(ctx context.Context, prefix blobio.Locator, pageToken string) (blobio.ListPage, error) {
	root := prefix.Container + objstore.DirDelim
	dir := root
	if i := strings.LastIndex(prefix.Key, objstore.DirDelim); i >= 0 {
		dir = root + prefix.Key[:i+1]
	}
	staging := root + stagingDir + objstore.DirDelim

	var keys []string
	err := s.bucket.Iter(ctx, dir, func(name string) error {
		if strings.HasPrefix(name, staging) || strings.HasSuffix(name, objstore.DirDelim) {
			return nil
		}
		key := strings.TrimPrefix(name, root)
		if strings.HasPrefix(key, prefix.Key) && key > pageToken {
			keys = append(keys, key)
		}
		return nil
	}, objstore.WithRecursiveIter())
	if err != nil {
		return blobio.ListPage{}, s.mapError(err)
	}
	sort.Strings(keys)

	page := blobio.ListPage{}
	if len(keys) > s.pageSize {
		keys = keys[:s.pageSize]
		page.NextPageToken = keys[len(keys)-1]
	}

	for _, key := range keys {
		attrs, err := s.bucket.Attributes(ctx, root+key)
		if err != nil {
			if s.bucket.IsObjNotFoundErr(err) {
				// Deleted while listing.
				continue
			}
			return blobio.ListPage{}, err
		}
		page.Entries = append(page.Entries, blobio.ObjectInfo{Key: key, Size: attrs.Size})
	}

	return page, nil
}

// CopyObject implements blobio.Client. The destination becomes visible only
// once the upload completes.
func (s *Store) CopyObject(ctx context.Context, src, dst blobio.Locator) error {
	rc, err := s.bucket.Get(ctx, objectName(src))
	if err != nil {
		return s.mapError(err)
	}
	defer func() { _ = rc.Close() }()

	return s.mapError(s.bucket.Upload(ctx, objectName(dst), rc))
}

// verifyingReader fails at EOF when the bytes read do not match the staged checksum.
type verifyingReader struct {
	r      io.Reader
	h      hash.Hash32
	want   string
	number int
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	v.h.Write(p[:n])

	if errors.Is(err, io.EOF) && v.want != "" {
		if got := blobhash.Base64(v.h.Sum32()); got != v.want {
			return n, fmt.Errorf("block %d: %w: got %s, want %s", v.number, errChecksumMismatch, got, v.want)
		}
	}

	return n, err
}
