package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/blobio"
	"github.com/hupe1980/blobio/internal/hash"
)

var errNoUploadSession = errors.New("block staged outside an upload session")

// Store implements blobio.Client on top of S3.
//
// The locator's container is the bucket; the account is ignored. Blocks are
// uploaded as multipart parts, so Store also implements blobio.MultipartClient.
type Store struct {
	client   Client
	prefix   string
	maxKeys  int32
	checksum bool
}

var (
	_ blobio.Client          = (*Store)(nil)
	_ blobio.MultipartClient = (*Store)(nil)
)

type options struct {
	prefix       string
	maxKeys      int32
	checksum     bool
	region       string
	endpoint     string
	usePathStyle bool
}

// Option configures a Store.
type Option func(*options)

// WithKeyPrefix prepends prefix to every object key (e.g. "tenant-a/").
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithMaxKeys sets the listing page size.
func WithMaxKeys(n int32) Option {
	return func(o *options) { o.maxKeys = n }
}

// WithChecksum toggles CRC32C integrity checks on uploaded parts. Enabled by default.
func WithChecksum(enabled bool) Option {
	return func(o *options) { o.checksum = enabled }
}

// WithRegion sets the AWS region. Only used by New.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint points the client at an S3-compatible endpoint with path-style
// addressing. Only used by New.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
		o.usePathStyle = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{checksum: true}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// New creates a Store using the default AWS credential chain.
func New(ctx context.Context, optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)

	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
		so.UsePathStyle = o.usePathStyle
	})

	return NewStore(client, optFns...), nil
}

// NewStore wraps an existing S3 client.
func NewStore(client Client, optFns ...Option) *Store {
	o := applyOptions(optFns)

	return &Store{
		client:   client,
		prefix:   o.prefix,
		maxKeys:  o.maxKeys,
		checksum: o.checksum,
	}
}

func (s *Store) key(loc blobio.Locator) string {
	if s.prefix == "" {
		return loc.Key
	}
	return path.Join(s.prefix, loc.Key)
}

// listPrefix keeps a trailing slash that path.Join would strip.
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
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Container),
		Key:    aws.String(s.key(loc)),
	})
	if err != nil {
		return blobio.Properties{}, mapError(err)
	}

	return blobio.Properties{
		Size:        aws.ToInt64(head.ContentLength),
		ContentType: aws.ToString(head.ContentType),
		ETag:        aws.ToString(head.ETag),
	}, nil
}

// DownloadRange implements blobio.Client.
func (s *Store) DownloadRange(ctx context.Context, loc blobio.Locator, off, length int64) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Container),
		Key:    aws.String(s.key(loc)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+length-1)),
	})
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		// The body broke mid-stream.
		return nil, blobio.Transient(err)
	}

	return data, nil
}

// StartUpload implements blobio.MultipartClient.
func (s *Store) StartUpload(ctx context.Context, loc blobio.Locator, opts blobio.CommitOptions) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(loc.Container),
		Key:    aws.String(s.key(loc)),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if s.checksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	out, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", mapError(err)
	}

	return aws.ToString(out.UploadId), nil
}

// StageBlock implements blobio.Client by uploading one part.
func (s *Store) StageBlock(ctx context.Context, loc blobio.Locator, block blobio.Block, data []byte) (blobio.Block, error) {
	if block.UploadID == "" {
		return blobio.Block{}, errNoUploadSession
	}

	input := &s3.UploadPartInput{
		Bucket:        aws.String(loc.Container),
		Key:           aws.String(s.key(loc)),
		UploadId:      aws.String(block.UploadID),
		PartNumber:    aws.Int32(int32(block.Number)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if s.checksum {
		block.Checksum = hash.CRC32CBase64(data)
		input.ChecksumCRC32C = aws.String(block.Checksum)
	}

	out, err := s.client.UploadPart(ctx, input)
	if err != nil {
		return blobio.Block{}, mapError(err)
	}

	block.ETag = aws.ToString(out.ETag)
	return block, nil
}

// CommitBlocks implements blobio.Client.
// An upload without blocks never opened a session and is written as an empty object.
func (s *Store) CommitBlocks(ctx context.Context, loc blobio.Locator, blocks []blobio.Block, opts blobio.CommitOptions) error {
	if len(blocks) == 0 {
		input := &s3.PutObjectInput{
			Bucket:        aws.String(loc.Container),
			Key:           aws.String(s.key(loc)),
			Body:          bytes.NewReader(nil),
			ContentLength: aws.Int64(0),
		}
		if opts.ContentType != "" {
			input.ContentType = aws.String(opts.ContentType)
		}
		_, err := s.client.PutObject(ctx, input)
		return mapError(err)
	}

	parts := make([]types.CompletedPart, len(blocks))
	for i, b := range blocks {
		parts[i] = types.CompletedPart{
			ETag:       aws.String(b.ETag),
			PartNumber: aws.Int32(int32(b.Number)),
		}
		if b.Checksum != "" {
			parts[i].ChecksumCRC32C = aws.String(b.Checksum)
		}
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(loc.Container),
		Key:             aws.String(s.key(loc)),
		UploadId:        aws.String(blocks[0].UploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})

	return mapError(err)
}

// AbortUpload implements blobio.MultipartClient.
func (s *Store) AbortUpload(ctx context.Context, loc blobio.Locator, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(loc.Container),
		Key:      aws.String(s.key(loc)),
		UploadId: aws.String(uploadID),
	})
	return mapError(err)
}

// DeleteObject implements blobio.Client.
//
// S3 deletes are silent for missing keys, so a HEAD runs first to keep the
// not-found contract.
func (s *Store) DeleteObject(ctx context.Context, loc blobio.Locator) error {
	if _, err := s.GetProperties(ctx, loc); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(loc.Container),
		Key:    aws.String(s.key(loc)),
	})
	return mapError(err)
}

// ListObjects implements blobio.Client.
func (s *Store) ListObjects(ctx context.Context, prefix blobio.Locator, pageToken string) (blobio.ListPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(prefix.Container),
		Prefix: aws.String(s.listPrefix(prefix)),
	}
	if pageToken != "" {
		input.ContinuationToken = aws.String(pageToken)
	}
	if s.maxKeys > 0 {
		input.MaxKeys = aws.Int32(s.maxKeys)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return blobio.ListPage{}, mapError(err)
	}

	page := blobio.ListPage{Entries: make([]blobio.ObjectInfo, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		page.Entries = append(page.Entries, blobio.ObjectInfo{
			Key:  s.relKey(aws.ToString(obj.Key)),
			Size: aws.ToInt64(obj.Size),
		})
	}

	if aws.ToBool(out.IsTruncated) {
		page.NextPageToken = aws.ToString(out.NextContinuationToken)
	}

	return page, nil
}

// CopyObject implements blobio.Client. Single-request copies are limited to 5 GiB.
func (s *Store) CopyObject(ctx context.Context, src, dst blobio.Locator) error {
	source := (&url.URL{Path: src.Container + "/" + s.key(src)}).EscapedPath()

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dst.Container),
		Key:        aws.String(s.key(dst)),
		CopySource: aws.String(source),
	})
	return mapError(err)
}
