package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/hupe1980/blobio"
)

const (
	// DefaultEndpointTemplate renders the public blob endpoint of an account.
	DefaultEndpointTemplate = "https://%s.blob.core.windows.net"

	// DefaultCopyPollInterval is how often a pending server-side copy is polled.
	DefaultCopyPollInterval = 500 * time.Millisecond
)

// ClientFactory builds the SDK client for one storage account.
type ClientFactory func(account string) (*azblob.Client, error)

// Store implements blobio.Client on Azure Blob Storage block blobs.
//
// Every locator names its own storage account; one SDK client is built per
// account on first use and cached. SDK-level retries are disabled so that
// blobio's retry policy is the only one in effect.
type Store struct {
	factory      ClientFactory
	pollInterval time.Duration
	pageSize     int32

	mu      sync.Mutex
	clients map[string]*azblob.Client
}

var _ blobio.Client = (*Store)(nil)

// Config holds credentials for the default client factory.
// Exactly one of AccountKey, SASToken or ConnectionString should be set;
// with none of them the client is anonymous.
type Config struct {
	// EndpointTemplate is formatted with the account name.
	// Defaults to DefaultEndpointTemplate.
	EndpointTemplate string

	AccountKey       string
	SASToken         string
	ConnectionString string
}

// Option configures a Store.
type Option func(*Store)

// WithClientFactory replaces the factory derived from Config.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Store) { s.factory = f }
}

// WithCopyPollInterval sets how often a pending copy is polled.
func WithCopyPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithPageSize sets the listing page size (MaxResults).
func WithPageSize(n int32) Option {
	return func(s *Store) { s.pageSize = n }
}

// New creates a Store.
func New(cfg Config, optFns ...Option) *Store {
	s := &Store{
		factory:      cfg.factory(),
		pollInterval: DefaultCopyPollInterval,
		clients:      make(map[string]*azblob.Client),
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

func clientOptions() *azblob.ClientOptions {
	return &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			// Retries are owned by blobio.
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	}
}

func (cfg Config) endpoint(account string) string {
	tmpl := cfg.EndpointTemplate
	if tmpl == "" {
		tmpl = DefaultEndpointTemplate
	}
	if !strings.Contains(tmpl, "%s") {
		return strings.TrimSuffix(tmpl, "/")
	}
	return strings.TrimSuffix(fmt.Sprintf(tmpl, account), "/")
}

func (cfg Config) factory() ClientFactory {
	return func(account string) (*azblob.Client, error) {
		endpoint := cfg.endpoint(account)

		switch {
		case cfg.ConnectionString != "":
			return azblob.NewClientFromConnectionString(cfg.ConnectionString, clientOptions())
		case cfg.AccountKey != "":
			cred, err := azblob.NewSharedKeyCredential(account, cfg.AccountKey)
			if err != nil {
				return nil, fmt.Errorf("azure: shared key for %s: %w", account, err)
			}
			return azblob.NewClientWithSharedKeyCredential(endpoint+"/", cred, clientOptions())
		case cfg.SASToken != "":
			return azblob.NewClientWithNoCredential(endpoint+"/?"+strings.TrimPrefix(cfg.SASToken, "?"), clientOptions())
		default:
			return azblob.NewClientWithNoCredential(endpoint+"/", clientOptions())
		}
	}
}

func (s *Store) client(account string) (*azblob.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[account]; ok {
		return c, nil
	}

	c, err := s.factory(account)
	if err != nil {
		return nil, err
	}
	s.clients[account] = c

	return c, nil
}

func (s *Store) containerClient(loc blobio.Locator) (*container.Client, error) {
	c, err := s.client(loc.Account)
	if err != nil {
		return nil, err
	}
	return c.ServiceClient().NewContainerClient(loc.Container), nil
}

func (s *Store) blockBlob(loc blobio.Locator) (*blockblob.Client, error) {
	cc, err := s.containerClient(loc)
	if err != nil {
		return nil, err
	}
	return cc.NewBlockBlobClient(loc.Key), nil
}

// GetProperties implements blobio.Client.
func (s *Store) GetProperties(ctx context.Context, loc blobio.Locator) (blobio.Properties, error) {
	bb, err := s.blockBlob(loc)
	if err != nil {
		return blobio.Properties{}, err
	}

	resp, err := bb.GetProperties(ctx, nil)
	if err != nil {
		return blobio.Properties{}, mapError(err)
	}

	props := blobio.Properties{
		Size:        deref(resp.ContentLength),
		ContentType: deref(resp.ContentType),
	}
	if resp.ETag != nil {
		props.ETag = string(*resp.ETag)
	}

	return props, nil
}

// DownloadRange implements blobio.Client.
func (s *Store) DownloadRange(ctx context.Context, loc blobio.Locator, off, length int64) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}

	bb, err := s.blockBlob(loc)
	if err != nil {
		return nil, err
	}

	resp, err := bb.DownloadStream(ctx, &blob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: off, Count: length},
	})
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, blobio.Transient(err)
	}

	return data, nil
}

// StageBlock implements blobio.Client. The service verifies a CRC64 of the
// block computed by the SDK.
func (s *Store) StageBlock(ctx context.Context, loc blobio.Locator, block blobio.Block, data []byte) (blobio.Block, error) {
	bb, err := s.blockBlob(loc)
	if err != nil {
		return blobio.Block{}, err
	}

	_, err = bb.StageBlock(ctx, block.ID, streaming.NopCloser(bytes.NewReader(data)), &blockblob.StageBlockOptions{
		TransactionalValidation: blob.TransferValidationTypeComputeCRC64(),
	})
	if err != nil {
		return blobio.Block{}, mapError(err)
	}

	return block, nil
}

// CommitBlocks implements blobio.Client. An empty list creates an empty blob.
func (s *Store) CommitBlocks(ctx context.Context, loc blobio.Locator, blocks []blobio.Block, opts blobio.CommitOptions) error {
	bb, err := s.blockBlob(loc)
	if err != nil {
		return err
	}

	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
	}

	commitOpts := &blockblob.CommitBlockListOptions{}
	if opts.ContentType != "" {
		commitOpts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(opts.ContentType)}
	}

	_, err = bb.CommitBlockList(ctx, ids, commitOpts)
	return mapError(err)
}

// DeleteObject implements blobio.Client.
func (s *Store) DeleteObject(ctx context.Context, loc blobio.Locator) error {
	bb, err := s.blockBlob(loc)
	if err != nil {
		return err
	}

	_, err = bb.Delete(ctx, nil)
	return mapError(err)
}

// ListObjects implements blobio.Client. The page token is the service's
// continuation marker.
func (s *Store) ListObjects(ctx context.Context, prefix blobio.Locator, pageToken string) (blobio.ListPage, error) {
	cc, err := s.containerClient(prefix)
	if err != nil {
		return blobio.ListPage{}, err
	}

	opts := &container.ListBlobsFlatOptions{}
	if prefix.Key != "" {
		opts.Prefix = to.Ptr(prefix.Key)
	}
	if pageToken != "" {
		opts.Marker = to.Ptr(pageToken)
	}
	if s.pageSize > 0 {
		opts.MaxResults = to.Ptr(s.pageSize)
	}

	resp, err := cc.NewListBlobsFlatPager(opts).NextPage(ctx)
	if err != nil {
		return blobio.ListPage{}, mapError(err)
	}

	page := blobio.ListPage{NextPageToken: deref(resp.NextMarker)}
	if resp.Segment == nil {
		return page, nil
	}

	for _, item := range resp.Segment.BlobItems {
		if item.Name == nil {
			continue
		}
		var size int64
		if item.Properties != nil {
			size = deref(item.Properties.ContentLength)
		}
		page.Entries = append(page.Entries, blobio.ObjectInfo{Key: *item.Name, Size: size})
	}

	return page, nil
}

// CopyObject implements blobio.Client. It starts a server-side copy and
// polls the destination until the copy leaves the pending state.
func (s *Store) CopyObject(ctx context.Context, src, dst blobio.Locator) error {
	srcBlob, err := s.blockBlob(src)
	if err != nil {
		return err
	}
	dstBlob, err := s.blockBlob(dst)
	if err != nil {
		return err
	}

	resp, err := dstBlob.StartCopyFromURL(ctx, srcBlob.URL(), nil)
	if err != nil {
		return mapError(err)
	}

	status := deref(resp.CopyStatus)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for status == blob.CopyStatusTypePending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		props, err := dstBlob.GetProperties(ctx, nil)
		if err != nil {
			return mapError(err)
		}
		status = deref(props.CopyStatus)
	}

	if status != blob.CopyStatusTypeSuccess {
		return fmt.Errorf("copy %s to %s: status %s", src, dst, status)
	}

	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
