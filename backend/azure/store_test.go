package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blobio"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))

	notFound := &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: string(bloberror.BlobNotFound)}
	assert.True(t, blobio.IsNotFound(mapError(notFound)))

	busy := &azcore.ResponseError{StatusCode: http.StatusServiceUnavailable, ErrorCode: string(bloberror.ServerBusy)}
	assert.Equal(t, blobio.KindTransient, blobio.Classify(mapError(busy)))

	throttled := &azcore.ResponseError{StatusCode: http.StatusTooManyRequests}
	assert.Equal(t, blobio.KindTransient, blobio.Classify(mapError(throttled)))

	bad := &azcore.ResponseError{StatusCode: http.StatusBadRequest, ErrorCode: "InvalidBlockId"}
	assert.Equal(t, blobio.KindPermanent, blobio.Classify(mapError(bad)))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://acct.blob.core.windows.net", Config{}.endpoint("acct"))
	assert.Equal(t, "http://127.0.0.1:10000/acct", Config{EndpointTemplate: "http://127.0.0.1:10000/%s/"}.endpoint("acct"))
	assert.Equal(t, "http://proxy", Config{EndpointTemplate: "http://proxy/"}.endpoint("acct"))
}

func TestClientCache(t *testing.T) {
	calls := map[string]int{}
	s := New(Config{}, WithClientFactory(func(account string) (*azblob.Client, error) {
		calls[account]++
		if account == "broken" {
			return nil, errors.New("no credentials")
		}
		return azblob.NewClientWithNoCredential("https://"+account+".blob.core.windows.net/", nil)
	}))

	a1, err := s.client("a")
	require.NoError(t, err)
	a2, err := s.client("a")
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	_, err = s.client("b")
	require.NoError(t, err)
	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 1, calls["b"])

	_, err = s.client("broken")
	require.Error(t, err)
	_, err = s.client("broken")
	require.Error(t, err)
	assert.Equal(t, 2, calls["broken"])
}

func TestDefaultFactory(t *testing.T) {
	_, err := Config{SASToken: "?sv=2022-11-02&sig=abc"}.factory()("acct")
	require.NoError(t, err)

	_, err = Config{AccountKey: "not base64!"}.factory()("acct")
	require.Error(t, err)
}

// Well-known Azurite development credentials.
const (
	azuriteAccount = "devstoreaccount1"
	azuriteKey     = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
	azuriteAddr    = "127.0.0.1:10000"
)

func newAzuriteStore(t *testing.T) *Store {
	t.Helper()

	conn, err := net.DialTimeout("tcp", azuriteAddr, 200*time.Millisecond)
	if err != nil {
		t.Skip("azurite not available")
	}
	_ = conn.Close()

	return New(Config{
		EndpointTemplate: "http://" + azuriteAddr + "/%s",
		AccountKey:       azuriteKey,
	}, WithCopyPollInterval(10*time.Millisecond), WithPageSize(2))
}

func TestAzurite(t *testing.T) {
	s := newAzuriteStore(t)
	ctx := context.Background()

	c, err := s.client(azuriteAccount)
	require.NoError(t, err)

	containerName := "blobio-test"
	_, _ = c.CreateContainer(ctx, containerName, nil)
	t.Cleanup(func() { _, _ = c.DeleteContainer(context.Background(), containerName, nil) })

	loc := blobio.MustParseLocator("azfs://" + azuriteAccount + "/" + containerName + "/dir/obj")

	parts := [][]byte{bytes.Repeat([]byte("a"), 100), bytes.Repeat([]byte("b"), 50)}
	blocks := make([]blobio.Block, len(parts))
	for i, p := range parts {
		id := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("block-%04d", i)))
		blocks[i], err = s.StageBlock(ctx, loc, blobio.Block{Number: i + 1, ID: id}, p)
		require.NoError(t, err)
	}
	require.NoError(t, s.CommitBlocks(ctx, loc, blocks, blobio.CommitOptions{ContentType: "text/plain"}))

	props, err := s.GetProperties(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, int64(150), props.Size)
	assert.Equal(t, "text/plain", props.ContentType)

	data, err := s.DownloadRange(ctx, loc, 95, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("aaaaabbbbb"), data)

	dst := loc.WithKey("dir/copy")
	require.NoError(t, s.CopyObject(ctx, loc, dst))

	third := loc.WithKey("dir/third")
	require.NoError(t, s.CommitBlocks(ctx, third, nil, blobio.CommitOptions{}))

	var keys []string
	token := ""
	for {
		page, err := s.ListObjects(ctx, loc.WithKey("dir/"), token)
		require.NoError(t, err)
		for _, e := range page.Entries {
			keys = append(keys, e.Key)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	assert.Equal(t, []string{"dir/copy", "dir/obj", "dir/third"}, keys)

	require.NoError(t, s.DeleteObject(ctx, loc))
	assert.True(t, blobio.IsNotFound(s.DeleteObject(ctx, loc)))

	_, err = s.GetProperties(ctx, loc)
	assert.True(t, blobio.IsNotFound(err))
}
