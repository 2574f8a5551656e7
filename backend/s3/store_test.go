package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blobio"
)

var obj = blobio.MustParseLocator("azfs://account/test-bucket/dir/obj")

func TestStore_GetProperties(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, WithKeyPrefix("prefix"))

	t.Run("NotFound", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prefix/dir/missing"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.GetProperties(context.Background(), obj.WithKey("dir/missing"))
		assert.ErrorIs(t, err, blobio.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prefix/dir/obj"
		})).Return(&s3.HeadObjectOutput{
			ContentLength: aws.Int64(100),
			ContentType:   aws.String("text/plain"),
			ETag:          aws.String(`"abc"`),
		}, nil).Once()

		props, err := store.GetProperties(context.Background(), obj)
		require.NoError(t, err)
		assert.Equal(t, int64(100), props.Size)
		assert.Equal(t, "text/plain", props.ContentType)
	})

	mockClient.AssertExpectations(t)
}

func TestStore_DownloadRange(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient)

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Bucket == "test-bucket" && *input.Key == "dir/obj" && *input.Range == "bytes=2-6"
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader("llo W")),
	}, nil).Once()

	data, err := store.DownloadRange(context.Background(), obj, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "llo W", string(data))

	data, err = store.DownloadRange(context.Background(), obj, 2, 0)
	require.NoError(t, err)
	assert.Empty(t, data)

	mockClient.AssertExpectations(t)
}

func TestStore_MultipartLifecycle(t *testing.T) {
	ctx := context.Background()
	mockClient := new(MockS3Client)
	store := NewStore(mockClient)

	mockClient.On("CreateMultipartUpload", mock.Anything, mock.MatchedBy(func(input *s3.CreateMultipartUploadInput) bool {
		return *input.Key == "dir/obj" && *input.ContentType == "text/csv" &&
			input.ChecksumAlgorithm == types.ChecksumAlgorithmCrc32c
	})).Return(&s3.CreateMultipartUploadOutput{UploadId: aws.String("u-1")}, nil).Once()

	uploadID, err := store.StartUpload(ctx, obj, blobio.CommitOptions{ContentType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", uploadID)

	mockClient.On("UploadPart", mock.Anything, mock.MatchedBy(func(input *s3.UploadPartInput) bool {
		return *input.UploadId == "u-1" && *input.PartNumber == 1 &&
			*input.ChecksumCRC32C == "4waSgw==" && *input.ContentLength == 9
	})).Return(&s3.UploadPartOutput{ETag: aws.String(`"etag-1"`)}, nil).Once()

	block, err := store.StageBlock(ctx, obj, blobio.Block{Number: 1, ID: "id", UploadID: uploadID}, []byte("123456789"))
	require.NoError(t, err)
	assert.Equal(t, `"etag-1"`, block.ETag)
	assert.Equal(t, "4waSgw==", block.Checksum)

	mockClient.On("CompleteMultipartUpload", mock.Anything, mock.MatchedBy(func(input *s3.CompleteMultipartUploadInput) bool {
		parts := input.MultipartUpload.Parts
		return *input.UploadId == "u-1" && len(parts) == 1 &&
			*parts[0].ETag == `"etag-1"` && *parts[0].PartNumber == 1 && *parts[0].ChecksumCRC32C == "4waSgw=="
	})).Return(&s3.CompleteMultipartUploadOutput{}, nil).Once()

	require.NoError(t, store.CommitBlocks(ctx, obj, []blobio.Block{block}, blobio.CommitOptions{}))

	mockClient.On("AbortMultipartUpload", mock.Anything, mock.MatchedBy(func(input *s3.AbortMultipartUploadInput) bool {
		return *input.UploadId == "u-2"
	})).Return(nil, &types.NoSuchUpload{}).Once()

	assert.ErrorIs(t, store.AbortUpload(ctx, obj, "u-2"), blobio.ErrNotFound)

	mockClient.AssertExpectations(t)
}

func TestStore_StageBlockWithoutSession(t *testing.T) {
	store := NewStore(new(MockS3Client))
	_, err := store.StageBlock(context.Background(), obj, blobio.Block{Number: 1}, []byte("x"))
	assert.ErrorIs(t, err, errNoUploadSession)
}

func TestStore_CommitEmpty(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient)

	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(input *s3.PutObjectInput) bool {
		return *input.Key == "dir/obj" && *input.ContentLength == 0
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.CommitBlocks(context.Background(), obj, nil, blobio.CommitOptions{}))
	mockClient.AssertExpectations(t)
}

func TestStore_DeleteObject(t *testing.T) {
	ctx := context.Background()
	mockClient := new(MockS3Client)
	store := NewStore(mockClient)

	mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(1)}, nil).Once()
	mockClient.On("DeleteObject", mock.Anything, mock.MatchedBy(func(input *s3.DeleteObjectInput) bool {
		return *input.Bucket == "test-bucket" && *input.Key == "dir/obj"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	require.NoError(t, store.DeleteObject(ctx, obj))

	mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(nil, &types.NotFound{}).Once()
	assert.ErrorIs(t, store.DeleteObject(ctx, obj), blobio.ErrNotFound)

	mockClient.AssertExpectations(t)
}

func TestStore_ListObjects_Pagination(t *testing.T) {
	ctx := context.Background()
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, WithKeyPrefix("prefix/"), WithMaxKeys(1))
	prefix := blobio.MustParseLocator("azfs://account/test-bucket/")

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken == nil && *input.Prefix == "prefix/" && *input.MaxKeys == 1
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("prefix/1"), Size: aws.Int64(10)}},
	}, nil).Once()

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken != nil && *input.ContinuationToken == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("prefix/dir/2"), Size: aws.Int64(20)}},
	}, nil).Once()

	page, err := store.ListObjects(ctx, prefix, "")
	require.NoError(t, err)
	assert.Equal(t, []blobio.ObjectInfo{{Key: "1", Size: 10}}, page.Entries)
	assert.Equal(t, "token", page.NextPageToken)

	page, err = store.ListObjects(ctx, prefix, page.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, []blobio.ObjectInfo{{Key: "dir/2", Size: 20}}, page.Entries)
	assert.Empty(t, page.NextPageToken)

	mockClient.AssertExpectations(t)
}

func TestStore_CopyObject(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient)
	dst := blobio.MustParseLocator("azfs://account/other-bucket/copy of obj")

	mockClient.On("CopyObject", mock.Anything, mock.MatchedBy(func(input *s3.CopyObjectInput) bool {
		return *input.Bucket == "other-bucket" && *input.Key == "copy of obj" &&
			*input.CopySource == "test-bucket/dir/obj"
	})).Return(&s3.CopyObjectOutput{}, nil).Once()

	require.NoError(t, store.CopyObject(context.Background(), obj, dst))
	mockClient.AssertExpectations(t)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(&types.NoSuchKey{}), blobio.ErrNotFound)
	assert.ErrorIs(t, mapError(&types.NoSuchBucket{}), blobio.ErrNotFound)
	assert.True(t, blobio.IsTransient(mapError(&smithy.GenericAPIError{Code: "SlowDown"})))
	assert.ErrorIs(t, mapError(&smithy.GenericAPIError{Code: "NoSuchKey"}), blobio.ErrNotFound)
	assert.Equal(t, blobio.KindPermanent, blobio.Classify(mapError(&smithy.GenericAPIError{Code: "AccessDenied"})))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
}
