// Package s3 provides an S3 implementation of blobio.Client.
//
// # Usage
//
//	store, err := s3.New(ctx,
//	    s3.WithRegion("us-east-1"),
//	    s3.WithKeyPrefix("datasets/"),
//	)
//	if err != nil {
//	    return err
//	}
//	fs := blobio.New(store)
//
// The container segment of an azfs:// locator names the bucket. Blocks map to
// multipart parts, so the default 8 MiB block size satisfies the 5 MiB minimum
// part size of S3. Parts carry a CRC32C checksum unless WithChecksum(false) is set.
//
// S3-compatible services can be reached with WithEndpoint, which also switches
// to path-style addressing.
package s3
