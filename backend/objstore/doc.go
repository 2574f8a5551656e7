// Package objstore adapts any thanos-io/objstore Bucket (GCS, S3, Azure,
// filesystem, in-memory) to blobio.Client.
//
//	bucket := objstore.NewInMemBucket()
//	fs := blobio.New(blobobjstore.New(bucket))
//
// Buckets have no block staging, so blocks are uploaded as hidden objects
// under <container>/.blobio-staging/<session>/ and streamed into the
// destination on commit. Staged objects are removed after a successful
// commit or an abort and never appear in listings.
package objstore
