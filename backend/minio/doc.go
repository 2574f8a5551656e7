// Package minio provides a MinIO implementation of blobio.Client.
//
//	store, err := minio.New(minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	})
//	if err != nil {
//	    return err
//	}
//	fs := blobio.New(store)
//
// The container segment of an azfs:// locator names the bucket.
package minio
