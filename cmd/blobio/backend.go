package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"github.com/thanos-io/objstore/providers/filesystem"

	"github.com/hupe1980/blobio"
	"github.com/hupe1980/blobio/backend/azure"
	"github.com/hupe1980/blobio/backend/memory"
	"github.com/hupe1980/blobio/backend/minio"
	"github.com/hupe1980/blobio/backend/objstore"
	"github.com/hupe1980/blobio/backend/s3"
)

// Backend names accepted by --backend.
const (
	BackendAzure    = "azure"
	BackendS3       = "s3"
	BackendMinIO    = "minio"
	BackendObjstore = "objstore"
	BackendMemory   = "memory"
)

func newClient(ctx context.Context, v *viper.Viper) (blobio.Client, error) {
	switch name := v.GetString("backend"); name {
	case BackendAzure:
		return azure.New(azure.Config{
			EndpointTemplate: v.GetString("azure-endpoint"),
			AccountKey:       v.GetString("azure-account-key"),
			SASToken:         v.GetString("azure-sas-token"),
			ConnectionString: v.GetString("azure-connection-string"),
		}), nil
	case BackendS3:
		var opts []s3.Option
		if region := v.GetString("s3-region"); region != "" {
			opts = append(opts, s3.WithRegion(region))
		}
		if endpoint := v.GetString("s3-endpoint"); endpoint != "" {
			opts = append(opts, s3.WithEndpoint(endpoint))
		}
		return s3.New(ctx, opts...)
	case BackendMinIO:
		return minio.New(minio.Config{
			Endpoint:  v.GetString("minio-endpoint"),
			AccessKey: v.GetString("minio-access-key"),
			SecretKey: v.GetString("minio-secret-key"),
			Secure:    v.GetBool("minio-secure"),
		})
	case BackendObjstore:
		dir := v.GetString("objstore-dir")
		if dir == "" {
			return nil, fmt.Errorf("backend %s: --objstore-dir is required", name)
		}
		bucket, err := filesystem.NewBucket(dir)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", name, err)
		}
		return objstore.New(bucket), nil
	case BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
