package storage

import (
	"context"

	"claimflow/internal/config"
	"claimflow/internal/port"
	"claimflow/internal/storage/azblob"
	"claimflow/internal/storage/memory"
	"claimflow/internal/storage/minio"
	"claimflow/internal/storage/s3"
)

// Provider names accepted in configuration.
const (
	ProviderS3     = "s3"
	ProviderMinio  = "minio"
	ProviderAzure  = "azure"
	ProviderMemory = "memory"
)

// NewDefaultRegistry registers every built-in provider.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ProviderS3, func(ctx context.Context, cfg *config.StorageConfig, bucket string) (port.ObjectStorage, error) {
		return s3.NewS3Client(ctx, &cfg.S3, bucket)
	})
	r.Register(ProviderMinio, func(ctx context.Context, cfg *config.StorageConfig, bucket string) (port.ObjectStorage, error) {
		return minio.NewMinioClient(ctx, &cfg.Minio, bucket)
	})
	r.Register(ProviderAzure, func(ctx context.Context, cfg *config.StorageConfig, bucket string) (port.ObjectStorage, error) {
		return azblob.NewAzureClient(ctx, &cfg.Azure, bucket)
	})
	r.Register(ProviderMemory, func(_ context.Context, _ *config.StorageConfig, bucket string) (port.ObjectStorage, error) {
		return memory.New(bucket), nil
	})
	return r
}
