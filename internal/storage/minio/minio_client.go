// Package minio adapts minio-go to port.ObjectStorage.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"claimflow/internal/config"
	"claimflow/internal/domain"
	"claimflow/internal/port"
)

type minioClient struct {
	client *minio.Client
	bucket string
}

// NewMinioClient creates a MinIO-backed ObjectStorage bound to bucket and makes
// sure the bucket exists.
func NewMinioClient(ctx context.Context, cfg *config.MinioConfig, bucket string) (port.ObjectStorage, error) {
	if bucket == "" {
		bucket = cfg.Bucket
	}
	if cfg.Endpoint == "" || bucket == "" {
		return nil, domain.MissingConfig("minio endpoint and bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	c := &minioClient{client: client, bucket: bucket}
	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *minioClient) ensureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", c.bucket, err)
	}
	return nil
}

func (c *minioClient) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	info, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio put: %w", err)
	}
	return fmt.Sprintf("%s/%s", info.Bucket, info.Key), nil
}

func (c *minioClient) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("minio get read: %w", err)
	}
	return data, nil
}

func (c *minioClient) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("minio stat: %w", err)
	}
	return true, nil
}

func (c *minioClient) Delete(ctx context.Context, key string) (bool, error) {
	exists, err := c.Exists(ctx, key)
	if err != nil || !exists {
		return false, err
	}
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("minio delete: %w", err)
	}
	return true, nil
}

func isNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
