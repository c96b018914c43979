// Package azblob adapts Azure Blob Storage to port.ObjectStorage.
package azblob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.uber.org/zap"

	"claimflow/internal/config"
	"claimflow/internal/domain"
	"claimflow/internal/port"
)

type azureClient struct {
	client    *azblob.Client
	container string
}

// NewAzureClient creates an Azure-backed ObjectStorage bound to container and
// creates the container when it is missing.
func NewAzureClient(ctx context.Context, cfg *config.AzureConfig, container string) (port.ObjectStorage, error) {
	if container == "" {
		container = cfg.Container
	}
	if cfg.ConnectionString == "" || container == "" {
		return nil, domain.MissingConfig("azure connection string and container")
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	if _, err := client.CreateContainer(ctx, container, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, fmt.Errorf("create container %s: %w", container, err)
		}
	}
	zap.L().Debug("azblob.NewAzureClient: container ready", zap.String("container", container))

	return &azureClient{client: client, container: container}, nil
}

func (a *azureClient) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	_, err := a.client.UploadBuffer(ctx, a.container, key, body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("upload blob %s: %w", key, err)
	}
	return a.container + "/" + key, nil
}

func (a *azureClient) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

func (a *azureClient) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	blobClient := a.client.
		ServiceClient().
		NewContainerClient(a.container).
		NewBlobClient(key)

	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check blob existence %s: %w", key, err)
	}
	return true, nil
}

func (a *azureClient) Delete(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if _, err := a.client.DeleteBlob(ctx, a.container, key, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete blob %s: %w", key, err)
	}
	return true, nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty storage key", domain.ErrInvalidInput)
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("%w: storage key contains invalid path segment", domain.ErrInvalidInput)
	}
	return nil
}
