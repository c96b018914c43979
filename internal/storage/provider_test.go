package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/config"
	"claimflow/internal/port"
	"claimflow/internal/storage"
	"claimflow/internal/storage/memory"
)

func TestProviderCache_CreatesOncePerTenant(t *testing.T) {
	calls := 0
	reg := storage.NewRegistry()
	reg.Register("memory", func(_ context.Context, _ *config.StorageConfig, bucket string) (port.ObjectStorage, error) {
		calls++
		return memory.New(bucket), nil
	})
	cache := storage.NewProviderCache(reg, &config.StorageConfig{Provider: "memory"}, 8, time.Minute)
	ctx := context.Background()

	a1, err := cache.ForTenant(ctx, "acme", port.StorageSelection{})
	require.NoError(t, err)
	a2, err := cache.ForTenant(ctx, "acme", port.StorageSelection{Provider: "MEMORY"})
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	_, err = cache.ForTenant(ctx, "globex", port.StorageSelection{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	cache.Purge()
	_, err = cache.ForTenant(ctx, "acme", port.StorageSelection{})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestProviderCache_UnknownProvider(t *testing.T) {
	cache := storage.NewProviderCache(storage.NewRegistry(), &config.StorageConfig{Provider: "tape"}, 8, time.Minute)
	_, err := cache.ForTenant(context.Background(), "acme", port.StorageSelection{})
	assert.ErrorContains(t, err, "unknown storage provider: tape")
}
