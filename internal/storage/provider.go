// Package storage selects the object store a tenant's workflow writes to.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"claimflow/internal/config"
	"claimflow/internal/port"
)

// ProviderFactory creates an ObjectStorage bound to a bucket.
type ProviderFactory func(ctx context.Context, cfg *config.StorageConfig, bucket string) (port.ObjectStorage, error)

// Registry maps provider names ("s3", "minio", "azure", "memory") to factories.
type Registry struct {
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]ProviderFactory{}}
}

// Register adds or replaces a provider factory.
func (r *Registry) Register(name string, factory ProviderFactory) {
	r.factories[strings.ToLower(name)] = factory
}

// New creates an ObjectStorage using the named provider.
func (r *Registry) New(ctx context.Context, name string, cfg *config.StorageConfig, bucket string) (port.ObjectStorage, error) {
	factory, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown storage provider: %s", name)
	}
	return factory(ctx, cfg, bucket)
}

// ProviderCache implements port.StorageResolver. Clients are created once per
// (tenant, provider, bucket) and kept for a bounded time.
type ProviderCache struct {
	registry *Registry
	cfg      *config.StorageConfig

	mu  sync.Mutex
	lru *expirable.LRU[string, port.ObjectStorage]
}

// NewProviderCache creates a cache of at most size clients, each kept for ttl.
func NewProviderCache(registry *Registry, cfg *config.StorageConfig, size int, ttl time.Duration) *ProviderCache {
	if size <= 0 {
		size = 64
	}
	return &ProviderCache{
		registry: registry,
		cfg:      cfg,
		lru:      expirable.NewLRU[string, port.ObjectStorage](size, nil, ttl),
	}
}

// ForTenant returns the tenant's object store. An empty selection uses the
// configured default provider and bucket.
func (c *ProviderCache) ForTenant(ctx context.Context, tenantID string, sel port.StorageSelection) (port.ObjectStorage, error) {
	provider := sel.Provider
	if provider == "" {
		provider = c.cfg.Provider
	}
	key := strings.Join([]string{tenantID, strings.ToLower(provider), sel.Bucket}, "|")

	c.mu.Lock()
	defer c.mu.Unlock()

	if store, ok := c.lru.Get(key); ok {
		return store, nil
	}
	store, err := c.registry.New(ctx, provider, c.cfg, sel.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage for tenant %s: %w", tenantID, err)
	}
	c.lru.Add(key, store)
	zap.L().Info("storage.ForTenant: provider ready",
		zap.String("tenant_id", tenantID), zap.String("provider", provider), zap.String("bucket", sel.Bucket))
	return store, nil
}

// Purge drops every cached client.
func (c *ProviderCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
