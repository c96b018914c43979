package workflowconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"claimflow/internal/domain"
)

// Loader reads the raw configuration blob for a workflow and tenant. It
// returns domain.ErrNotFound when no configuration exists.
type Loader interface {
	GetConfig(ctx context.Context, workflowKey, tenantID string) ([]byte, error)
}

// Cache is a bounded, expiring cache of decoded configurations. It is owned by
// the orchestrator; nothing about it is process-global.
type Cache struct {
	loader Loader
	lru    *expirable.LRU[string, *WorkflowConfig]
}

// NewCache creates a cache holding at most size entries for ttl each.
func NewCache(loader Loader, size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 256
	}
	return &Cache{
		loader: loader,
		lru:    expirable.NewLRU[string, *WorkflowConfig](size, nil, ttl),
	}
}

func cacheKey(tenantID, workflowKey string) string {
	return tenantID + "/" + workflowKey
}

// Get returns the decoded configuration, loading it on a miss. A missing
// configuration is reported as domain.ErrConfigurationMissing.
func (c *Cache) Get(ctx context.Context, tenantID, workflowKey string) (*WorkflowConfig, error) {
	key := cacheKey(tenantID, workflowKey)
	if cfg, ok := c.lru.Get(key); ok {
		return cfg, nil
	}

	blob, err := c.loader.GetConfig(ctx, workflowKey, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.MissingConfig("workflow config %s for tenant %s", workflowKey, tenantID)
		}
		return nil, fmt.Errorf("loading workflow config %s: %w", key, err)
	}

	cfg, err := Parse(tenantID, workflowKey, blob)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, cfg)
	zap.L().Debug("workflowconfig.Cache: loaded", zap.String("key", key), zap.Int("agents", len(cfg.Agents)))
	return cfg, nil
}

// Invalidate drops one entry.
func (c *Cache) Invalidate(tenantID, workflowKey string) {
	c.lru.Remove(cacheKey(tenantID, workflowKey))
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
