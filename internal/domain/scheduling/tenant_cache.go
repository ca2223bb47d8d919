package scheduling

import (
	"context"
	"sync"
	"time"
)

// DefaultTenantConfigTTL is how long loaded tenant settings are reused.
const DefaultTenantConfigTTL = time.Minute

type cachedConfig struct {
	cfg      TenantConfig
	loadedAt time.Time
}

// CachedTenantConfigs wraps a TenantConfigRepository with an in-memory,
// per-tenant TTL cache. Save invalidates the tenant's entry.
type CachedTenantConfigs struct {
	next TenantConfigRepository
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedConfig
}

func NewCachedTenantConfigs(next TenantConfigRepository, ttl time.Duration) *CachedTenantConfigs {
	if ttl <= 0 {
		ttl = DefaultTenantConfigTTL
	}
	return &CachedTenantConfigs{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedConfig),
	}
}

func (c *CachedTenantConfigs) Get(ctx context.Context, tenantID string) (TenantConfig, error) {
	c.mu.RLock()
	e, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.loadedAt) < c.ttl {
		return e.cfg, nil
	}

	cfg, err := c.next.Get(ctx, tenantID)
	if err != nil {
		return TenantConfig{}, err
	}

	c.mu.Lock()
	c.entries[tenantID] = cachedConfig{cfg: cfg, loadedAt: c.now()}
	c.mu.Unlock()
	return cfg, nil
}

func (c *CachedTenantConfigs) Save(ctx context.Context, cfg TenantConfig) error {
	if err := c.next.Save(ctx, cfg); err != nil {
		return err
	}
	c.Invalidate(cfg.TenantID)
	return nil
}

// Invalidate drops the cached settings for tenantID.
func (c *CachedTenantConfigs) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
}
