package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
)

// highRiskClassificationTTL bounds how long a classification for a
// high-risk category may be cached, no matter what TTL the caller
// requested. Sanctions lists and scam/darknet designations change
// over time; caching a "sanctioned" or "clean" verdict for a
// high-risk category past this ceiling risks scoring an address
// against a stale classification for longer than is acceptable for
// this kind of exposure. Low-risk categories are unaffected and keep
// whatever TTL the entity classifier requested.
const highRiskClassificationTTL = 15 * time.Minute

// isHighRiskCategory reports whether cat warrants the shortened
// classification TTL.
func isHighRiskCategory(cat domain.EntityCategory) bool {
	switch cat {
	case domain.CategorySanctioned,
		domain.CategoryDarknet,
		domain.CategoryScam,
		domain.CategoryRansomware,
		domain.CategoryTerroristFinancing,
		domain.CategoryStolen:
		return true
	default:
		return false
	}
}

// cappedClassificationTTL clamps ttl to highRiskClassificationTTL when
// data's category is high-risk.
func cappedClassificationTTL(data *domain.CachedClassification, ttl time.Duration) time.Duration {
	if data == nil || !isHighRiskCategory(data.Category) {
		return ttl
	}
	if ttl <= 0 || ttl > highRiskClassificationTTL {
		return highRiskClassificationTTL
	}
	return ttl
}

// New creates a new cache based on configuration.
// For Community tier: returns LRU cache.
// For Pro tier with two-phase: returns TwoPhaseCache wrapping LRU + Redis.
// For Pro tier without two-phase: returns Redis cache.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache implements the two-phase caching strategy.
// L1: Local LRU cache for fast reads
// L2: Redis for distributed caching and persistence
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
	l1TTL  time.Duration
}

// NewTwoPhaseCache creates a two-phase cache with LRU + Redis.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	local := NewLRUCache(cfg.LocalMaxSize)

	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}

	l1TTL := cfg.LocalTTL
	if l1TTL == 0 {
		l1TTL = 5 * time.Minute
	}

	return &TwoPhaseCache{
		local:  local,
		remote: remote,
		l1TTL:  l1TTL,
	}, nil
}

// Get retrieves from L1 first, then L2. Populates L1 on L2 hit.
func (c *TwoPhaseCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	// Check L1 first
	val, err := c.local.Get(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		return val, nil
	}

	// Check L2
	val, err = c.remote.Get(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		// Populate L1 for future reads
		_ = c.local.Set(ctx, tenantID, key, val, c.l1TTL)
	}

	return val, nil
}

// Set writes to both L1 and L2.
func (c *TwoPhaseCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	// Write to L1 with shorter TTL
	l1TTL := c.l1TTL
	if ttl < l1TTL {
		l1TTL = ttl
	}
	if err := c.local.Set(ctx, tenantID, key, value, l1TTL); err != nil {
		return err
	}

	// Write to L2 with full TTL
	return c.remote.Set(ctx, tenantID, key, value, ttl)
}

// Delete removes from both L1 and L2.
func (c *TwoPhaseCache) Delete(ctx context.Context, tenantID string, key string) error {
	if err := c.local.Delete(ctx, tenantID, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, tenantID, key)
}

// GetClassification retrieves a cached entity classification.
func (c *TwoPhaseCache) GetClassification(ctx context.Context, tenantID string, address string) (*domain.CachedClassification, error) {
	// Check L1 first
	data, err := c.local.GetClassification(ctx, tenantID, address)
	if err != nil {
		return nil, err
	}
	if data != nil {
		return data, nil
	}

	// Check L2
	data, err = c.remote.GetClassification(ctx, tenantID, address)
	if err != nil {
		return nil, err
	}
	if data != nil {
		// Populate L1
		_ = c.local.SetClassification(ctx, tenantID, address, data, c.l1TTL)
	}

	return data, nil
}

// SetClassification caches an entity classification in both L1 and L2.
func (c *TwoPhaseCache) SetClassification(ctx context.Context, tenantID string, address string, data *domain.CachedClassification, ttl time.Duration) error {
	l1TTL := c.l1TTL
	if ttl < l1TTL {
		l1TTL = ttl
	}
	if err := c.local.SetClassification(ctx, tenantID, address, data, l1TTL); err != nil {
		return err
	}
	return c.remote.SetClassification(ctx, tenantID, address, data, ttl)
}

// IncrementCounter uses Redis for distributed atomic counters.
// L1 is not used for counters to ensure accuracy across nodes.
func (c *TwoPhaseCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	return c.remote.IncrementCounter(ctx, tenantID, key, window)
}

// Ping checks both L1 and L2 health.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("L1 ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

// Close closes both L1 and L2.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats returns L1 cache statistics.
func (c *TwoPhaseCache) Stats() (size int, capacity int) {
	return c.local.Stats()
}
