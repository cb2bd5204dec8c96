// Package classifier provides Entity Classifier implementations and a
// caching adapter that wraps any domain.EntityClassifier.
package classifier

import (
	"context"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
)

// CachedClassifier memoizes a wrapped classifier's answers behind
// internal/cache's two-phase cache. Per §9, classification is treated
// as an immutable snapshot for the duration of one analysis; reloads
// only happen between analyses, which this cache's TTL governs.
type CachedClassifier struct {
	inner domain.EntityClassifier
	cache domain.Cache
	ttl   time.Duration
}

// NewCachedClassifier wraps inner with a cache lookup. ttl defaults to
// 10 minutes when <= 0.
func NewCachedClassifier(inner domain.EntityClassifier, cache domain.Cache, ttl time.Duration) *CachedClassifier {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedClassifier{inner: inner, cache: cache, ttl: ttl}
}

// Classify returns the cached classification for address if present,
// otherwise classifies via inner and populates the cache. A cache
// failure is not fatal: it falls through to inner directly.
func (c *CachedClassifier) Classify(ctx context.Context, tenantID, address, chain string) (*domain.ClassificationResult, error) {
	if cached, err := c.cache.GetClassification(ctx, tenantID, address); err == nil && cached != nil {
		return &domain.ClassificationResult{Type: cached.Type, Category: cached.Category, Tags: cached.Tags}, nil
	}

	result, err := c.inner.Classify(ctx, tenantID, address, chain)
	if err != nil {
		return nil, err
	}

	_ = c.cache.SetClassification(ctx, tenantID, address, &domain.CachedClassification{
		Type: result.Type, Category: result.Category, Tags: result.Tags,
	}, c.ttl)

	return result, nil
}
