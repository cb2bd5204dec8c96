package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/riskgraph/addrrisk/internal/cache"
	"github.com/riskgraph/addrrisk/internal/domain"
)

type countingClassifier struct {
	calls  int
	result *domain.ClassificationResult
}

func (c *countingClassifier) Classify(ctx context.Context, tenantID, address, chain string) (*domain.ClassificationResult, error) {
	c.calls++
	return c.result, nil
}

func TestStaticClassifierUnknownDefault(t *testing.T) {
	sc := NewStaticClassifier()
	result, err := sc.Classify(context.Background(), "tenant-1", "addr-unseen", "bitcoin")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Type != domain.EntityTypeUnknown || result.Category != domain.CategoryUnknown {
		t.Errorf("expected unknown classification for unseen address, got %+v", result)
	}
}

func TestStaticClassifierSeededLookup(t *testing.T) {
	sc := NewStaticClassifier()
	sc.Set("bitcoin", "addr-mixer", &domain.ClassificationResult{
		Type: domain.EntityTypeMixer, Category: domain.CategoryMixer, Tags: []string{domain.TagMixer},
	})

	result, err := sc.Classify(context.Background(), "tenant-1", "addr-mixer", "bitcoin")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Category != domain.CategoryMixer {
		t.Errorf("expected mixer category, got %s", result.Category)
	}
}

func TestCachedClassifierMemoizesAcrossCalls(t *testing.T) {
	inner := &countingClassifier{result: &domain.ClassificationResult{
		Type: domain.EntityTypeSanctioned, Category: domain.CategorySanctioned, Tags: []string{domain.TagSanctioned},
	}}
	lru := cache.NewLRUCache(10)
	cc := NewCachedClassifier(inner, lru, time.Minute)

	ctx := context.Background()
	first, err := cc.Classify(ctx, "tenant-1", "addr-1", "bitcoin")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	second, err := cc.Classify(ctx, "tenant-1", "addr-1", "bitcoin")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("expected inner classifier called once, got %d calls", inner.calls)
	}
	if first.Category != second.Category {
		t.Errorf("expected consistent classification across cached calls")
	}
}
