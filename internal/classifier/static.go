package classifier

import (
	"context"
	"sync"

	"github.com/riskgraph/addrrisk/internal/domain"
)

// StaticClassifier is the default runnable domain.EntityClassifier: an
// in-memory lookup keyed by chain-qualified address. Entity
// classification from third-party intelligence feeds is explicitly out
// of scope (spec §1); this is the lookup table the rest of the
// pipeline consumes in its place.
type StaticClassifier struct {
	mu      sync.RWMutex
	entries map[string]*domain.ClassificationResult
}

// NewStaticClassifier creates an empty StaticClassifier. Unknown
// addresses classify as EntityTypeUnknown/CategoryUnknown, per §9's
// documented fallback for a classifier that cannot answer.
func NewStaticClassifier() *StaticClassifier {
	return &StaticClassifier{entries: make(map[string]*domain.ClassificationResult)}
}

// Seed loads a batch of known classifications, keyed by
// chain-qualified address (e.g. "bitcoin:1A1zP1...").
func (s *StaticClassifier) Seed(entries map[string]*domain.ClassificationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, cls := range entries {
		s.entries[addr] = cls
	}
}

// Set records a single classification, keyed by chain-qualified
// address.
func (s *StaticClassifier) Set(chain, address string, cls *domain.ClassificationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[chain+":"+address] = cls
}

// Classify implements domain.EntityClassifier.
func (s *StaticClassifier) Classify(ctx context.Context, tenantID, address, chain string) (*domain.ClassificationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cls, ok := s.entries[chain+":"+address]; ok {
		tags := append([]string{}, cls.Tags...)
		return &domain.ClassificationResult{Type: cls.Type, Category: cls.Category, Tags: tags}, nil
	}

	return &domain.ClassificationResult{Type: domain.EntityTypeUnknown, Category: domain.CategoryUnknown}, nil
}
