// Package txsource provides Transaction Source implementations that
// serve the Ego-Graph Builder's paginated, newest-first history
// lookups.
package txsource

import (
	"context"

	"github.com/riskgraph/addrrisk/internal/domain"
)

// RepositoryTransactionSource serves transaction history directly from
// internal/repository's SQL-backed transaction ledger.
type RepositoryTransactionSource struct {
	repo domain.Repository
}

// NewRepositoryTransactionSource wraps a Repository as a
// domain.TransactionSource.
func NewRepositoryTransactionSource(repo domain.Repository) *RepositoryTransactionSource {
	return &RepositoryTransactionSource{repo: repo}
}

// Fetch implements domain.TransactionSource.
func (s *RepositoryTransactionSource) Fetch(ctx context.Context, tenantID, address string, maxN int) ([]*domain.TxRecord, error) {
	return s.repo.GetTransactionsByAddress(ctx, tenantID, address, maxN)
}
