package txsource

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
	"github.com/riskgraph/addrrisk/internal/repository"
)

func TestRepositoryTransactionSourceFetch(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "txsource-test-*.db")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-1"
	address := "addr-centre"

	tx := &domain.TxRecord{
		Hash: "0x1", From: "addr-centre", To: "addr-mixer",
		Amount: 100, Type: domain.TxSent, Timestamp: time.Now().UTC(),
	}
	if err := repo.SaveTransaction(ctx, tenantID, address, tx); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}

	source := NewRepositoryTransactionSource(repo)
	records, err := source.Fetch(ctx, tenantID, address, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Hash != tx.Hash {
		t.Errorf("expected hash %s, got %s", tx.Hash, records[0].Hash)
	}
}
