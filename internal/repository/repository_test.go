package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "addrrisk-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetTransactionsByAddress", func(t *testing.T) {
		addr := "addr-centre"
		tx1 := &domain.TxRecord{
			Hash: "0xaaa", From: "addr-centre", To: "addr-mixer",
			Amount: 1000.00, Type: domain.TxSent,
			Timestamp: time.Now().UTC().Add(-2 * time.Hour),
		}
		tx2 := &domain.TxRecord{
			Hash: "0xbbb", From: "addr-cex", To: "addr-centre",
			Amount: 500.00, Type: domain.TxReceived, Tags: []string{"exchange"},
			Timestamp: time.Now().UTC().Add(-1 * time.Hour),
		}

		if err := repo.SaveTransaction(ctx, tenantID, addr, tx1); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}
		if err := repo.SaveTransaction(ctx, tenantID, addr, tx2); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		records, err := repo.GetTransactionsByAddress(ctx, tenantID, addr, 10)
		if err != nil {
			t.Fatalf("GetTransactionsByAddress failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		// newest first
		if records[0].Hash != tx2.Hash {
			t.Errorf("expected newest-first ordering, got %s first", records[0].Hash)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		otherTenant := "tenant-002"
		records, err := repo.GetTransactionsByAddress(ctx, otherTenant, "addr-centre", 10)
		if err != nil {
			t.Fatalf("GetTransactionsByAddress failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records visible to a different tenant, got %d", len(records))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		err := repo.SaveTransaction(ctx, "", "addr", &domain.TxRecord{Hash: "x"})
		if err == nil {
			t.Error("expected error for empty tenantID")
		}

		_, err = repo.GetTransactionsByAddress(ctx, "", "addr", 10)
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("SaveAndGetCustomRule", func(t *testing.T) {
		rule := &domain.CustomRule{
			ID: "rule-001", Name: "high exposure", Version: 1,
			Expression: "direct_sanctioned_pct > 1.0", Enabled: true,
			Bands: []domain.RuleBand{{Outcome: domain.RuleOutcomeFlag}},
		}

		if err := repo.SaveCustomRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveCustomRule failed: %v", err)
		}

		retrieved, err := repo.GetCustomRule(ctx, tenantID, rule.ID)
		if err != nil {
			t.Fatalf("GetCustomRule failed: %v", err)
		}
		if retrieved.Expression != rule.Expression {
			t.Errorf("expected expression %q, got %q", rule.Expression, retrieved.Expression)
		}

		rules, err := repo.ListCustomRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListCustomRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("expected 1 rule, got %d", len(rules))
		}
	})

	t.Run("SaveAndDeleteRuleBundle", func(t *testing.T) {
		bundle := &domain.RuleBundle{
			ID: "bundle-001", Name: "combined exposure", Version: 1,
			Rules:          []domain.RuleBundleWeight{{RuleID: "rule-001", Weight: 1.0}},
			AlertThreshold: 0.5,
			Enabled:        true,
		}

		if err := repo.SaveRuleBundle(ctx, tenantID, bundle); err != nil {
			t.Fatalf("SaveRuleBundle failed: %v", err)
		}

		retrieved, err := repo.GetRuleBundle(ctx, tenantID, bundle.ID)
		if err != nil {
			t.Fatalf("GetRuleBundle failed: %v", err)
		}
		if len(retrieved.Rules) != 1 {
			t.Errorf("expected 1 weighted rule, got %d", len(retrieved.Rules))
		}

		if err := repo.DeleteRuleBundle(ctx, tenantID, bundle.ID); err != nil {
			t.Fatalf("DeleteRuleBundle failed: %v", err)
		}

		_, err = repo.GetRuleBundle(ctx, tenantID, bundle.ID)
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound after delete, got: %v", err)
		}
	})

	t.Run("SaveAndGetAnalysis", func(t *testing.T) {
		analysis := &domain.Analysis{
			ID: "analysis-001", Address: "addr-centre", Chain: "bitcoin", Asset: "BTC",
			Score: &domain.RiskScore{
				Total: 42, Level: domain.RiskLevelMedium,
				Breakdown: []domain.BreakdownComponent{{Dimension: "rule_score", Value: 20}},
			},
			CreatedAt: time.Now().UTC(),
			Metadata:  domain.AnalysisMetadata{TraceID: "trace-001"},
		}

		if err := repo.SaveAnalysis(ctx, tenantID, analysis); err != nil {
			t.Fatalf("SaveAnalysis failed: %v", err)
		}

		retrieved, err := repo.GetAnalysis(ctx, tenantID, analysis.ID)
		if err != nil {
			t.Fatalf("GetAnalysis failed: %v", err)
		}
		if retrieved.Score.Total != 42 {
			t.Errorf("expected score 42, got %d", retrieved.Score.Total)
		}
		if retrieved.Metadata.TraceID != "trace-001" {
			t.Errorf("expected trace ID to round-trip, got %q", retrieved.Metadata.TraceID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetCustomRule(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetAnalysis(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
