package graph

import (
	"context"
	"testing"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
)

type fakeClassifier struct {
	answers map[string]*domain.ClassificationResult
	fail    map[string]bool
}

func (f *fakeClassifier) Classify(ctx context.Context, tenantID, address, chain string) (*domain.ClassificationResult, error) {
	if f.fail[address] {
		return nil, domain.NewAnalysisError(domain.ErrClassifierUnavailable, "unavailable", nil)
	}
	if r, ok := f.answers[address]; ok {
		return r, nil
	}
	return &domain.ClassificationResult{Type: domain.EntityTypeExternallyOwned, Category: domain.CategoryClean}, nil
}

type fakeTxSource struct {
	byAddress map[string][]*domain.TxRecord
	fail      map[string]bool
}

func (f *fakeTxSource) Fetch(ctx context.Context, tenantID, address string, maxN int) ([]*domain.TxRecord, error) {
	if f.fail[address] {
		return nil, domain.NewAnalysisError(domain.ErrTransactionSourceUnavailable, "unavailable", nil)
	}
	recs := f.byAddress[address]
	if len(recs) > maxN {
		recs = recs[:maxN]
	}
	return recs, nil
}

func TestBuildSimpleChain(t *testing.T) {
	now := time.Now()
	txSource := &fakeTxSource{byAddress: map[string][]*domain.TxRecord{
		"centre": {
			{Hash: "tx1", Timestamp: now, Amount: 50, From: "centre", To: "mixer", Type: domain.TxSent},
		},
		"mixer": {
			{Hash: "tx2", Timestamp: now, Amount: 50, From: "mixer", To: "cex", Type: domain.TxSent},
		},
	}}
	classifier := &fakeClassifier{answers: map[string]*domain.ClassificationResult{
		"mixer": {Type: domain.EntityTypeMixer, Category: domain.CategoryMixer},
		"cex":   {Type: domain.EntityTypeCEX, Category: domain.CategoryCompliantCEX},
	}}

	b := NewBuilder(classifier, txSource, 500, 100000)
	g, err := b.Build(context.Background(), "tenant", "eth", "centre", 3, 180)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if g.CentreID != "centre" {
		t.Errorf("expected centre id 'centre', got %q", g.CentreID)
	}
	if _, ok := g.Entities["mixer"]; !ok {
		t.Error("expected mixer entity in graph")
	}
	if _, ok := g.Entities["cex"]; !ok {
		t.Error("expected cex entity reachable at depth 2")
	}
	if len(g.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(g.Transactions))
	}

	var mixerHop bool
	for _, tx := range g.Transactions {
		if tx.IsMixerHop {
			mixerHop = true
		}
	}
	if !mixerHop {
		t.Error("expected at least one mixer-hop edge")
	}
}

func TestBuildRespectsMaxDepth(t *testing.T) {
	now := time.Now()
	txSource := &fakeTxSource{byAddress: map[string][]*domain.TxRecord{
		"centre": {{Hash: "tx1", Timestamp: now, Amount: 10, From: "centre", To: "a", Type: domain.TxSent}},
		"a":      {{Hash: "tx2", Timestamp: now, Amount: 10, From: "a", To: "b", Type: domain.TxSent}},
		"b":      {{Hash: "tx3", Timestamp: now, Amount: 10, From: "b", To: "c", Type: domain.TxSent}},
	}}
	classifier := &fakeClassifier{answers: map[string]*domain.ClassificationResult{}}

	b := NewBuilder(classifier, txSource, 500, 100000)
	g, err := b.Build(context.Background(), "tenant", "eth", "centre", 1, 180)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, ok := g.Entities["a"]; !ok {
		t.Error("expected 'a' reachable at depth 1")
	}
	if _, ok := g.Entities["b"]; ok {
		t.Error("'b' should not be reachable: depth cap is 1")
	}
}

func TestBuildRejectsStaleTransactions(t *testing.T) {
	old := time.Now().AddDate(0, 0, -400)
	txSource := &fakeTxSource{byAddress: map[string][]*domain.TxRecord{
		"centre": {{Hash: "tx1", Timestamp: old, Amount: 10, From: "centre", To: "a", Type: domain.TxSent}},
	}}
	classifier := &fakeClassifier{answers: map[string]*domain.ClassificationResult{}}

	b := NewBuilder(classifier, txSource, 500, 100000)
	g, err := b.Build(context.Background(), "tenant", "eth", "centre", 3, 180)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(g.Transactions) != 0 {
		t.Errorf("expected stale transaction to be rejected, got %d transactions", len(g.Transactions))
	}
}

func TestBuildTargetFetchFailureIsFatal(t *testing.T) {
	txSource := &fakeTxSource{fail: map[string]bool{"centre": true}}
	classifier := &fakeClassifier{}

	b := NewBuilder(classifier, txSource, 500, 100000)
	_, err := b.Build(context.Background(), "tenant", "eth", "centre", 3, 180)
	if err == nil {
		t.Fatal("expected error when target's first expansion fails")
	}
	aerr, ok := err.(*domain.AnalysisError)
	if !ok || aerr.Kind != domain.ErrTransactionSourceUnavailable {
		t.Errorf("expected TransactionSourceUnavailable, got %v", err)
	}
}

func TestBuildClassifierDowngrade(t *testing.T) {
	now := time.Now()
	txSource := &fakeTxSource{byAddress: map[string][]*domain.TxRecord{
		"centre": {{Hash: "tx1", Timestamp: now, Amount: 10, From: "centre", To: "unknownaddr", Type: domain.TxSent}},
	}}
	classifier := &fakeClassifier{fail: map[string]bool{"unknownaddr": true}}

	b := NewBuilder(classifier, txSource, 500, 100000)
	g, err := b.Build(context.Background(), "tenant", "eth", "centre", 3, 180)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ent := g.Entities["unknownaddr"]
	if ent == nil {
		t.Fatal("expected unknownaddr entity to exist")
	}
	if ent.Category != domain.CategoryUnknown {
		t.Errorf("expected category unknown, got %q", ent.Category)
	}
	if len(ent.Tags) != 0 {
		t.Errorf("expected no tags, got %v", ent.Tags)
	}
}

func TestBuildEdgeCapExceeded(t *testing.T) {
	now := time.Now()
	var records []*domain.TxRecord
	for i := 0; i < 10; i++ {
		records = append(records, &domain.TxRecord{Hash: "tx", Timestamp: now, Amount: 1, From: "centre", To: "peer", Type: domain.TxSent})
	}
	txSource := &fakeTxSource{byAddress: map[string][]*domain.TxRecord{"centre": records}}
	classifier := &fakeClassifier{}

	b := NewBuilder(classifier, txSource, 500, 5)
	_, err := b.Build(context.Background(), "tenant", "eth", "centre", 3, 180)
	if err == nil {
		t.Fatal("expected ResourceLimitExceeded error")
	}
	aerr, ok := err.(*domain.AnalysisError)
	if !ok || aerr.Kind != domain.ErrResourceLimitExceeded {
		t.Errorf("expected ResourceLimitExceeded, got %v", err)
	}
}
