// Package graph builds and annotates the bounded ego graph that the
// rest of the pipeline reasons over.
package graph

import (
	"container/list"
	"context"
	"fmt"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
)

// Builder performs the bounded breadth-first expansion of §4.1.
type Builder struct {
	classifier   domain.EntityClassifier
	txSource     domain.TransactionSource
	maxTxPerNode int
	edgeCap      int
}

// NewBuilder constructs a Builder. maxTxPerNode bounds how many
// transactions are requested per expansion step; edgeCap is the hard
// ceiling on materialised edges (§5, default 100000).
func NewBuilder(classifier domain.EntityClassifier, txSource domain.TransactionSource, maxTxPerNode, edgeCap int) *Builder {
	if maxTxPerNode <= 0 {
		maxTxPerNode = 500
	}
	if edgeCap <= 0 {
		edgeCap = 100000
	}
	return &Builder{classifier: classifier, txSource: txSource, maxTxPerNode: maxTxPerNode, edgeCap: edgeCap}
}

type frontierItem struct {
	id    string
	depth int
}

// Build produces an EgoGraph centred on address. maxDepth and
// timeWindowDays default to 3 and 180 when <= 0.
func (b *Builder) Build(ctx context.Context, tenantID, chain, address string, maxDepth, timeWindowDays int) (*domain.EgoGraph, error) {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if timeWindowDays <= 0 {
		timeWindowDays = 180
	}

	now := time.Now()
	cutoff := now.AddDate(0, 0, -timeWindowDays)

	g := &domain.EgoGraph{
		CentreID:       address,
		Entities:       make(map[string]*domain.Entity),
		Forward:        make(map[string][]*domain.Transaction),
		Reverse:        make(map[string][]*domain.Transaction),
		MaxDepth:       maxDepth,
		TimeWindowDays: timeWindowDays,
		AsOf:           now,
	}

	centreCls, err := b.classifier.Classify(ctx, tenantID, address, chain)
	if err != nil {
		centreCls = &domain.ClassificationResult{Type: domain.EntityTypeUnknown, Category: domain.CategoryUnknown}
	}
	centre := &domain.Entity{ID: address, Chain: chain, Type: centreCls.Type, Category: centreCls.Category, Tags: append([]string{}, centreCls.Tags...)}
	centre.EnsureCategoryTag()
	g.Entities[address] = centre

	visited := map[string]bool{address: true}
	frontier := list.New()
	frontier.PushBack(frontierItem{id: address, depth: 0})

	edgeCount := 0

	for frontier.Len() > 0 {
		select {
		case <-ctx.Done():
			return nil, domain.NewAnalysisError(domain.ErrCancelled, "ego graph construction cancelled", ctx.Err())
		default:
		}

		front := frontier.Front()
		frontier.Remove(front)
		item := front.Value.(frontierItem)

		if item.depth == maxDepth {
			continue
		}

		records, err := b.txSource.Fetch(ctx, tenantID, item.id, b.maxTxPerNode)
		if err != nil {
			if item.id == address && item.depth == 0 {
				return nil, domain.NewAnalysisError(domain.ErrTransactionSourceUnavailable, "failed to fetch target address history", err)
			}
			// Recovered locally: this node expands to no edges.
			continue
		}

		for _, rec := range records {
			if rec.Timestamp.Before(cutoff) {
				continue
			}

			var fromID, toID string
			var direction domain.TxDirection
			switch rec.Type {
			case domain.TxReceived:
				fromID, toID, direction = rec.From, item.id, domain.DirectionIncoming
			case domain.TxSent:
				fromID, toID, direction = item.id, rec.To, domain.DirectionOutgoing
			default:
				fromID, toID, direction = rec.From, rec.To, domain.DirectionInternal
			}
			if fromID == "" || toID == "" || fromID == toID {
				continue
			}

			counterpartyID := toID
			if toID == item.id {
				counterpartyID = fromID
			}

			if _, ok := g.Entities[counterpartyID]; !ok {
				cls, cerr := b.classifier.Classify(ctx, tenantID, counterpartyID, chain)
				if cerr != nil {
					cls = &domain.ClassificationResult{Type: domain.EntityTypeUnknown, Category: domain.CategoryUnknown}
				}
				ent := &domain.Entity{ID: counterpartyID, Chain: chain, Type: cls.Type, Category: cls.Category, Tags: append([]string{}, cls.Tags...)}
				ent.EnsureCategoryTag()
				g.Entities[counterpartyID] = ent
			}

			if edgeCount >= b.edgeCap {
				return nil, domain.NewAnalysisError(domain.ErrResourceLimitExceeded, fmt.Sprintf("edge cap of %d exceeded", b.edgeCap), nil)
			}

			fromEntity := g.Entities[fromID]
			toEntity := g.Entities[toID]

			tx := &domain.Transaction{
				Hash:          rec.Hash,
				FromID:        fromID,
				ToID:          toID,
				Amount:        rec.Amount,
				Timestamp:     rec.Timestamp,
				Direction:     direction,
				IsMixerHop:    entityCategoryIs(fromEntity, domain.CategoryMixer) || entityCategoryIs(toEntity, domain.CategoryMixer),
				IsCrossBridge: entityCategoryIs(fromEntity, domain.CategoryBridge) || entityCategoryIs(toEntity, domain.CategoryBridge),
			}
			g.Transactions = append(g.Transactions, tx)
			g.Forward[fromID] = append(g.Forward[fromID], tx)
			g.Reverse[toID] = append(g.Reverse[toID], tx)
			edgeCount++

			if !visited[counterpartyID] {
				visited[counterpartyID] = true
				frontier.PushBack(frontierItem{id: counterpartyID, depth: item.depth + 1})
			}
		}
	}

	deriveDegrees(g)
	return g, nil
}

func entityCategoryIs(e *domain.Entity, cat domain.EntityCategory) bool {
	return e != nil && e.Category == cat
}

func deriveDegrees(g *domain.EgoGraph) {
	for id, ent := range g.Entities {
		ent.OutDegree = len(g.Forward[id])
		ent.InDegree = len(g.Reverse[id])
	}
}
