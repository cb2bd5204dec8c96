// Package exposure computes a per-address ExposureInput from an ego
// graph. The Rule Scorer's contract (§4.2) treats the exposure record
// as an externally supplied analysis input — entity classification
// and sanctions-list ingestion are themselves non-goals of the hard
// core (§1) — so this is one of the "thin adapters around the core"
// the spec anticipates, not part of the scored algorithm itself.
package exposure

import (
	"container/list"

	"github.com/riskgraph/addrrisk/internal/domain"
)

// FromEgoGraph aggregates an ego graph's categorised volume into the
// ExposureInput shape the Rule Scorer and custom rule engine consume.
// Sanction exposure is bucketed by hop distance from the centre: the
// centre's direct counterparties (1 hop) contribute to "direct",
// counterparties 2 hops out contribute to "1-hop indirect", and those
// 3-5 hops out contribute to "2-to-4-hop indirect".
func FromEgoGraph(g *domain.EgoGraph) *domain.ExposureInput {
	total := g.TotalVolume()

	dist := hopDistances(g)

	var direct, indirect1, indirect24 float64
	categoryVolume := make(map[string]float64)

	for _, tx := range g.Transactions {
		from := g.Entities[tx.FromID]
		to := g.Entities[tx.ToID]

		for _, ent := range []*domain.Entity{from, to} {
			if ent == nil || ent.ID == g.CentreID {
				continue
			}
			switch ent.Category {
			case domain.CategorySanctioned:
				switch d := dist[ent.ID]; {
				case d == 1:
					direct += tx.Amount
				case d == 2:
					indirect1 += tx.Amount
				case d >= 3 && d <= 5:
					indirect24 += tx.Amount
				}
			case domain.CategoryMixer:
				categoryVolume[domain.CategoryKeyMixer] += tx.Amount
			case domain.CategoryStolen:
				categoryVolume[domain.CategoryKeyStolen] += tx.Amount
			case domain.CategoryDarknet:
				categoryVolume[domain.CategoryKeyDarknet] += tx.Amount
			case domain.CategoryScam:
				categoryVolume[domain.CategoryKeyScam] += tx.Amount
			case domain.CategoryRansomware:
				categoryVolume[domain.CategoryKeyRansomware] += tx.Amount
			case domain.CategoryTerroristFinancing:
				categoryVolume[domain.CategoryKeyTerroristFinancing] += tx.Amount
			}
		}
	}

	pctOf := func(v float64) float64 {
		if total <= 0 {
			return 0
		}
		return 100 * v / total
	}

	illicitPct := make(map[string]float64, len(categoryVolume))
	for k, v := range categoryVolume {
		illicitPct[k] = pctOf(v)
	}

	centre := g.Entities[g.CentreID]
	var inDeg, outDeg int
	if centre != nil {
		inDeg, outDeg = centre.InDegree, centre.OutDegree
	}

	return &domain.ExposureInput{
		Address:                            g.CentreID,
		DirectSanctionedVolumePct:          pctOf(direct),
		Indirect1HopSanctionedVolumePct:    pctOf(indirect1),
		Indirect2To4HopSanctionedVolumePct: pctOf(indirect24),
		IllicitCategoryVolumePct:           illicitPct,
		OutDegree:                          outDeg,
		InDegree:                           inDeg,
	}
}

// hopDistances computes the minimum hop distance from the centre to
// every reachable entity, treating the ego graph as undirected (a
// transaction in either direction connects its endpoints).
func hopDistances(g *domain.EgoGraph) map[string]int {
	dist := map[string]int{g.CentreID: 0}
	queue := list.New()
	queue.PushBack(g.CentreID)

	for queue.Len() > 0 {
		front := queue.Front()
		queue.Remove(front)
		id := front.Value.(string)
		d := dist[id]

		for _, tx := range g.Forward[id] {
			if _, seen := dist[tx.ToID]; !seen {
				dist[tx.ToID] = d + 1
				queue.PushBack(tx.ToID)
			}
		}
		for _, tx := range g.Reverse[id] {
			if _, seen := dist[tx.FromID]; !seen {
				dist[tx.FromID] = d + 1
				queue.PushBack(tx.FromID)
			}
		}
	}

	return dist
}
