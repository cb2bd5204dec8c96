package graph

import "sort"
import "github.com/riskgraph/addrrisk/internal/domain"

// Open question #1 (spec.md §9): page-rank and clustering coefficient
// are computed here via standard iterative algorithms rather than left
// at their documented defaults, falling back to the defaults only when
// the graph is too small to compute either meaningfully.
const (
	pageRankDamping    = 0.85
	pageRankIterations = 20
	pageRankEpsilon    = 1e-6
)

// ComputeMetrics sets PageRank and ClusteringCoefficient on every
// entity in g.
func ComputeMetrics(g *domain.EgoGraph) {
	computePageRank(g)
	computeClustering(g)
}

func computePageRank(g *domain.EgoGraph) {
	n := len(g.Entities)
	if n == 0 {
		return
	}
	if n == 1 {
		for _, e := range g.Entities {
			e.PageRank = 1.0
		}
		return
	}

	ids := make([]string, 0, n)
	for id := range g.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rank := make(map[string]float64, n)
	for _, id := range ids {
		rank[id] = 1.0 / float64(n)
	}

	base := (1 - pageRankDamping) / float64(n)

	for iter := 0; iter < pageRankIterations; iter++ {
		next := make(map[string]float64, n)
		for _, id := range ids {
			next[id] = base
		}

		for _, id := range ids {
			out := g.Forward[id]
			if len(out) == 0 {
				share := pageRankDamping * rank[id] / float64(n)
				for _, id2 := range ids {
					next[id2] += share
				}
				continue
			}
			targets := uniqueTargets(out)
			share := pageRankDamping * rank[id] / float64(len(targets))
			for _, target := range targets {
				if _, ok := next[target]; ok {
					next[target] += share
				}
			}
		}

		var delta float64
		for _, id := range ids {
			d := next[id] - rank[id]
			if d < 0 {
				d = -d
			}
			delta += d
		}
		rank = next
		if delta < pageRankEpsilon {
			break
		}
	}

	for _, id := range ids {
		g.Entities[id].PageRank = rank[id]
	}
}

func uniqueTargets(txs []*domain.Transaction) []string {
	seen := make(map[string]bool, len(txs))
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		if seen[tx.ToID] {
			continue
		}
		seen[tx.ToID] = true
		out = append(out, tx.ToID)
	}
	return out
}

func computeClustering(g *domain.EgoGraph) {
	neighbors := make(map[string]map[string]bool, len(g.Entities))
	for id := range g.Entities {
		neighbors[id] = map[string]bool{}
	}
	for _, tx := range g.Transactions {
		if _, ok := neighbors[tx.FromID]; ok {
			neighbors[tx.FromID][tx.ToID] = true
		}
		if _, ok := neighbors[tx.ToID]; ok {
			neighbors[tx.ToID][tx.FromID] = true
		}
	}

	for id, ent := range g.Entities {
		ns := neighbors[id]
		k := len(ns)
		if k < 2 {
			ent.ClusteringCoefficient = 0.0
			continue
		}
		nlist := make([]string, 0, k)
		for nb := range ns {
			nlist = append(nlist, nb)
		}
		var links int
		for i := 0; i < len(nlist); i++ {
			for j := i + 1; j < len(nlist); j++ {
				if neighbors[nlist[i]][nlist[j]] {
					links++
				}
			}
		}
		ent.ClusteringCoefficient = float64(2*links) / float64(k*(k-1))
	}
}
