package exposure

import (
	"testing"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
)

func buildGraph() *domain.EgoGraph {
	g := &domain.EgoGraph{
		CentreID: "centre",
		Entities: map[string]*domain.Entity{
			"centre":     {ID: "centre", Category: domain.CategoryClean, InDegree: 1, OutDegree: 1},
			"sanctioned": {ID: "sanctioned", Category: domain.CategorySanctioned},
			"mixer":      {ID: "mixer", Category: domain.CategoryMixer},
			"far":        {ID: "far", Category: domain.CategorySanctioned},
		},
		Forward: make(map[string][]*domain.Transaction),
		Reverse: make(map[string][]*domain.Transaction),
	}

	direct := &domain.Transaction{Hash: "0x1", FromID: "centre", ToID: "sanctioned", Amount: 50, Timestamp: time.Now()}
	hop := &domain.Transaction{Hash: "0x2", FromID: "centre", ToID: "mixer", Amount: 50, Timestamp: time.Now()}
	indirect := &domain.Transaction{Hash: "0x3", FromID: "mixer", ToID: "far", Amount: 50, Timestamp: time.Now()}

	g.Transactions = []*domain.Transaction{direct, hop, indirect}
	g.Forward["centre"] = []*domain.Transaction{direct, hop}
	g.Reverse["sanctioned"] = []*domain.Transaction{direct}
	g.Reverse["mixer"] = []*domain.Transaction{hop}
	g.Forward["mixer"] = []*domain.Transaction{indirect}
	g.Reverse["far"] = []*domain.Transaction{indirect}

	return g
}

func TestFromEgoGraphBucketsByHopDistance(t *testing.T) {
	g := buildGraph()
	input := FromEgoGraph(g)

	if input.DirectSanctionedVolumePct <= 0 {
		t.Errorf("expected direct sanctioned volume, got %.2f", input.DirectSanctionedVolumePct)
	}
	if input.Indirect1HopSanctionedVolumePct <= 0 {
		t.Errorf("expected 1-hop indirect sanctioned volume for 'far', got %.2f", input.Indirect1HopSanctionedVolumePct)
	}
	if input.IllicitCategoryVolumePct[domain.CategoryKeyMixer] <= 0 {
		t.Errorf("expected mixer category volume, got %.2f", input.IllicitCategoryVolumePct[domain.CategoryKeyMixer])
	}
}

func TestFromEgoGraphZeroVolumeGraph(t *testing.T) {
	g := &domain.EgoGraph{
		CentreID: "centre",
		Entities: map[string]*domain.Entity{"centre": {ID: "centre"}},
		Forward:  map[string][]*domain.Transaction{},
		Reverse:  map[string][]*domain.Transaction{},
	}
	input := FromEgoGraph(g)
	if input.DirectSanctionedVolumePct != 0 {
		t.Errorf("expected 0 for a graph with no volume, got %.2f", input.DirectSanctionedVolumePct)
	}
}
