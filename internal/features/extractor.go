// Package features projects an ego graph into the fixed-length
// numeric vector consumed by the ML Prediction Function (§4.4).
package features

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/riskgraph/addrrisk/internal/domain"
)

var entityTypes = []domain.EntityType{
	domain.EntityTypeExternallyOwned, domain.EntityTypeContract, domain.EntityTypeCEX,
	domain.EntityTypeDEX, domain.EntityTypeMixer, domain.EntityTypeBridge,
	domain.EntityTypeScam, domain.EntityTypeDarknet, domain.EntityTypeSanctioned,
	domain.EntityTypeUnknown,
}

var entityCategories = []domain.EntityCategory{
	domain.CategoryClean, domain.CategoryMixer, domain.CategoryBridge, domain.CategoryHighRiskCEX,
	domain.CategoryCompliantCEX, domain.CategoryDarknet, domain.CategoryScam, domain.CategorySanctioned,
	domain.CategoryStolen, domain.CategoryRansomware, domain.CategoryTerroristFinancing, domain.CategoryUnknown,
}

var tagIndicators = []string{domain.TagMixer, domain.TagSanctioned, domain.TagScam, domain.TagDarknet}

// Vector is the result of extraction: a name list parallel to the
// value list. Both are part of the stable external contract (§4.4) —
// new features append, they never reorder or remove existing ones.
type Vector struct {
	Names  []string
	Values []float64
}

type group struct {
	names  []string
	values []float64
}

// Extract computes the feature vector for g's centre entity. Per §5,
// each group is computed by an independent goroutine over the
// (immutable) graph and fanned in, in the fixed group order: topology,
// behavioural, temporal, categorical, cross-chain.
func Extract(ctx context.Context, g *domain.EgoGraph) (*Vector, error) {
	select {
	case <-ctx.Done():
		return nil, domain.NewAnalysisError(domain.ErrCancelled, "feature extraction cancelled", ctx.Err())
	default:
	}

	builders := []func(*domain.EgoGraph) group{
		topologyGroup,
		behaviouralGroup,
		temporalGroup,
		categoricalGroup,
		crossChainGroup,
	}

	groups := make([]group, len(builders))
	var wg sync.WaitGroup
	for i, build := range builders {
		wg.Add(1)
		go func(i int, build func(*domain.EgoGraph) group) {
			defer wg.Done()
			groups[i] = build(g)
		}(i, build)
	}
	wg.Wait()

	v := &Vector{}
	for _, grp := range groups {
		v.Names = append(v.Names, grp.names...)
		v.Values = append(v.Values, grp.values...)
	}
	return v, nil
}

func topologyGroup(g *domain.EgoGraph) group {
	c := g.Centre()
	var inOutRatio float64
	if c.InDegree+c.OutDegree > 0 {
		inOutRatio = float64(c.InDegree) / float64(c.InDegree+c.OutDegree)
	}

	var mixers, highRiskCEX, sanctioned int
	for _, e := range g.Entities {
		switch e.Category {
		case domain.CategoryMixer:
			mixers++
		case domain.CategoryHighRiskCEX:
			highRiskCEX++
		case domain.CategorySanctioned:
			sanctioned++
		}
	}

	return group{
		names: []string{
			"topology_in_degree", "topology_out_degree", "topology_in_out_ratio",
			"topology_page_rank", "topology_clustering_coefficient",
			"topology_entity_count", "topology_transaction_count",
			"topology_mixer_count", "topology_high_risk_cex_count", "topology_sanctioned_count",
		},
		values: []float64{
			float64(c.InDegree), float64(c.OutDegree), inOutRatio,
			c.PageRank, c.ClusteringCoefficient,
			float64(len(g.Entities)), float64(len(g.Transactions)),
			float64(mixers), float64(highRiskCEX), float64(sanctioned),
		},
	}
}

func behaviouralGroup(g *domain.EgoGraph) group {
	incident := g.IncidentTransactions(g.CentreID)

	var totalVolume float64
	amounts := make([]float64, 0, len(incident))
	for _, tx := range incident {
		totalVolume += tx.Amount
		amounts = append(amounts, tx.Amount)
	}

	var meanAmount float64
	if len(amounts) > 0 {
		meanAmount = totalVolume / float64(len(amounts))
	}

	c := g.Centre()
	var fanRatio float64
	if c.OutDegree > 0 {
		fanRatio = float64(c.InDegree) / float64(c.OutDegree)
	}

	return group{
		names: []string{
			"behavioural_total_volume", "behavioural_log_volume",
			"behavioural_edge_count", "behavioural_log_edge_count",
			"behavioural_mean_amount", "behavioural_gini_coefficient",
			"behavioural_fan_in_out_ratio",
		},
		values: []float64{
			totalVolume, math.Log1p(totalVolume),
			float64(len(incident)), math.Log1p(float64(len(incident))),
			meanAmount, giniCoefficient(amounts),
			fanRatio,
		},
	}
}

func temporalGroup(g *domain.EgoGraph) group {
	incident := g.IncidentTransactions(g.CentreID)
	if len(incident) == 0 {
		return group{
			names: []string{
				"temporal_velocity", "temporal_acceleration",
				"temporal_hours_since_first", "temporal_hours_since_last",
				"temporal_distinct_hours_of_day", "temporal_weekend_ratio",
			},
			values: make([]float64, 6),
		}
	}

	sorted := make([]*domain.Transaction, len(incident))
	copy(sorted, incident)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	first := sorted[0].Timestamp
	last := sorted[len(sorted)-1].Timestamp
	now := g.AsOf
	if now.IsZero() {
		now = last
	}

	windowDays := last.Sub(first).Hours() / 24
	if windowDays <= 0 {
		windowDays = 1
	}
	velocity := float64(len(sorted)) / windowDays

	mid := len(sorted) / 2
	firstHalf := sorted[:mid]
	secondHalf := sorted[mid:]
	firstHalfVelocity := halfVelocity(firstHalf)
	secondHalfVelocity := halfVelocity(secondHalf)

	hoursOfDay := map[int]bool{}
	var weekendCount int
	for _, tx := range sorted {
		hoursOfDay[tx.Timestamp.Hour()] = true
		if wd := tx.Timestamp.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekendCount++
		}
	}

	return group{
		names: []string{
			"temporal_velocity", "temporal_acceleration",
			"temporal_hours_since_first", "temporal_hours_since_last",
			"temporal_distinct_hours_of_day", "temporal_weekend_ratio",
		},
		values: []float64{
			velocity, secondHalfVelocity - firstHalfVelocity,
			now.Sub(first).Hours(), now.Sub(last).Hours(),
			float64(len(hoursOfDay)), float64(weekendCount) / float64(len(sorted)),
		},
	}
}

func halfVelocity(txs []*domain.Transaction) float64 {
	if len(txs) == 0 {
		return 0
	}
	span := txs[len(txs)-1].Timestamp.Sub(txs[0].Timestamp).Hours() / 24
	if span <= 0 {
		span = 1
	}
	return float64(len(txs)) / span
}

func categoricalGroup(g *domain.EgoGraph) group {
	c := g.Centre()
	names := make([]string, 0, len(entityTypes)+len(entityCategories)+len(tagIndicators))
	values := make([]float64, 0, cap(names))

	for _, t := range entityTypes {
		names = append(names, "type_"+string(t))
		values = append(values, indicator(c.Type == t))
	}
	for _, cat := range entityCategories {
		names = append(names, "category_"+string(cat))
		values = append(values, indicator(c.Category == cat))
	}
	for _, tag := range tagIndicators {
		names = append(names, "tag_"+tag)
		values = append(values, indicator(c.HasTag(tag)))
	}

	return group{names: names, values: values}
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func crossChainGroup(g *domain.EgoGraph) group {
	// Address clustering across chains is out of scope; the centre's
	// cluster is always itself, giving a constant count of 1 chain.
	numChains := 1.0

	var crossBridgeCount int
	var crossBridgeVolume, totalOutgoing float64
	for _, tx := range g.Forward[g.CentreID] {
		totalOutgoing += tx.Amount
		if tx.IsCrossBridge {
			crossBridgeCount++
			crossBridgeVolume += tx.Amount
		}
	}

	var crossBridgeRatio float64
	if totalOutgoing > 0 {
		crossBridgeRatio = crossBridgeVolume / totalOutgoing
	}

	return group{
		names:  []string{"cross_chain_count", "cross_chain_bridge_edge_count", "cross_chain_bridge_volume_ratio"},
		values: []float64{numChains, float64(crossBridgeCount), crossBridgeRatio},
	}
}

// giniCoefficient computes the Gini coefficient of a set of
// non-negative amounts, 0 for fewer than two values.
func giniCoefficient(amounts []float64) float64 {
	n := len(amounts)
	if n < 2 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, amounts)
	sort.Float64s(sorted)

	var sum, weightedSum float64
	for i, a := range sorted {
		sum += a
		weightedSum += float64(i+1) * a
	}
	if sum == 0 {
		return 0
	}
	return (2*weightedSum)/(float64(n)*sum) - float64(n+1)/float64(n)
}
