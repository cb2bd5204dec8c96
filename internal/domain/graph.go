package domain

import "time"

// EgoGraph is the bounded neighbourhood materialised by the
// Ego-Graph Builder: a directed multigraph centred on one entity.
//
// Invariants: CentreID is a key of Entities; every transaction's
// endpoints are keys of Entities; Forward/Reverse are consistent with
// Transactions; the graph is the union of all simple paths of length
// <= MaxDepth from the centre, restricted to transactions inside the
// time window.
type EgoGraph struct {
	CentreID       string
	Entities       map[string]*Entity
	Transactions   []*Transaction
	Forward        map[string][]*Transaction // id -> outgoing transactions
	Reverse        map[string][]*Transaction // id -> incoming transactions
	MaxDepth       int
	TimeWindowDays int

	// AsOf is the instant the graph was built, stamped once by the
	// Ego-Graph Builder. Anything downstream that needs "now" (e.g.
	// feature extraction's recency features) reads this instead of
	// sampling the wall clock, so the same graph always yields the
	// same feature vector no matter when Extract happens to run.
	AsOf time.Time
}

// Centre returns the centre entity. Callers may assume it is always
// present once a graph has been successfully built.
func (g *EgoGraph) Centre() *Entity {
	return g.Entities[g.CentreID]
}

// TotalVolume returns the sum of amounts over every transaction in the
// ego graph, used as the denominator for volume-share calculations.
func (g *EgoGraph) TotalVolume() float64 {
	var total float64
	for _, tx := range g.Transactions {
		total += tx.Amount
	}
	return total
}

// IncidentTransactions returns every transaction touching id, in
// insertion order: outgoing first, then incoming.
func (g *EgoGraph) IncidentTransactions(id string) []*Transaction {
	out := make([]*Transaction, 0, len(g.Forward[id])+len(g.Reverse[id]))
	out = append(out, g.Forward[id]...)
	out = append(out, g.Reverse[id]...)
	return out
}
