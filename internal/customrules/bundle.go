package customrules

import "github.com/riskgraph/addrrisk/internal/domain"

// BundleEngine aggregates custom-rule results into weighted rule
// bundles, the per-tenant equivalent of a typology threshold.
type BundleEngine struct {
	bundles map[string]*domain.RuleBundle
}

// NewBundleEngine creates an empty bundle engine.
func NewBundleEngine() *BundleEngine {
	return &BundleEngine{bundles: make(map[string]*domain.RuleBundle)}
}

// LoadBundles replaces the engine's loaded bundles with the enabled
// subset of bundles.
func (e *BundleEngine) LoadBundles(bundles []*domain.RuleBundle) {
	e.bundles = make(map[string]*domain.RuleBundle, len(bundles))
	for _, b := range bundles {
		if b.Enabled {
			e.bundles[b.ID] = b
		}
	}
}

// EvaluateBundles computes one RuleBundleResult per loaded bundle from
// a set of custom-rule results, in the style of the teacher's typology
// weighted-sum-against-threshold evaluation.
func (e *BundleEngine) EvaluateBundles(results []domain.CustomRuleResult) []domain.RuleBundleResult {
	if len(e.bundles) == 0 {
		return nil
	}

	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[r.RuleID] = r.Score
	}

	out := make([]domain.RuleBundleResult, 0, len(e.bundles))
	for _, bundle := range e.bundles {
		out = append(out, e.evaluateBundle(bundle, scores))
	}
	return out
}

func (e *BundleEngine) evaluateBundle(bundle *domain.RuleBundle, scores map[string]float64) domain.RuleBundleResult {
	result := domain.RuleBundleResult{
		BundleID:      bundle.ID,
		BundleName:    bundle.Name,
		Contributions: make([]domain.RuleBundleContribution, 0, len(bundle.Rules)),
	}

	var total float64
	for _, rw := range bundle.Rules {
		score, ok := scores[rw.RuleID]
		if !ok {
			continue
		}
		contribution := score * rw.Weight
		total += contribution
		result.Contributions = append(result.Contributions, domain.RuleBundleContribution{
			RuleID: rw.RuleID, Score: score, Weight: rw.Weight,
		})
	}

	result.Score = total
	result.Triggered = total >= bundle.AlertThreshold
	return result
}

// BundleCount returns the number of loaded bundles.
func (e *BundleEngine) BundleCount() int {
	return len(e.bundles)
}
