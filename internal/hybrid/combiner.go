// Package hybrid fuses the rule score, pattern matches, and ML
// prediction into the final auditable Risk Score (§4.5).
package hybrid

import (
	"fmt"
	"math"
	"strings"

	"github.com/riskgraph/addrrisk/internal/domain"
)

// Combiner holds the weighted-sum configuration for the hybrid score.
type Combiner struct {
	RuleWeight    float64 // alpha
	PatternWeight float64 // beta
	MLWeight      float64 // gamma
}

// NewCombiner builds a Combiner from pipeline weights. Weights need
// only satisfy alpha+beta+gamma > 0 — the formula is a weighted sum,
// not a convex combination.
func NewCombiner(ruleWeight, patternWeight, mlWeight float64) *Combiner {
	return &Combiner{RuleWeight: ruleWeight, PatternWeight: patternWeight, MLWeight: mlWeight}
}

// CombineInput gathers the three independent signals for one address.
type CombineInput struct {
	Rule       *domain.RiskScore
	Matches    []*domain.MatchResult
	Prediction *domain.Prediction
}

// Combine assembles the final Risk Score exactly per §4.5: pattern and
// ML sub-scores, the weighted final value, the ordered breakdown, and
// the tag union.
func (c *Combiner) Combine(input *CombineInput) *domain.RiskScore {
	patternScore, matchedComponents, patternTags := c.scorePatterns(input.Matches)
	mlScore := int(math.Round(100 * input.Prediction.Probability))

	weighted := c.RuleWeight*float64(input.Rule.Total) + c.PatternWeight*patternScore + c.MLWeight*float64(mlScore)
	final := int(math.Round(clampFloat(weighted, 0, 100)))

	breakdown := make([]domain.BreakdownComponent, 0, len(input.Rule.Breakdown)+len(matchedComponents)+2+len(input.Prediction.TopFeatures))
	breakdown = append(breakdown, input.Rule.Breakdown...)
	breakdown = append(breakdown, matchedComponents...)
	breakdown = append(breakdown, domain.BreakdownComponent{
		Dimension: "ml_prediction", Value: mlScore,
		Explanation: fmt.Sprintf("ML prediction %s: probability %.2f, confidence %.2f", input.Prediction.ModelTag, input.Prediction.Probability, input.Prediction.Confidence),
	})
	breakdown = append(breakdown, domain.BreakdownComponent{
		Dimension: "hybrid_final", Value: final,
		Explanation: fmt.Sprintf("hybrid final = round(%.2f·rule + %.2f·pattern + %.2f·ml)", c.RuleWeight, c.PatternWeight, c.MLWeight),
	})
	for _, f := range input.Prediction.TopFeatures {
		breakdown = append(breakdown, domain.BreakdownComponent{
			Dimension: "ml_feature_" + f.Name, Value: int(math.Round(100 * f.Importance)),
			Explanation: fmt.Sprintf("feature %s contributed %.1f%% of the prediction importance", f.Name, 100*f.Importance),
		})
	}

	tags := make([]domain.Tag, 0, len(input.Rule.Tags)+len(patternTags))
	tags = append(tags, input.Rule.Tags...)
	tags = append(tags, patternTags...)

	return &domain.RiskScore{
		Total:                   final,
		Level:                   domain.LevelForTotal(final),
		Breakdown:               breakdown,
		IllicitVolumePercentage: input.Rule.IllicitVolumePercentage,
		CleanVolumePercentage:   input.Rule.CleanVolumePercentage,
		Tags:                    tags,
	}
}

// scorePatterns computes pattern_score and the per-match breakdown
// components and tags, in match order.
func (c *Combiner) scorePatterns(matches []*domain.MatchResult) (float64, []domain.BreakdownComponent, []domain.Tag) {
	var total float64
	var components []domain.BreakdownComponent
	var tags []domain.Tag

	for _, m := range matches {
		if !m.Matched {
			continue
		}
		contribution := float64(m.Weight) * math.Min(1.0, m.VolumeShare/50.0)
		total += contribution

		components = append(components, domain.BreakdownComponent{
			Dimension:   "pattern_" + strings.ToLower(m.PatternID),
			Value:       int(math.Round(contribution)),
			Explanation: m.Explanation,
		})
		tags = append(tags, domain.Tag{
			Code:        "PATTERN_" + m.PatternID,
			Severity:    m.Severity,
			Description: m.Explanation,
		})
	}

	return math.Min(100, total), components, tags
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
