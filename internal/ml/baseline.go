// Package ml wires the external ML Prediction Function contract
// (§6). Model training and inference runtimes are out of scope; this
// package ships one concrete, explicitly non-ML implementation so the
// pipeline is runnable end-to-end without a model server attached.
package ml

import (
	"context"
	"math"
	"sort"

	"github.com/riskgraph/addrrisk/internal/domain"
)

// baselineWeights are hand-picked coefficients against a handful of
// named features from internal/features, not a trained model. They
// exist to give the hybrid combiner a plausible, non-zero ML signal
// out of the box.
var baselineWeights = map[string]float64{
	"topology_mixer_count":            0.6,
	"topology_high_risk_cex_count":    0.5,
	"topology_sanctioned_count":       1.2,
	"behavioural_gini_coefficient":    0.4,
	"cross_chain_bridge_volume_ratio": 0.5,
	"temporal_acceleration":           0.05,
}

const baselineBias = -1.5

// NewBaseline returns a domain.PredictFunc implementing a fixed
// logistic scoring rule over a small set of named features. ModelTag
// is "baseline-v1" so callers can distinguish it from a real model at
// the breakdown level.
func NewBaseline() domain.PredictFunc {
	return func(ctx context.Context, featureValues []float64, names []string) (*domain.Prediction, error) {
		select {
		case <-ctx.Done():
			return nil, domain.NewAnalysisError(domain.ErrCancelled, "prediction cancelled", ctx.Err())
		default:
		}
		if len(featureValues) != len(names) {
			return nil, domain.NewAnalysisError(domain.ErrInvalidInput, "feature vector and name list length mismatch", nil)
		}

		index := make(map[string]int, len(names))
		for i, n := range names {
			index[n] = i
		}

		var logit float64 = baselineBias
		contributions := make([]domain.FeatureImportance, 0, len(baselineWeights))
		for name, weight := range baselineWeights {
			i, ok := index[name]
			if !ok {
				continue
			}
			contribution := weight * featureValues[i]
			logit += contribution
			contributions = append(contributions, domain.FeatureImportance{Name: name, Importance: math.Abs(contribution)})
		}

		probability := 1 / (1 + math.Exp(-logit))

		sort.Slice(contributions, func(i, j int) bool { return contributions[i].Importance > contributions[j].Importance })
		top := normalizeImportances(contributions, 3)

		return &domain.Prediction{
			Probability: probability,
			Confidence:  baselineConfidence(probability),
			ModelTag:    "baseline-v1",
			TopFeatures: top,
		}, nil
	}
}

// baselineConfidence reports how far the probability sits from the
// decision boundary, as a crude confidence proxy.
func baselineConfidence(probability float64) float64 {
	return math.Abs(probability-0.5) * 2
}

// normalizeImportances takes the top n contributions and rescales
// them to sum to 1, so callers can treat Importance as a share.
func normalizeImportances(contributions []domain.FeatureImportance, n int) []domain.FeatureImportance {
	if len(contributions) > n {
		contributions = contributions[:n]
	}
	var total float64
	for _, c := range contributions {
		total += c.Importance
	}
	if total == 0 {
		return contributions
	}
	out := make([]domain.FeatureImportance, len(contributions))
	for i, c := range contributions {
		out[i] = domain.FeatureImportance{Name: c.Name, Importance: c.Importance / total}
	}
	return out
}
