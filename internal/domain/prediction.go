package domain

import "context"

// FeatureImportance names one feature's contribution to a prediction.
type FeatureImportance struct {
	Name       string
	Importance float64
}

// Prediction is the output contract of the external ML Prediction
// Function (§6). The core never trains or loads a model; it only
// consumes this struct.
type Prediction struct {
	Probability float64 // [0, 1]
	Confidence  float64 // [0, 1]
	ModelTag    string
	TopFeatures []FeatureImportance
}

// PredictFunc is the injected prediction contract: predict(feature
// vector, parallel feature names) -> Prediction.
type PredictFunc func(ctx context.Context, features []float64, names []string) (*Prediction, error)
