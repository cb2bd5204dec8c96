package domain

import "context"

// ClassificationResult is the Entity Classifier's answer for one
// address.
type ClassificationResult struct {
	Type     EntityType
	Category EntityCategory
	Tags     []string
}

// EntityClassifier maps an address to an entity type, category, and
// tag set. May fail with an AnalysisError of kind ClassifierUnavailable;
// the core treats that as category=unknown, tags=empty.
type EntityClassifier interface {
	Classify(ctx context.Context, tenantID, address, chain string) (*ClassificationResult, error)
}

// TransactionSource supplies a paginated, newest-first list of
// historical transactions for an address.
type TransactionSource interface {
	Fetch(ctx context.Context, tenantID, address string, maxN int) ([]*TxRecord, error)
}
