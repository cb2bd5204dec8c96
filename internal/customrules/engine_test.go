package customrules

import (
	"context"
	"testing"

	"github.com/riskgraph/addrrisk/internal/domain"
)

func flagBand(threshold float64) []domain.RuleBand {
	return []domain.RuleBand{
		{LowerLimit: ptr(threshold), Outcome: domain.RuleOutcomeFlag, Reason: "over threshold"},
		{UpperLimit: ptr(threshold), Outcome: domain.RuleOutcomePass, Reason: "under threshold"},
	}
}

func ptr(v float64) *float64 { return &v }

func TestEngineLoadAndEvaluateRule(t *testing.T) {
	engine, err := NewEngine(4)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	rule := &domain.CustomRule{
		ID: "r1", Name: "high direct sanctions", Enabled: true,
		Expression: "direct_sanctioned_pct > 1.0",
		Bands:      flagBand(0.5),
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("LoadRule: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), &domain.ExposureInput{DirectSanctionedVolumePct: 5})
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score != 1.0 {
		t.Errorf("expected score 1.0 for a true boolean expression, got %f", results[0].Score)
	}
	if results[0].Outcome != domain.RuleOutcomeFlag {
		t.Errorf("expected flag outcome, got %s", results[0].Outcome)
	}
}

func TestEngineInvalidExpressionFailsValidation(t *testing.T) {
	engine, _ := NewEngine(4)
	err := engine.ValidateRule(&domain.CustomRule{ID: "bad", Expression: "not valid cel (("})
	if err == nil {
		t.Fatal("expected validation error for malformed expression")
	}
}

func TestEngineNonBoolOutputTypeRejected(t *testing.T) {
	engine, _ := NewEngine(4)
	err := engine.ValidateRule(&domain.CustomRule{ID: "str", Expression: `"not numeric"`})
	if err == nil {
		t.Fatal("expected rejection of a string-valued expression")
	}
}

func TestEngineIllicitCategoryMapAccessible(t *testing.T) {
	engine, _ := NewEngine(4)
	rule := &domain.CustomRule{
		ID: "mixer-heavy", Enabled: true,
		Expression: `illicit_category_pct["mixer"] > 25.0`,
		Bands:      flagBand(0.5),
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("LoadRule: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), &domain.ExposureInput{
		IllicitCategoryVolumePct: map[string]float64{"mixer": 40},
	})
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if results[0].Outcome != domain.RuleOutcomeFlag {
		t.Errorf("expected flag outcome for mixer volume over threshold, got %s", results[0].Outcome)
	}
}

func TestEngineNoRulesLoadedReturnsNil(t *testing.T) {
	engine, _ := NewEngine(4)
	results, err := engine.EvaluateAll(context.Background(), &domain.ExposureInput{})
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results with no loaded rules, got %v", results)
	}
}

func TestEngineEvaluationErrorCapturedNotPanicked(t *testing.T) {
	engine, _ := NewEngine(4)
	// Division by zero in CEL int division returns an evaluation error.
	rule := &domain.CustomRule{ID: "div0", Enabled: true, Expression: "1 / out_degree > 0"}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("LoadRule: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), &domain.ExposureInput{OutDegree: 0})
	if err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}
	if results[0].Outcome != domain.RuleOutcomeError {
		t.Errorf("expected error outcome on division by zero, got %s", results[0].Outcome)
	}
}

func TestBundleEngineAggregatesWeightedScores(t *testing.T) {
	bundleEngine := NewBundleEngine()
	bundleEngine.LoadBundles([]*domain.RuleBundle{
		{
			ID: "b1", Name: "combined exposure", Enabled: true,
			Rules: []domain.RuleBundleWeight{
				{RuleID: "r1", Weight: 0.5},
				{RuleID: "r2", Weight: 0.5},
			},
			AlertThreshold: 0.6,
		},
	})

	results := bundleEngine.EvaluateBundles([]domain.CustomRuleResult{
		{RuleID: "r1", Score: 1.0},
		{RuleID: "r2", Score: 1.0},
	})
	if len(results) != 1 {
		t.Fatalf("expected 1 bundle result, got %d", len(results))
	}
	if results[0].Score != 1.0 {
		t.Errorf("expected aggregate score 1.0, got %f", results[0].Score)
	}
	if !results[0].Triggered {
		t.Error("expected bundle to trigger above its threshold")
	}
}

func TestBundleEngineSkipsMissingRuleResults(t *testing.T) {
	bundleEngine := NewBundleEngine()
	bundleEngine.LoadBundles([]*domain.RuleBundle{
		{
			ID: "b1", Enabled: true,
			Rules:          []domain.RuleBundleWeight{{RuleID: "missing", Weight: 1.0}},
			AlertThreshold: 0.1,
		},
	})
	results := bundleEngine.EvaluateBundles(nil)
	if results[0].Triggered {
		t.Error("expected bundle with no matching rule results to not trigger")
	}
}
