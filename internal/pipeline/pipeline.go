// Package pipeline wires the Ego-Graph Builder, Rule Scorer, Pattern
// Engine, Feature Extractor, ML prediction, and Hybrid Combiner into
// the single Analyze() operation the API and async worker drive.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/riskgraph/addrrisk/internal/customrules"
	"github.com/riskgraph/addrrisk/internal/domain"
	"github.com/riskgraph/addrrisk/internal/exposure"
	"github.com/riskgraph/addrrisk/internal/features"
	"github.com/riskgraph/addrrisk/internal/graph"
	"github.com/riskgraph/addrrisk/internal/hybrid"
	"github.com/riskgraph/addrrisk/internal/patterns"
	"github.com/riskgraph/addrrisk/internal/rulescorer"
)

const engineVersion = "addrrisk-1"

// Pipeline runs one complete analysis: ego-graph construction, rule
// scoring, pattern matching, feature extraction/prediction, and hybrid
// combination, producing a single auditable domain.Analysis.
type Pipeline struct {
	builder        *graph.Builder
	patternEngine  *patterns.Engine
	patternLibrary []*domain.PatternAutomaton
	customRules    *customrules.Engine
	bundleEngine   *customrules.BundleEngine
	predict        domain.PredictFunc
	combiner       *hybrid.Combiner
	cfg            domain.PipelineConfig
}

// New builds a Pipeline from its collaborators and the pipeline
// section of domain.Config. customRules/bundleEngine may be nil when
// no tenant-authored custom rules are loaded.
func New(
	classifier domain.EntityClassifier,
	txSource domain.TransactionSource,
	customRules *customrules.Engine,
	bundleEngine *customrules.BundleEngine,
	predict domain.PredictFunc,
	cfg domain.PipelineConfig,
) (*Pipeline, error) {
	if predict == nil {
		return nil, fmt.Errorf("pipeline: predict function is required")
	}

	patternEngine, err := patterns.NewEngine()
	if err != nil {
		return nil, err
	}

	ruleWeight, patternWeight, mlWeight := cfg.RuleWeight, cfg.PatternWeight, cfg.MLWeight
	if ruleWeight == 0 && patternWeight == 0 && mlWeight == 0 {
		ruleWeight, patternWeight, mlWeight = 0.4, 0.3, 0.3
	}

	return &Pipeline{
		builder:        graph.NewBuilder(classifier, txSource, cfg.MaxTxPerNode, cfg.EdgeCap),
		patternEngine:  patternEngine,
		patternLibrary: patterns.StandardLibrary(),
		customRules:    customRules,
		bundleEngine:   bundleEngine,
		predict:        predict,
		combiner:       hybrid.NewCombiner(ruleWeight, patternWeight, mlWeight),
		cfg:            cfg,
	}, nil
}

// Analyze runs the full pipeline for one (tenant, chain, address) and
// returns the complete Analysis, or an *domain.AnalysisError.
func (p *Pipeline) Analyze(ctx context.Context, tenantID, chain, address, asset string) (*domain.Analysis, error) {
	start := time.Now()
	meta := domain.AnalysisMetadata{
		TraceID:       uuid.New().String(),
		EngineVersion: engineVersion,
	}

	buildStart := time.Now()
	g, err := p.builder.Build(ctx, tenantID, chain, address, p.cfg.MaxDepth, p.cfg.TimeWindowDays)
	if err != nil {
		return nil, err
	}
	meta.BuildGraphMs = time.Since(buildStart).Milliseconds()
	meta.EntitiesVisited = len(g.Entities)
	meta.TransactionsConsidered = len(g.Transactions)

	graph.ComputeMetrics(g)

	exposureInput := exposure.FromEgoGraph(g)

	scoreStart := time.Now()
	ruleScore := rulescorer.Score(exposureInput, p.cfg.RuleCaps)

	if p.customRules != nil {
		if customResults, cerr := p.customRules.EvaluateAll(ctx, exposureInput); cerr == nil && len(customResults) > 0 && p.bundleEngine != nil {
			bundleResults := p.bundleEngine.EvaluateBundles(customResults)
			foldBundleResults(ruleScore, bundleResults)
		}
	}
	meta.ScoreMs = time.Since(scoreStart).Milliseconds()

	patternStart := time.Now()
	matches, err := p.patternEngine.EvaluateAll(ctx, g, p.patternLibrary)
	if err != nil {
		return nil, err
	}
	meta.PatternMs = time.Since(patternStart).Milliseconds()
	meta.PatternsEvaluated = len(p.patternLibrary)

	featureStart := time.Now()
	vector, err := features.Extract(ctx, g)
	if err != nil {
		return nil, err
	}

	var prediction *domain.Prediction
	if p.predict != nil {
		prediction, err = p.predict(ctx, vector.Values, vector.Names)
		if err != nil {
			return nil, domain.NewAnalysisError(domain.ErrInternalInvariantViolation, "prediction function failed", err)
		}
	}
	meta.FeatureMs = time.Since(featureStart).Milliseconds()

	final := p.combiner.Combine(&hybrid.CombineInput{
		Rule:       ruleScore,
		Matches:    matches,
		Prediction: prediction,
	})

	meta.TotalMs = time.Since(start).Milliseconds()

	return &domain.Analysis{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Address:    address,
		Chain:      chain,
		Asset:      asset,
		Score:      final,
		Matches:    matches,
		Prediction: prediction,
		CreatedAt:  time.Now().UTC(),
		Metadata:   meta,
	}, nil
}

// foldBundleResults folds the aggregate score of each triggered rule
// bundle into the rule score's breakdown as a single extra behavioural
// component, preserving the breakdown's dimension-uniqueness invariant.
func foldBundleResults(score *domain.RiskScore, bundles []domain.RuleBundleResult) {
	for _, b := range bundles {
		if !b.Triggered {
			continue
		}
		contribution := int(b.Score * 100)
		if contribution > 100 {
			contribution = 100
		}
		score.Total = clampTotal(score.Total + contribution)
		score.Level = domain.LevelForTotal(score.Total)
		score.Breakdown = append(score.Breakdown, domain.BreakdownComponent{
			Dimension:   "bundle_" + b.BundleID,
			Value:       contribution,
			Explanation: b.BundleName + " rule bundle triggered",
		})
		score.Tags = append(score.Tags, domain.Tag{
			Code:        "BUNDLE_" + b.BundleID,
			Severity:    domain.SeverityMedium,
			Description: b.BundleName + " rule bundle triggered",
		})
	}
}

func clampTotal(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
