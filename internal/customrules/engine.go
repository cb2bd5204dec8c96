// Package customrules provides the CEL-Go based engine for
// tenant-authored custom exposure rules, the ambient extension to the
// §4.2 Rule Scorer described in SPEC_FULL.md.
package customrules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/riskgraph/addrrisk/internal/domain"
)

// Engine is the CEL-based custom-rule evaluation engine, one per
// tenant-scoped rule set held by the caller.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*compiledRule
	maxWorkers    int
}

type compiledRule struct {
	rule    *domain.CustomRule
	program cel.Program
}

// NewEngine creates a custom-rule evaluation engine bound to the
// ExposureInput activation surface.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("direct_sanctioned_pct", cel.DoubleType),
		cel.Variable("indirect_1hop_sanctioned_pct", cel.DoubleType),
		cel.Variable("indirect_2to4hop_sanctioned_pct", cel.DoubleType),
		cel.Variable("illicit_category_pct", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("last_illicit_tx_days_ago", cel.DoubleType),
		cel.Variable("has_last_illicit_tx", cel.BoolType),
		cel.Variable("peel_chain_detected", cel.BoolType),
		cel.Variable("peel_chain_length", cel.IntType),
		cel.Variable("out_degree", cel.IntType),
		cel.Variable("in_degree", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("build custom-rule CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*compiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it, for API-side
// validation before persistence.
func (e *Engine) ValidateRule(rule *domain.CustomRule) error {
	if rule == nil {
		return domain.NewAnalysisError(domain.ErrInvalidInput, "custom rule is required", nil)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, err := e.compile(rule)
	return err
}

// LoadRule compiles and loads one rule into the engine.
func (e *Engine) LoadRule(rule *domain.CustomRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(rule)
	if err != nil {
		return err
	}
	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads every enabled rule, replacing nothing
// already loaded.
func (e *Engine) LoadRules(rules []*domain.CustomRule) error {
	for _, r := range rules {
		if r.Enabled {
			if err := e.LoadRule(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears and reloads every enabled rule, for hot-reload
// after a tenant edits their rule set.
func (e *Engine) ReloadRules(rules []*domain.CustomRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*compiledRule)
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		compiled, err := e.compile(r)
		if err != nil {
			return err
		}
		next[r.ID] = compiled
	}
	e.compiledRules = next
	return nil
}

// EvaluateAll evaluates every loaded rule against one exposure input,
// concurrently, bounded by maxWorkers.
func (e *Engine) EvaluateAll(ctx context.Context, input *domain.ExposureInput) ([]domain.CustomRuleResult, error) {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	select {
	case <-ctx.Done():
		return nil, domain.NewAnalysisError(domain.ErrCancelled, "custom rule evaluation cancelled", ctx.Err())
	default:
	}

	activation := buildActivation(input)

	results := make([]domain.CustomRuleResult, len(rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, r := range rules {
		wg.Add(1)
		go func(idx int, cr *compiledRule) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = e.evaluateRule(cr, activation)
		}(i, r)
	}
	wg.Wait()

	return results, nil
}

func buildActivation(input *domain.ExposureInput) map[string]any {
	illicit := make(map[string]any, len(input.IllicitCategoryVolumePct))
	for k, v := range input.IllicitCategoryVolumePct {
		illicit[k] = v
	}

	var days float64
	var hasDays bool
	if input.LastIllicitTxDaysAgo != nil {
		days = *input.LastIllicitTxDaysAgo
		hasDays = true
	}

	activation := map[string]any{
		"direct_sanctioned_pct":           input.DirectSanctionedVolumePct,
		"indirect_1hop_sanctioned_pct":    input.Indirect1HopSanctionedVolumePct,
		"indirect_2to4hop_sanctioned_pct": input.Indirect2To4HopSanctionedVolumePct,
		"illicit_category_pct":            illicit,
		"last_illicit_tx_days_ago":        days,
		"has_last_illicit_tx":             hasDays,
		"peel_chain_detected":             input.PeelChainDetected,
		"peel_chain_length":               int64(input.PeelChainLength),
		"out_degree":                      int64(input.OutDegree),
		"in_degree":                       int64(input.InDegree),
	}
	for k, v := range input.AdditionalData {
		activation[k] = v
	}
	return activation
}

func (e *Engine) evaluateRule(cr *compiledRule, activation map[string]any) domain.CustomRuleResult {
	start := time.Now()
	result := domain.CustomRuleResult{RuleID: cr.rule.ID, RuleName: cr.rule.Name}

	out, _, err := cr.program.Eval(activation)
	if err != nil {
		result.Outcome = domain.RuleOutcomeError
		result.Error = err.Error()
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	result.Score = toScore(out)
	result.Outcome, result.Reason = matchBand(result.Score, cr.rule.Bands)
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the first band whose [lower, upper) contains score.
// A nil upper limit is treated as unbounded.
func matchBand(score float64, bands []domain.RuleBand) (domain.RuleOutcome, string) {
	for _, band := range bands {
		lower := 0.0
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if score < lower {
			continue
		}
		if band.UpperLimit != nil && score >= *band.UpperLimit {
			continue
		}
		return band.Outcome, band.Reason
	}
	return domain.RuleOutcomePass, "no matching band"
}

func (e *Engine) compile(rule *domain.CustomRule) (*compiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile custom rule %s: %w", rule.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("custom rule %s: expression must return bool, int, or double, got %s", rule.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program for custom rule %s: %w", rule.ID, err)
	}
	return &compiledRule{rule: rule, program: program}, nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// Close releases all loaded rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*compiledRule)
	return nil
}
