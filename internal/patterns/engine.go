// Package patterns implements the finite-automaton pattern-matching
// engine of §4.3: a DFS walk with backtracking over an ego graph,
// dispatching transition conditions through domain's tagged variant.
package patterns

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/riskgraph/addrrisk/internal/domain"
)

// Engine evaluates pattern automata against ego graphs. It owns the
// CEL environment backing the optional ConditionExpression kind, used
// only by tenant-authored automata (the eight standard ones never use
// it).
type Engine struct {
	env      *cel.Env
	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewEngine constructs an Engine with its CEL environment for the
// expression condition kind.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("entity_category", cel.StringType),
		cel.Variable("entity_tags", cel.ListType(cel.StringType)),
		cel.Variable("elapsed_hours", cel.DoubleType),
		cel.Variable("hop_count", cel.IntType),
		cel.Variable("cumulative_volume", cel.DoubleType),
		cel.Variable("is_cross_bridge", cel.BoolType),
		cel.Variable("is_mixer_hop", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("build pattern CEL environment: %w", err)
	}
	return &Engine{env: env, programs: make(map[string]cel.Program)}, nil
}

type walkResult struct {
	path   []*domain.Transaction
	volume float64
}

// better implements the §4.3 tie-break: maximum total volume, then
// shorter hop count, then lexicographic path by transaction hash.
func better(candidate, current *walkResult) bool {
	if candidate.volume != current.volume {
		return candidate.volume > current.volume
	}
	if len(candidate.path) != len(current.path) {
		return len(candidate.path) < len(current.path)
	}
	for i := range candidate.path {
		if candidate.path[i].Hash != current.path[i].Hash {
			return candidate.path[i].Hash < current.path[i].Hash
		}
	}
	return false
}

// Evaluate searches for the best accepting walk of one automaton
// starting at g's centre and returns its Match Result.
func (e *Engine) Evaluate(ctx context.Context, g *domain.EgoGraph, automaton *domain.PatternAutomaton) (*domain.MatchResult, error) {
	select {
	case <-ctx.Done():
		return nil, domain.NewAnalysisError(domain.ErrCancelled, "pattern evaluation cancelled", ctx.Err())
	default:
	}

	if g.Centre() == nil {
		return nil, domain.NewAnalysisError(domain.ErrInternalInvariantViolation, "ego graph has no centre entity", nil)
	}

	initial := automaton.Initial()
	if initial == nil {
		return nil, domain.NewAnalysisError(domain.ErrInvalidInput, fmt.Sprintf("automaton %s has no resolvable initial state", automaton.ID), nil)
	}

	var best *walkResult
	visited := map[string]bool{g.CentreID: true}

	var walkErr error
	var walk func(entityID string, state *domain.State, path []*domain.Transaction, visited map[string]bool, cumulativeVolume float64)
	walk = func(entityID string, state *domain.State, path []*domain.Transaction, visited map[string]bool, cumulativeVolume float64) {
		if walkErr != nil {
			return
		}
		select {
		case <-ctx.Done():
			walkErr = ctx.Err()
			return
		default:
		}

		switch state.Type {
		case domain.StateAccept:
			candidate := &walkResult{path: path, volume: cumulativeVolume}
			if best == nil || better(candidate, best) {
				best = candidate
			}
			return
		case domain.StateFail:
			return
		}

		for _, tx := range g.Forward[entityID] {
			if visited[tx.ToID] {
				continue
			}
			toEntity := g.Entities[tx.ToID]
			if toEntity == nil {
				continue
			}

			var elapsedHours float64
			if len(path) > 0 {
				elapsedHours = tx.Timestamp.Sub(path[0].Timestamp).Hours()
			}
			hopCount := len(path) + 1
			volume := cumulativeVolume + tx.Amount

			for _, t := range state.Transitions {
				ok, err := e.conditionsHold(t.Conditions, toEntity, tx, elapsedHours, hopCount, volume)
				if err != nil {
					walkErr = err
					return
				}
				if !ok {
					continue
				}
				nextState := automaton.States[t.TargetStateID]
				if nextState == nil {
					continue
				}

				newVisited := make(map[string]bool, len(visited)+1)
				for k, v := range visited {
					newVisited[k] = v
				}
				newVisited[tx.ToID] = true

				newPath := make([]*domain.Transaction, len(path)+1)
				copy(newPath, path)
				newPath[len(path)] = tx

				walk(tx.ToID, nextState, newPath, newVisited, volume)
				if walkErr != nil {
					return
				}
			}
		}
	}

	walk(g.CentreID, initial, nil, visited, 0)
	if walkErr != nil {
		return nil, domain.NewAnalysisError(domain.ErrCancelled, "pattern walk cancelled", walkErr)
	}

	if best == nil {
		return &domain.MatchResult{PatternID: automaton.ID, Matched: false, Weight: automaton.Weight, Severity: automaton.Severity}, nil
	}

	share := 0.0
	if total := g.TotalVolume(); total > 0 {
		share = 100 * best.volume / total
		if share > 100 {
			share = 100
		}
	}

	return &domain.MatchResult{
		PatternID:   automaton.ID,
		Matched:     true,
		Weight:      automaton.Weight,
		Severity:    automaton.Severity,
		VolumeShare: share,
		Path:        best.path,
		Explanation: fmt.Sprintf("%s detected: %d hops, %.1f%% of volume, total amount %.2f", automaton.DisplayName, len(best.path), share, best.volume),
	}, nil
}

// EvaluateAll runs every automaton in library concurrently — §5
// permits parallelism across independent pattern automata — and
// returns one Match Result per automaton, in library order.
func (e *Engine) EvaluateAll(ctx context.Context, g *domain.EgoGraph, library []*domain.PatternAutomaton) ([]*domain.MatchResult, error) {
	results := make([]*domain.MatchResult, len(library))
	errs := make([]error, len(library))

	var wg sync.WaitGroup
	for i, automaton := range library {
		wg.Add(1)
		go func(i int, a *domain.PatternAutomaton) {
			defer wg.Done()
			r, err := e.Evaluate(ctx, g, a)
			results[i] = r
			errs[i] = err
		}(i, automaton)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (e *Engine) conditionsHold(conds []domain.Condition, toEntity *domain.Entity, tx *domain.Transaction, elapsedHours float64, hopCount int, cumulativeVolume float64) (bool, error) {
	for _, c := range conds {
		ok, err := e.evalCondition(c, toEntity, tx, elapsedHours, hopCount, cumulativeVolume)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) evalCondition(c domain.Condition, toEntity *domain.Entity, tx *domain.Transaction, elapsedHours float64, hopCount int, cumulativeVolume float64) (bool, error) {
	switch c.Kind {
	case domain.ConditionEntityCategory:
		return toEntity.Category == c.Category, nil
	case domain.ConditionEntityTag:
		return toEntity.HasTag(c.Tag), nil
	case domain.ConditionTimeWindow:
		return elapsedHours <= c.Hours, nil
	case domain.ConditionHopCount:
		return hopCount <= c.HopCount, nil
	case domain.ConditionVolumeThreshold:
		return cumulativeVolume >= c.Volume, nil
	case domain.ConditionBridgeCrossing:
		return tx.IsCrossBridge, nil
	case domain.ConditionMixerHop:
		return tx.IsMixerHop, nil
	case domain.ConditionExpression:
		return e.evalExpression(c.Expr, toEntity, tx, elapsedHours, hopCount, cumulativeVolume)
	default:
		return false, domain.NewAnalysisError(domain.ErrInvalidInput, fmt.Sprintf("unknown condition kind %q", c.Kind), nil)
	}
}

func (e *Engine) evalExpression(expr string, toEntity *domain.Entity, tx *domain.Transaction, elapsedHours float64, hopCount int, cumulativeVolume float64) (bool, error) {
	prg, err := e.compile(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"entity_category":   string(toEntity.Category),
		"entity_tags":       toEntity.Tags,
		"elapsed_hours":     elapsedHours,
		"hop_count":         int64(hopCount),
		"cumulative_volume": cumulativeVolume,
		"is_cross_bridge":   tx.IsCrossBridge,
		"is_mixer_hop":      tx.IsMixerHop,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate expression condition: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, domain.NewAnalysisError(domain.ErrInvalidInput, "expression condition must evaluate to bool", nil)
	}
	return b, nil
}

func (e *Engine) compile(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.programs[expr]; ok {
		return prg, nil
	}
	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile expression condition: %w", iss.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build expression condition program: %w", err)
	}
	e.programs[expr] = prg
	return prg, nil
}
