// Package alerts provides the CEL-Go based alert rule engine that decides
// which detected anomalies are worth raising.
package alerts

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensupply/tradewind/internal/domain"
)

// Engine compiles alert rules once and evaluates them against anomalies.
// Rule definitions are retained whether or not they are enabled; only
// enabled rules are compiled into programs and evaluated. Rules can be
// hot-reloaded; evaluation holds only a read lock.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	rules         map[string]*domain.AlertRule
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.AlertRule
	Program cel.Program
}

// NewEngine creates an alert engine with the anomaly variables bound.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("anomaly", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("z_score", cel.DoubleType),
		cel.Variable("abs_z", cel.DoubleType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("regional_mean", cel.DoubleType),
		cel.Variable("regional_std", cel.DoubleType),
		cel.Variable("variance_pct", cel.DoubleType),
		cel.Variable("sku_id", cel.StringType),
		cel.Variable("vendor_id", cel.StringType),
		cel.Variable("region", cel.StringType),
		cel.Variable("anomaly_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		rules:         make(map[string]*domain.AlertRule),
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.AlertRule) error {
	if rule == nil {
		return fmt.Errorf("alert rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads one rule. The definition is retained even
// when disabled; a disabled rule replaces (and deactivates) any enabled
// version already loaded under the same ID.
func (e *Engine) LoadRule(rule *domain.AlertRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.rules[rule.ID] = rule
	if rule.Enabled {
		e.compiledRules[rule.ID] = compiled
	} else {
		delete(e.compiledRules, rule.ID)
	}
	return nil
}

// LoadRules compiles and loads a rule set.
func (e *Engine) LoadRules(rules []*domain.AlertRule) error {
	for _, rule := range rules {
		if err := e.LoadRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// ReloadRules atomically replaces the loaded rule set. A compile failure
// leaves the previous set in place.
func (e *Engine) ReloadRules(rules []*domain.AlertRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*domain.AlertRule, len(rules))
	newCompiled := make(map[string]*CompiledRule)
	for _, rule := range rules {
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = rule
		if rule.Enabled {
			newCompiled[rule.ID] = compiled
		}
	}

	e.rules = newRules
	e.compiledRules = newCompiled
	return nil
}

// Evaluate runs every loaded rule against one anomaly in parallel and
// returns the rules that fired. A per-rule evaluation error is reported as
// a non-match carrying the error.
func (e *Engine) Evaluate(ctx context.Context, anomaly *domain.VarianceResult) ([]domain.AlertMatch, error) {
	if anomaly == nil {
		return nil, fmt.Errorf("anomaly is required")
	}

	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	price := anomaly.Price.InexactFloat64()
	absZ := anomaly.ZScore
	if absZ < 0 {
		absZ = -absZ
	}

	activation := map[string]any{
		"anomaly": map[string]any{
			"sku_id":        anomaly.SKUID,
			"vendor_id":     anomaly.VendorID,
			"region":        anomaly.Region,
			"price":         price,
			"z_score":       anomaly.ZScore,
			"anomaly_type":  string(anomaly.AnomalyType),
			"regional_mean": anomaly.RegionalMean,
		},
		"z_score":       anomaly.ZScore,
		"abs_z":         absZ,
		"price":         price,
		"regional_mean": anomaly.RegionalMean,
		"regional_std":  anomaly.RegionalStd,
		"variance_pct":  anomaly.VariancePct,
		"sku_id":        anomaly.SKUID,
		"vendor_id":     anomaly.VendorID,
		"region":        anomaly.Region,
		"anomaly_type":  string(anomaly.AnomalyType),
	}

	results := make([]*domain.AlertMatch, len(rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	matches := []domain.AlertMatch{}
	for _, m := range results {
		if m != nil {
			matches = append(matches, *m)
		}
	}
	return matches, nil
}

func evaluateRule(rule *CompiledRule, activation map[string]any) *domain.AlertMatch {
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		return &domain.AlertMatch{
			RuleID:    rule.Rule.ID,
			RuleName:  rule.Rule.Name,
			Severity:  rule.Rule.Severity,
			EvalError: fmt.Sprintf("evaluation error: %v", err),
		}
	}

	if fired, ok := out.(types.Bool); ok && bool(fired) {
		return &domain.AlertMatch{
			RuleID:   rule.Rule.ID,
			RuleName: rule.Rule.Name,
			Severity: rule.Rule.Severity,
		}
	}
	return nil
}

// RulesCount returns the number of enabled, evaluable rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns every loaded rule definition, enabled or not.
func (e *Engine) LoadedRules() []*domain.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.AlertRule, 0, len(e.rules))
	for _, rule := range e.rules {
		rules = append(rules, rule)
	}
	return rules
}

// Close clears the loaded rule set.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = make(map[string]*domain.AlertRule)
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.AlertRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}
