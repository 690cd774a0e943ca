// Package rule evaluates bound rule conditions against stage-windowed
// environments and records per-rule outcomes.
package rule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/curelab/autoclave/internal/binder"
	"github.com/curelab/autoclave/internal/expr"
	"github.com/curelab/autoclave/internal/logger"
	"github.com/curelab/autoclave/internal/model"
)

// Evaluator runs every rule of a bound specification in order. Evaluation
// errors never abort the run; they become failed RuleResults.
type Evaluator struct {
	ev    *expr.Evaluator
	log   *logger.Logger
	stamp string

	parsed map[string]*expr.Node
}

// NewEvaluator creates a rule evaluator sharing the run's expression
// evaluator.
func NewEvaluator(ev *expr.Evaluator, log *logger.Logger) *Evaluator {
	return &Evaluator{ev: ev, log: log, parsed: make(map[string]*expr.Node)}
}

// WithStamp scopes cached evaluations to the given run context stamp and
// returns the evaluator for chaining.
func (e *Evaluator) WithStamp(stamp string) *Evaluator {
	e.stamp = stamp
	return e
}

// EvaluateAll processes the rules in specification order. The environment
// holds raw channels (as TimeSeries) and calculation outputs; values are
// sliced to the rule's stage window before evaluation.
func (e *Evaluator) EvaluateAll(bound *binder.BoundSpecification, timeline model.StageTimeline, env expr.Environment, runLen int) []model.RuleResult {
	results := make([]model.RuleResult, 0, len(bound.Rules))
	for _, boundRule := range bound.Rules {
		results = append(results, e.evaluateOne(boundRule, bound, timeline, env, runLen))
	}
	return results
}

func (e *Evaluator) evaluateOne(boundRule binder.BoundRule, bound *binder.BoundSpecification, timeline model.StageTimeline, env expr.Environment, runLen int) model.RuleResult {
	started := time.Now()

	stageID := resolveStage(boundRule, bound)
	result := model.RuleResult{
		RuleID:   boundRule.ID,
		Severity: boundRule.Severity,
		Stage:    stageID,
	}
	if threshold, ok := boundRule.Parameters["threshold"]; ok {
		result.Threshold = threshold
	}

	if missing := missingCalculations(boundRule, env); len(missing) > 0 {
		result.Passed = false
		result.Message = "missing calculations: " + strings.Join(missing, ", ")
		result.ExecutionTime = time.Since(started)
		return result
	}

	scoped := e.windowed(env, stageID, timeline, runLen)

	node, err := e.parse(boundRule.Condition)
	if err != nil {
		result.Passed = false
		result.Message = err.Error()
		result.ExecutionTime = time.Since(started)
		return result
	}

	stamp := e.stampFor(stageID)
	analyzed, err := e.ev.EvaluateAnalyzedCached(node, scoped, stamp)
	if err != nil {
		result.Passed = false
		result.Message = err.Error()
		result.ExecutionTime = time.Since(started)
		e.log.WithFields(map[string]any{"rule": boundRule.ID}).Error(err, "rule evaluation failed")
		return result
	}

	result.Passed = analyzed.Passed()
	result.ActualValue = e.actualValue(node, analyzed, scoped, stamp)
	result.Message = fmt.Sprintf("%s = %t", boundRule.Condition, result.Passed)
	result.Analysis = map[string]any{
		"is_numeric":     analyzed.IsNumeric,
		"is_array":       analyzed.IsArray,
		"is_boolean":     analyzed.IsBoolean,
		"has_comparison": analyzed.HasComparison,
	}
	if analyzed.ComplianceResult != nil {
		result.Analysis["compliance_result"] = *analyzed.ComplianceResult
	} else {
		result.Analysis["compliance_result"] = nil
	}
	result.ExecutionTime = time.Since(started)
	return result
}

// actualValue reports the measured side of the rule. For conditions rooted
// in a comparison it is the data operand's value, so the result shows what
// the limit was checked against rather than the check's outcome. Other
// conditions report the evaluated value itself.
func (e *Evaluator) actualValue(node *expr.Node, analyzed *expr.Result, scoped expr.Environment, stamp string) any {
	operand := e.ev.DataOperand(node)
	if operand == nil {
		return analyzed.Value
	}
	value, err := e.ev.EvaluateCached(operand, scoped, stamp)
	if err != nil {
		return analyzed.Value
	}
	return value
}

// stampFor scopes cache entries to the stage window, since windowing changes
// values without changing the environment's key set.
func (e *Evaluator) stampFor(stageID string) string {
	return e.stamp + "|" + stageID
}

// parse caches ASTs by condition text; identical conditions parse once.
func (e *Evaluator) parse(condition string) (*expr.Node, error) {
	if node, ok := e.parsed[condition]; ok {
		return node, nil
	}
	node, err := expr.Parse(condition)
	if err != nil {
		return nil, err
	}
	e.parsed[condition] = node
	return node, nil
}

// windowed slices every series-shaped value to [stage.Start, stage.End).
// Non-series values pass through untouched. The global stage sees the
// environment unchanged.
func (e *Evaluator) windowed(env expr.Environment, stageID string, timeline model.StageTimeline, runLen int) expr.Environment {
	if stageID == model.GlobalStage {
		return env
	}
	span, ok := timeline[stageID]
	if !ok {
		return env
	}

	scoped := make(expr.Environment, len(env))
	for name, value := range env {
		switch v := value.(type) {
		case *model.TimeSeries:
			scoped[name] = v.Slice(span.Start, span.End)
		case []any:
			if len(v) == runLen {
				scoped[name] = v[clamp(span.Start, len(v)):clamp(span.End, len(v))]
			} else {
				scoped[name] = v
			}
		default:
			scoped[name] = value
		}
	}
	return scoped
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// resolveStage prefers the rule's explicit stage, then the specification's
// stage assignments, then global.
func resolveStage(boundRule binder.BoundRule, bound *binder.BoundSpecification) string {
	if boundRule.Stage != "" {
		return boundRule.Stage
	}
	for _, stageDef := range bound.Stages {
		for _, assigned := range stageDef.Rules {
			if assigned == boundRule.ID {
				return stageDef.ID
			}
		}
	}
	return model.GlobalStage
}

func missingCalculations(boundRule binder.BoundRule, env expr.Environment) []string {
	var missing []string
	for _, id := range boundRule.Calculations {
		if _, ok := env[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}
