package component

import (
	"fmt"

	"github.com/curelab/autoclave/internal/calc"
	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
	"github.com/curelab/autoclave/internal/expr"
	"github.com/curelab/autoclave/internal/model"
	"github.com/curelab/autoclave/internal/rule"
)

// ruleComponent runs the calculation engine and then evaluates every bound
// rule. Calculation failures are fatal; rule evaluation failures become
// failed RuleResults.
type ruleComponent struct {
	deps Deps
}

func (c *ruleComponent) Name() string { return "rule_evaluation" }

func (c *ruleComponent) Execute(wc *engine.Context, task config.Task) error {
	raw := wc.RawData()
	bound := wc.BoundSpec()
	if raw == nil || bound == nil {
		return fmt.Errorf("rule evaluation task %q ran before ingestion or binding", task.ID)
	}

	calcEngine := calc.NewEngine(c.deps.Evaluator, c.deps.Log).WithStamp(wc.RunID)
	calcResults, err := calcEngine.Run(bound, raw)
	if err != nil {
		return err
	}

	env := make(expr.Environment, len(raw.Channels)+len(calcResults))
	for _, name := range raw.ColumnNames() {
		series, zipErr := model.ZipChannels(raw, []string{name})
		if zipErr != nil {
			return zipErr
		}
		env[name] = series
	}
	for id, value := range calcResults {
		env[id] = value
	}

	evaluator := rule.NewEvaluator(c.deps.Evaluator, c.deps.Log).WithStamp(wc.RunID)
	results := evaluator.EvaluateAll(bound, wc.StageTimeline(), env, raw.Len())

	wc.SetResult(task.ID, results)

	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	c.deps.Log.WithFields(map[string]any{
		"task":   task.ID,
		"rules":  len(results),
		"passed": passed,
	}).Debug("rules evaluated")
	return nil
}
