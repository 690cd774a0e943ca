package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curelab/autoclave/internal/binder"
	"github.com/curelab/autoclave/internal/expr"
	"github.com/curelab/autoclave/internal/logger"
	"github.com/curelab/autoclave/internal/model"
)

func newRuleEvaluator() *Evaluator {
	return NewEvaluator(expr.NewEvaluator(expr.NewStandardRegistry()), logger.Nop())
}

func pressureSeries(values []float64) *model.TimeSeries {
	points := make([]model.Point, len(values))
	for i, v := range values {
		points[i] = model.Point{Timestamp: float64(i * 60), Value: v}
	}
	return &model.TimeSeries{Points: points}
}

func TestEvaluateAggregateRulePassing(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{
				ID:           "max_pressure",
				Condition:    "MAX(bag_pressure) <= -74",
				Severity:     "critical",
				Stage:        "pre_ventilation",
				Calculations: []string{"bag_pressure"},
			},
		},
	}
	timeline := model.StageTimeline{"pre_ventilation": {Start: 0, End: 4}}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -78, -76, -75})}

	results := newRuleEvaluator().EvaluateAll(bound, timeline, env, 4)
	require.Len(t, results, 1)

	result := results[0]
	assert.True(t, result.Passed)
	assert.Equal(t, "max_pressure", result.RuleID)
	assert.Equal(t, "critical", result.Severity)
	assert.Equal(t, "pre_ventilation", result.Stage)
	assert.Equal(t, -75.0, result.ActualValue)
	assert.Equal(t, true, result.Analysis["has_comparison"])
	assert.Equal(t, true, result.Analysis["compliance_result"])
}

func TestEvaluateAggregateRuleFailing(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "max_pressure", Condition: "MAX(bag_pressure) <= -74", Stage: "pre_ventilation"},
		},
	}
	timeline := model.StageTimeline{"pre_ventilation": {Start: 0, End: 4}}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -78, -70, -75})}

	results := newRuleEvaluator().EvaluateAll(bound, timeline, env, 4)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Equal(t, -70.0, results[0].ActualValue)
}

func TestEvaluateListwiseRuleExposesActualValue(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "pressure_band", Condition: "bag_pressure <= -74"},
		},
	}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -70})}

	results := newRuleEvaluator().EvaluateAll(bound, model.StageTimeline{}, env, 2)
	require.Len(t, results, 1)

	result := results[0]
	assert.False(t, result.Passed)
	assert.Equal(t, []any{-80.0, -70.0}, result.ActualValue)
	assert.Equal(t, true, result.Analysis["is_array"])
}

func TestEvaluateWindowsToStage(t *testing.T) {
	t.Parallel()

	// The full series violates the limit; the stage window does not.
	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "windowed", Condition: "MAX(bag_pressure) <= -74", Stage: "early"},
		},
	}
	timeline := model.StageTimeline{"early": {Start: 0, End: 2}}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -78, -60, -55})}

	results := newRuleEvaluator().EvaluateAll(bound, timeline, env, 4)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, -78.0, results[0].ActualValue)
}

func TestEvaluateComparisonCallReportsMeasuredValue(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "max_pressure", Condition: "LE(MAX(bag_pressure), -74)"},
		},
	}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -78, -76, -75})}

	results := newRuleEvaluator().EvaluateAll(bound, model.StageTimeline{}, env, 4)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, -75.0, results[0].ActualValue)
}

func TestEvaluateLimitOnLeftReportsMeasuredValue(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "max_pressure", Condition: "-74 >= MAX(bag_pressure)"},
		},
	}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -78, -76, -75})}

	results := newRuleEvaluator().EvaluateAll(bound, model.StageTimeline{}, env, 4)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, -75.0, results[0].ActualValue)
}

func TestEvaluateNonComparisonKeepsRawValue(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "has_samples", Condition: "len(bag_pressure)"},
		},
	}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -78})}

	results := newRuleEvaluator().EvaluateAll(bound, model.StageTimeline{}, env, 2)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, int64(2), results[0].ActualValue)
}

func TestEvaluateRepeatedRunsHitEvaluationCache(t *testing.T) {
	t.Parallel()

	reg := expr.NewStandardRegistry()
	evaluator := NewEvaluator(expr.NewEvaluator(reg), logger.Nop()).WithStamp("run-1")

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "max_pressure", Condition: "MAX(bag_pressure) <= -74", Stage: "pre_ventilation"},
		},
	}
	timeline := model.StageTimeline{"pre_ventilation": {Start: 0, End: 4}}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -78, -76, -75})}

	for i := 0; i < 2; i++ {
		results := evaluator.EvaluateAll(bound, timeline, env, 4)
		require.Len(t, results, 1)
		assert.True(t, results[0].Passed)
		assert.Equal(t, -75.0, results[0].ActualValue)
	}

	// One call for the condition, one for its measured operand; the second
	// pass is served from the evaluation cache.
	assert.Equal(t, int64(2), reg.Stats()["MAX"].Calls)
}

func TestEvaluateStageFallsBackToAssignments(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "assigned", Condition: "MAX(bag_pressure) <= -74"},
		},
		Stages: []binder.BoundStage{
			{ID: "heating", Rules: []string{"assigned"}},
		},
	}
	timeline := model.StageTimeline{"heating": {Start: 0, End: 2}}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -78, -60})}

	results := newRuleEvaluator().EvaluateAll(bound, timeline, env, 3)
	require.Len(t, results, 1)
	assert.Equal(t, "heating", results[0].Stage)
	assert.True(t, results[0].Passed)
}

func TestEvaluateGlobalStageSeesWholeSeries(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "global_check", Condition: "MIN(bag_pressure) <= -79"},
		},
	}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -70})}

	results := newRuleEvaluator().EvaluateAll(bound, model.StageTimeline{}, env, 2)
	require.Len(t, results, 1)
	assert.Equal(t, model.GlobalStage, results[0].Stage)
	assert.True(t, results[0].Passed)
}

func TestEvaluateParseErrorYieldsFailedResult(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "broken", Condition: "MAX(bag_pressure"},
			{ID: "healthy", Condition: "MAX(bag_pressure) <= -74"},
		},
	}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80, -78})}

	results := newRuleEvaluator().EvaluateAll(bound, model.StageTimeline{}, env, 2)
	require.Len(t, results, 2)

	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Message, "parse error")

	// The failure is local; the next rule still runs.
	assert.True(t, results[1].Passed)
}

func TestEvaluateMissingCalculation(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{ID: "needs_calc", Condition: "MAX(derived) <= 0", Calculations: []string{"derived", "also_missing"}},
		},
	}

	results := newRuleEvaluator().EvaluateAll(bound, model.StageTimeline{}, expr.Environment{}, 0)
	require.Len(t, results, 1)

	result := results[0]
	assert.False(t, result.Passed)
	assert.Equal(t, "missing calculations: also_missing, derived", result.Message)
}

func TestEvaluateThresholdParameterSurfaces(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		Rules: []binder.BoundRule{
			{
				ID:         "limit",
				Condition:  "MAX(bag_pressure) <= -74",
				Parameters: map[string]any{"threshold": -74},
			},
		},
	}
	env := expr.Environment{"bag_pressure": pressureSeries([]float64{-80})}

	results := newRuleEvaluator().EvaluateAll(bound, model.StageTimeline{}, env, 1)
	require.Len(t, results, 1)
	assert.Equal(t, -74, results[0].Threshold)
}
