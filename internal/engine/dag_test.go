package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curelab/autoclave/internal/config"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

func workflowOf(layers ...config.Layer) *config.Workflow {
	return &config.Workflow{Name: "analysis", Layers: layers}
}

func task(id string, deps ...string) config.Task {
	return config.Task{ID: id, Implementation: "default", DependsOn: deps}
}

func TestBuildPlanTopologicalOrder(t *testing.T) {
	t.Parallel()

	wf := workflowOf(
		config.Layer{Type: config.LayerSource, Tasks: []config.Task{task("load")}},
		config.Layer{Type: config.LayerGrouping, Tasks: []config.Task{task("group", "load")}},
		config.Layer{Type: config.LayerBinding, Tasks: []config.Task{task("bind", "group")}},
		config.Layer{Type: config.LayerRuleEvaluation, Tasks: []config.Task{task("rules", "bind")}},
	)

	plan, err := BuildPlan(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"load", "group", "bind", "rules"}, plan.Order)

	position := make(map[string]int, len(plan.Order))
	for i, id := range plan.Order {
		position[id] = i
	}
	for id, taskDef := range plan.Tasks {
		for _, dep := range taskDef.DependsOn {
			assert.Less(t, position[dep], position[id], "%s must run before %s", dep, id)
		}
	}
}

func TestBuildPlanDeclarationOrderTieBreak(t *testing.T) {
	t.Parallel()

	wf := workflowOf(
		config.Layer{Type: config.LayerSource, Tasks: []config.Task{task("load")}},
		config.Layer{Type: config.LayerRuleEvaluation, Tasks: []config.Task{
			task("rules_b", "load"),
			task("rules_a", "load"),
		}},
	)

	plan, err := BuildPlan(wf)
	require.NoError(t, err)

	// Independent tasks keep their declaration order, not lexical order.
	require.Len(t, plan.Levels, 2)
	assert.Equal(t, []string{"rules_b", "rules_a"}, plan.Levels[1])
}

func TestBuildPlanLevels(t *testing.T) {
	t.Parallel()

	wf := workflowOf(
		config.Layer{Type: config.LayerSource, Tasks: []config.Task{task("load")}},
		config.Layer{Type: config.LayerGrouping, Tasks: []config.Task{task("group", "load")}},
		config.Layer{Type: config.LayerBinding, Tasks: []config.Task{task("bind", "load")}},
	)

	plan, err := BuildPlan(wf)
	require.NoError(t, err)
	require.Len(t, plan.Levels, 2)
	assert.Equal(t, []string{"load"}, plan.Levels[0])
	assert.Equal(t, []string{"group", "bind"}, plan.Levels[1])
}

func TestBuildPlanDuplicateTaskID(t *testing.T) {
	t.Parallel()

	wf := workflowOf(
		config.Layer{Type: config.LayerSource, Tasks: []config.Task{task("load")}},
		config.Layer{Type: config.LayerGrouping, Tasks: []config.Task{task("load")}},
	)

	_, err := BuildPlan(wf)
	require.Error(t, err)

	var validationErr *autoclaveerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "duplicate task id")
}

func TestBuildPlanUnknownLayerType(t *testing.T) {
	t.Parallel()

	wf := workflowOf(config.Layer{Type: "telemetry", Tasks: []config.Task{task("sample")}})

	_, err := BuildPlan(wf)
	require.Error(t, err)

	var validationErr *autoclaveerrors.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestBuildPlanMissingDependency(t *testing.T) {
	t.Parallel()

	wf := workflowOf(
		config.Layer{Type: config.LayerSource, Tasks: []config.Task{task("load", "ghost")}},
	)

	_, err := BuildPlan(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestBuildPlanCycle(t *testing.T) {
	t.Parallel()

	wf := workflowOf(
		config.Layer{Type: config.LayerSource, Tasks: []config.Task{task("a", "b")}},
		config.Layer{Type: config.LayerGrouping, Tasks: []config.Task{task("b", "a")}},
	)

	_, err := BuildPlan(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestFingerprintStableAcrossRuntimeInputs(t *testing.T) {
	t.Parallel()

	build := func() *ExecutionPlan {
		wf := workflowOf(
			config.Layer{Type: config.LayerSource, Tasks: []config.Task{{
				ID:             "load",
				Implementation: "default",
				Parameters:     map[string]any{"path": "data.csv", "limit": 10},
			}}},
		)
		plan, err := BuildPlan(wf)
		require.NoError(t, err)
		return plan
	}

	assert.Equal(t, build().Fingerprint(), build().Fingerprint())
}

func TestFingerprintSensitiveToDefinition(t *testing.T) {
	t.Parallel()

	base := workflowOf(
		config.Layer{Type: config.LayerSource, Tasks: []config.Task{task("load")}},
	)
	changed := workflowOf(
		config.Layer{Type: config.LayerSource, Tasks: []config.Task{{
			ID:             "load",
			Implementation: "default",
			Algorithm:      "chunked",
		}}},
	)

	basePlan, err := BuildPlan(base)
	require.NoError(t, err)
	changedPlan, err := BuildPlan(changed)
	require.NoError(t, err)

	assert.NotEqual(t, basePlan.Fingerprint(), changedPlan.Fingerprint())
}

func TestFingerprintTasksMatchesBuiltPlan(t *testing.T) {
	t.Parallel()

	wf := workflowOf(
		config.Layer{Type: config.LayerSource, Tasks: []config.Task{{
			ID:             "load",
			Implementation: "default",
			Parameters:     map[string]any{"path": "data.csv"},
		}}},
		config.Layer{Type: config.LayerGrouping, Tasks: []config.Task{task("group", "load")}},
	)

	plan, err := BuildPlan(wf)
	require.NoError(t, err)
	assert.Equal(t, FingerprintTasks(wf.Tasks()), plan.Fingerprint())
}

func TestFingerprintIgnoresParameterMapOrder(t *testing.T) {
	t.Parallel()

	plan := func(params map[string]any) uint64 {
		wf := workflowOf(
			config.Layer{Type: config.LayerSource, Tasks: []config.Task{{
				ID:             "load",
				Implementation: "default",
				Parameters:     params,
			}}},
		)
		built, err := BuildPlan(wf)
		require.NoError(t, err)
		return built.Fingerprint()
	}

	a := plan(map[string]any{"path": "data.csv", "timestamp_column": "timestamp"})
	b := plan(map[string]any{"timestamp_column": "timestamp", "path": "data.csv"})
	assert.Equal(t, a, b)
}
