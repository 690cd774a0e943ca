package binder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curelab/autoclave/internal/logger"
	"github.com/curelab/autoclave/internal/model"
	"github.com/curelab/autoclave/internal/registry"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

func emptyTemplates(t *testing.T) *registry.TemplateRegistry {
	t.Helper()
	reg, err := registry.NewTemplateRegistry(filepath.Join(t.TempDir(), "none"), logger.Nop())
	require.NoError(t, err)
	return reg
}

func templatesWith(t *testing.T, family string, files map[string]string) *registry.TemplateRegistry {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, family)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	reg, err := registry.NewTemplateRegistry(root, logger.Nop())
	require.NoError(t, err)
	return reg
}

func TestBindSensorGroupCalculation(t *testing.T) {
	t.Parallel()

	spec := &registry.Specification{
		ID: "cp_standard",
		Calculations: []registry.CalcDef{
			{ID: "bag_pressure", Type: registry.CalcTypeSensorGroup, Sensors: []string{"pressure_group"}},
		},
	}
	grouping := model.SensorGrouping{"pressure_group": {"p1", "p2"}}

	bound, err := Bind(spec, emptyTemplates(t), grouping)
	require.NoError(t, err)
	require.Len(t, bound.Calculations, 1)

	calc := bound.Calculations[0]
	assert.Equal(t, "bag_pressure", calc.ID)
	assert.Equal(t, registry.CalcTypeSensorGroup, calc.Type)
	assert.Equal(t, []string{"p1", "p2"}, calc.Channels)
}

func TestBindFormulaSubstitutesGroups(t *testing.T) {
	t.Parallel()

	spec := &registry.Specification{
		ID: "cp_standard",
		Calculations: []registry.CalcDef{
			{ID: "heating_rate", Formula: "RATE({thermocouples}, step=1)"},
		},
	}
	grouping := model.SensorGrouping{"thermocouples": {"tc_1", "tc_2", "tc_3"}}

	bound, err := Bind(spec, emptyTemplates(t), grouping)
	require.NoError(t, err)

	calc := bound.Calculations[0]
	assert.Equal(t, registry.CalcTypeCalculated, calc.Type)
	assert.Equal(t, "RATE((tc_1, tc_2, tc_3), step=1)", calc.Formula)
	assert.NotContains(t, calc.Formula, "{")
}

func TestBindSingleChannelGroupIsLiteral(t *testing.T) {
	t.Parallel()

	spec := &registry.Specification{
		ID: "cp_standard",
		Calculations: []registry.CalcDef{
			{ID: "peak", Formula: "MAX({pressure_group})"},
		},
	}
	grouping := model.SensorGrouping{"pressure_group": {"p1"}}

	bound, err := Bind(spec, emptyTemplates(t), grouping)
	require.NoError(t, err)
	assert.Equal(t, "MAX(p1)", bound.Calculations[0].Formula)
}

func TestBindRuleFromTemplate(t *testing.T) {
	t.Parallel()

	templates := templatesWith(t, "carbon_prepreg", map[string]string{
		"rule_templates.yaml": `
templates:
  - id: max_pressure_template
    severity: critical
    condition: "MAX({calculation_id}) <= {limit}"
    parameters:
      limit: -74
`,
	})

	spec := &registry.Specification{
		ID: "cp_standard",
		Calculations: []registry.CalcDef{
			{ID: "bag_pressure", Type: registry.CalcTypeSensorGroup, Sensors: []string{"pressure_group"}},
		},
		Rules: []registry.RuleDef{
			{
				ID:       "max_pressure",
				Template: "max_pressure_template",
				Stage:    "pre_ventilation",
				Parameters: map[string]any{
					"calculation_id": "bag_pressure",
				},
				Calculations: []string{"bag_pressure"},
			},
		},
	}
	grouping := model.SensorGrouping{"pressure_group": {"p1"}}

	bound, err := Bind(spec, templates, grouping)
	require.NoError(t, err)
	require.Len(t, bound.Rules, 1)

	rule := bound.Rules[0]
	assert.Equal(t, "MAX(bag_pressure) <= -74", rule.Condition)
	assert.Equal(t, "critical", rule.Severity)
	assert.Equal(t, "pre_ventilation", rule.Stage)
	assert.Equal(t, -74, rule.Parameters["limit"])
}

func TestBindRuleParameterOverrideWins(t *testing.T) {
	t.Parallel()

	templates := templatesWith(t, "carbon_prepreg", map[string]string{
		"rule_templates.yaml": `
templates:
  - id: limit_template
    condition: "MAX({pressure_group}) <= {limit}"
    parameters:
      limit: -74
`,
	})

	spec := &registry.Specification{
		ID: "cp_standard",
		Rules: []registry.RuleDef{
			{ID: "tight_limit", Template: "limit_template", Parameters: map[string]any{"limit": -80}},
		},
	}
	grouping := model.SensorGrouping{"pressure_group": {"p1"}}

	bound, err := Bind(spec, templates, grouping)
	require.NoError(t, err)
	assert.Equal(t, "MAX(p1) <= -80", bound.Rules[0].Condition)
}

func TestBindMissingGroupFailsBeforeEvaluation(t *testing.T) {
	t.Parallel()

	spec := &registry.Specification{
		ID: "cp_standard",
		Calculations: []registry.CalcDef{
			{ID: "leading_temp", Formula: "AVG({leading})"},
			{ID: "lagging_temp", Formula: "AVG({lagging})"},
		},
	}
	grouping := model.SensorGrouping{"leading": {"tc_1", "tc_2"}}

	_, err := Bind(spec, emptyTemplates(t), grouping)
	require.Error(t, err)

	var bindErr *autoclaveerrors.BindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "lagging", bindErr.Group)
	assert.Contains(t, err.Error(), "lagging")
}

func TestBindEmptyGroupingRejected(t *testing.T) {
	t.Parallel()

	spec := &registry.Specification{ID: "cp_standard"}

	_, err := Bind(spec, emptyTemplates(t), model.SensorGrouping{})
	require.Error(t, err)

	var bindErr *autoclaveerrors.BindingError
	assert.ErrorAs(t, err, &bindErr)
}

func TestBindDanglingCalculationReference(t *testing.T) {
	t.Parallel()

	spec := &registry.Specification{
		ID: "cp_standard",
		Rules: []registry.RuleDef{
			{
				ID:         "orphan",
				Condition:  "MAX({calculation_id}) <= 0",
				Parameters: map[string]any{"calculation_id": "missing_calc"},
			},
		},
	}
	grouping := model.SensorGrouping{"pressure_group": {"p1"}}

	_, err := Bind(spec, emptyTemplates(t), grouping)
	require.Error(t, err)

	var dangling *autoclaveerrors.DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "orphan", dangling.RuleID)
	assert.Equal(t, "missing_calc", dangling.CalculationID)
}

func TestBindStageWithTemperatureRange(t *testing.T) {
	t.Parallel()

	spec := &registry.Specification{
		ID: "cp_standard",
		Stages: []registry.StageDef{
			{
				ID:               "soak",
				TemperatureRange: &registry.TemperatureRange{Group: "thermocouples", Lower: 170, Upper: 185},
			},
		},
	}
	grouping := model.SensorGrouping{"thermocouples": {"tc_1", "tc_2"}}

	bound, err := Bind(spec, emptyTemplates(t), grouping)
	require.NoError(t, err)
	require.Len(t, bound.Stages, 1)

	stage := bound.Stages[0]
	assert.True(t, stage.RangeBounded)
	assert.Equal(t, 170.0, stage.RangeLower)
	assert.Equal(t, 185.0, stage.RangeUpper)
	assert.Equal(t, []string{"tc_1", "tc_2"}, stage.Channels)
	assert.Equal(t, "temperature_range", stage.Type)
}

func TestBindResultHasNoPlaceholders(t *testing.T) {
	t.Parallel()

	spec := &registry.Specification{
		ID: "cp_standard",
		Calculations: []registry.CalcDef{
			{ID: "bag_pressure", Type: registry.CalcTypeSensorGroup, Sensors: []string{"pressure_group"}},
		},
		Rules: []registry.RuleDef{
			{ID: "limit", Condition: "MAX({pressure_group}) <= {limit}", Parameters: map[string]any{"limit": -74}},
		},
	}
	grouping := model.SensorGrouping{"pressure_group": {"p1", "p2"}}

	bound, err := Bind(spec, emptyTemplates(t), grouping)
	require.NoError(t, err)

	for _, calc := range bound.Calculations {
		assert.NotContains(t, calc.Formula, "{")
	}
	for _, rule := range bound.Rules {
		assert.NotContains(t, rule.Condition, "{")
	}
}
