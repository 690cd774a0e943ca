package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curelab/autoclave/internal/binder"
	"github.com/curelab/autoclave/internal/expr"
	"github.com/curelab/autoclave/internal/logger"
	"github.com/curelab/autoclave/internal/model"
	"github.com/curelab/autoclave/internal/registry"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

func testRawData() *model.RawData {
	return &model.RawData{
		TimestampColumn: "timestamp",
		Channels: map[string][]float64{
			"timestamp": {0, 60, 120, 180},
			"p1":        {-80, -78, -76, -75},
			"tc_1":      {20, 22, 24, 26},
			"tc_2":      {21, 23, 25, 27},
		},
	}
}

func newEngine() *Engine {
	return NewEngine(expr.NewEvaluator(expr.NewStandardRegistry()), logger.Nop())
}

func TestRunSensorGroupCalculation(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		SpecID: "cp_standard",
		Calculations: []binder.BoundCalculation{
			{ID: "bag_pressure", Type: registry.CalcTypeSensorGroup, Channels: []string{"p1"}},
		},
	}

	results, err := newEngine().Run(bound, testRawData())
	require.NoError(t, err)

	series, ok := results["bag_pressure"].(*model.TimeSeries)
	require.True(t, ok)
	assert.Equal(t, []any{-80.0, -78.0, -76.0, -75.0}, series.Values())

	// Companions summarise the series.
	assert.Equal(t, -75.0, results["bag_pressure_max"])
	assert.Equal(t, -80.0, results["bag_pressure_min"])
}

func TestRunCalculatedFormula(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		SpecID: "cp_standard",
		Calculations: []binder.BoundCalculation{
			{ID: "peak_pressure", Type: registry.CalcTypeCalculated, Formula: "MAX(p1)"},
		},
	}

	results, err := newEngine().Run(bound, testRawData())
	require.NoError(t, err)
	assert.Equal(t, -75.0, results["peak_pressure"])
}

func TestRunCalculationSeesPriorResults(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		SpecID: "cp_standard",
		Calculations: []binder.BoundCalculation{
			{ID: "bag_pressure", Type: registry.CalcTypeSensorGroup, Channels: []string{"p1"}},
			{ID: "adjusted", Type: registry.CalcTypeCalculated, Formula: "MAX(bag_pressure) + 1"},
		},
	}

	results, err := newEngine().Run(bound, testRawData())
	require.NoError(t, err)
	assert.Equal(t, -74.0, results["adjusted"])
}

func TestRunRepeatedFormulaServedFromCache(t *testing.T) {
	t.Parallel()

	reg := expr.NewStandardRegistry()
	engine := NewEngine(expr.NewEvaluator(reg), logger.Nop()).WithStamp("run-1")

	bound := &binder.BoundSpecification{
		SpecID: "cp_standard",
		Calculations: []binder.BoundCalculation{
			{ID: "peak_pressure", Type: registry.CalcTypeCalculated, Formula: "MAX(p1)"},
		},
	}

	for i := 0; i < 2; i++ {
		results, err := engine.Run(bound, testRawData())
		require.NoError(t, err)
		assert.Equal(t, -75.0, results["peak_pressure"])
	}

	// The second run reuses the cached formula result instead of
	// re-invoking the operator.
	assert.Equal(t, int64(1), reg.Stats()["MAX"].Calls)
}

func TestRunBundleCompanionsPerChannel(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		SpecID: "cp_standard",
		Calculations: []binder.BoundCalculation{
			{ID: "thermocouples", Type: registry.CalcTypeSensorGroup, Channels: []string{"tc_1", "tc_2"}},
		},
	}

	results, err := newEngine().Run(bound, testRawData())
	require.NoError(t, err)

	assert.Equal(t, 26.0, results["thermocouples_tc_1_max"])
	assert.Equal(t, 20.0, results["thermocouples_tc_1_min"])
	assert.Equal(t, 27.0, results["thermocouples_tc_2_max"])
	assert.Equal(t, 21.0, results["thermocouples_tc_2_min"])
}

func TestRunParseErrorIsFatal(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		SpecID: "cp_standard",
		Calculations: []binder.BoundCalculation{
			{ID: "broken", Type: registry.CalcTypeCalculated, Formula: "MAX(p1"},
		},
	}

	_, err := newEngine().Run(bound, testRawData())
	require.Error(t, err)

	var calcErr *autoclaveerrors.CalcError
	require.ErrorAs(t, err, &calcErr)
	assert.Equal(t, "broken", calcErr.CalculationID)

	var parseErr *autoclaveerrors.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestRunUnknownChannelIsFatal(t *testing.T) {
	t.Parallel()

	bound := &binder.BoundSpecification{
		SpecID: "cp_standard",
		Calculations: []binder.BoundCalculation{
			{ID: "ghost", Type: registry.CalcTypeSensorGroup, Channels: []string{"absent"}},
		},
	}

	_, err := newEngine().Run(bound, testRawData())
	require.Error(t, err)

	var calcErr *autoclaveerrors.CalcError
	assert.ErrorAs(t, err, &calcErr)
}
