// Package calc evaluates the calculation definitions of a bound
// specification into named intermediate values.
package calc

import (
	"fmt"

	"github.com/curelab/autoclave/internal/binder"
	"github.com/curelab/autoclave/internal/expr"
	"github.com/curelab/autoclave/internal/logger"
	"github.com/curelab/autoclave/internal/model"
	"github.com/curelab/autoclave/internal/registry"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// Engine runs calculations against one run's raw data. Any failure is a
// CalcError and fatal to the run.
type Engine struct {
	ev    *expr.Evaluator
	log   *logger.Logger
	stamp string
}

// NewEngine creates a calculation engine sharing the run's evaluator.
func NewEngine(ev *expr.Evaluator, log *logger.Logger) *Engine {
	return &Engine{ev: ev, log: log}
}

// WithStamp scopes cached formula evaluations to the given run context stamp
// and returns the engine for chaining.
func (e *Engine) WithStamp(stamp string) *Engine {
	e.stamp = stamp
	return e
}

// Run produces the {calculation id -> value} map injected into the rule
// evaluation environment, including the _max/_min companion entries.
func (e *Engine) Run(bound *binder.BoundSpecification, raw *model.RawData) (map[string]any, error) {
	results := make(map[string]any)

	baseEnv := channelEnvironment(raw)

	for _, calc := range bound.Calculations {
		value, err := e.evaluate(calc, raw, baseEnv, results)
		if err != nil {
			return nil, err
		}
		results[calc.ID] = value
		publishCompanions(results, calc, value)

		e.log.WithFields(map[string]any{"calculation": calc.ID, "type": calc.Type}).Debug("calculation evaluated")
	}

	return results, nil
}

func (e *Engine) evaluate(calc binder.BoundCalculation, raw *model.RawData, baseEnv expr.Environment, prior map[string]any) (any, error) {
	switch calc.Type {
	case registry.CalcTypeSensorGroup:
		series, err := model.ZipChannels(raw, calc.Channels)
		if err != nil {
			return nil, autoclaveerrors.NewCalcError(calc.ID, err)
		}
		return series, nil

	case registry.CalcTypeCalculated:
		node, err := expr.Parse(calc.Formula)
		if err != nil {
			return nil, autoclaveerrors.NewCalcError(calc.ID, err)
		}

		env := make(expr.Environment, len(baseEnv)+len(prior))
		for k, v := range baseEnv {
			env[k] = v
		}
		for k, v := range prior {
			env[k] = v
		}

		value, err := e.ev.EvaluateCached(node, env, e.stamp)
		if err != nil {
			return nil, autoclaveerrors.NewCalcError(calc.ID, err)
		}
		return value, nil
	}

	return nil, autoclaveerrors.NewCalcError(calc.ID, fmt.Errorf("unknown calculation type %q", calc.Type))
}

// channelEnvironment exposes every raw channel as a value list, plus the
// timestamp axis under the timestamp column name.
func channelEnvironment(raw *model.RawData) expr.Environment {
	env := make(expr.Environment, len(raw.Channels))
	for name, samples := range raw.Channels {
		values := make([]any, len(samples))
		for i, s := range samples {
			values[i] = s
		}
		env[name] = values
	}
	return env
}

// publishCompanions adds {id}_max and {id}_min entries for list-shaped
// values. Per-channel bundles publish {id}_{channel}_max/min instead. An
// empty list publishes nothing.
func publishCompanions(results map[string]any, calc binder.BoundCalculation, value any) {
	var values []any
	switch v := value.(type) {
	case *model.TimeSeries:
		values = v.Values()
	case []any:
		values = v
	default:
		return
	}
	if len(values) == 0 {
		return
	}

	if bundle, ok := values[0].([]any); ok && len(calc.Channels) == len(bundle) {
		for c, channel := range calc.Channels {
			var column []float64
			for _, elem := range values {
				row, ok := elem.([]any)
				if !ok || c >= len(row) {
					continue
				}
				if f, ok := toFloat(row[c]); ok {
					column = append(column, f)
				}
			}
			if len(column) == 0 {
				continue
			}
			lo, hi := bounds(column)
			results[fmt.Sprintf("%s_%s_max", calc.ID, channel)] = hi
			results[fmt.Sprintf("%s_%s_min", calc.ID, channel)] = lo
		}
		return
	}

	var flat []float64
	for _, elem := range values {
		if f, ok := toFloat(elem); ok {
			flat = append(flat, f)
		}
	}
	if len(flat) == 0 {
		return
	}
	lo, hi := bounds(flat)
	results[calc.ID+"_max"] = hi
	results[calc.ID+"_min"] = lo
}

func bounds(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
