// Package stage locates process stages within a run's raw series.
package stage

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/curelab/autoclave/internal/binder"
	"github.com/curelab/autoclave/internal/expr"
	"github.com/curelab/autoclave/internal/logger"
	"github.com/curelab/autoclave/internal/model"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// Detector produces a StageTimeline from raw data and bound stage
// definitions using one of three detection modes: by time range, by trigger
// rule, or by temperature range.
type Detector struct {
	ev  *expr.Evaluator
	log *logger.Logger
}

// NewDetector creates a Detector sharing the run's evaluator.
func NewDetector(ev *expr.Evaluator, log *logger.Logger) *Detector {
	return &Detector{ev: ev, log: log}
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Detect resolves every stage to its closed index interval, applying the
// edge policy (clamping, minimum width, contiguity) and attaching features.
// Warnings record stages that needed repair.
func (d *Detector) Detect(raw *model.RawData, bound *binder.BoundSpecification) (model.StageTimeline, []string, error) {
	n := raw.Len()
	if n == 0 {
		return nil, nil, autoclaveerrors.NewEvalError("stage detection over empty data")
	}
	stamps := raw.Timestamps()
	sampling := samplingMinutes(stamps)

	type resolved struct {
		id   string
		span model.StageSpan
		unit string
	}
	var spans []resolved
	var warnings []string

	for _, stageDef := range bound.Stages {
		start, end, unit, err := d.resolveStage(stageDef, bound, raw, stamps, n)
		if err != nil {
			return nil, warnings, err
		}
		if start < 0 {
			warnings = append(warnings, fmt.Sprintf("stage %q produced no interval", stageDef.ID))
			continue
		}
		spans = append(spans, resolved{id: stageDef.ID, span: model.StageSpan{Start: start, End: end}, unit: unit})
	}

	// Edge policy over the ordered spans.
	for i := range spans {
		span := &spans[i].span
		if span.End > n {
			if i+1 < len(spans) {
				span.End = spans[i+1].span.Start
			} else {
				span.End = n
			}
		}
		if span.Start < 0 {
			span.Start = 0
		}
		if span.End <= span.Start {
			span.End = span.Start + 1
			warnings = append(warnings, fmt.Sprintf("stage %q interval collapsed, expanded to one sample", spans[i].id))
		}
		if !bound.NonContiguousStages && i+1 < len(spans) && span.End > spans[i+1].span.Start {
			span.End = spans[i+1].span.Start
			if span.End <= span.Start {
				span.End = span.Start + 1
			}
		}
	}

	timeline := make(model.StageTimeline, len(spans))
	for _, item := range spans {
		span := item.span
		span.Features = map[string]any{
			"duration_minutes": float64(span.End-span.Start) * sampling,
			"data_points":      span.End - span.Start,
			"unit":             item.unit,
		}
		timeline[item.id] = span
	}

	for _, warning := range warnings {
		d.log.Warn(warning)
	}
	return timeline, warnings, nil
}

// resolveStage returns the raw (pre-policy) interval. A start of -1 means
// the stage matched nothing.
func (d *Detector) resolveStage(stageDef binder.BoundStage, bound *binder.BoundSpecification, raw *model.RawData, stamps []float64, n int) (int, int, string, error) {
	switch {
	case stageDef.TimeRange != nil:
		unit := stageDef.TimeRange.Unit
		if unit == "" {
			unit = "datetime"
		}
		startTS, err := parseTimePoint(stageDef.TimeRange.Start, unit, stamps)
		if err != nil {
			return 0, 0, unit, autoclaveerrors.NewEvalError("stage %q: %v", stageDef.ID, err)
		}
		endTS, err := parseTimePoint(stageDef.TimeRange.End, unit, stamps)
		if err != nil {
			return 0, 0, unit, autoclaveerrors.NewEvalError("stage %q: %v", stageDef.ID, err)
		}
		return indexOf(stamps, startTS), indexOf(stamps, endTS), unit, nil

	case stageDef.TriggerRule != "":
		flags, err := d.triggerFlags(stageDef, bound, raw)
		if err != nil {
			return 0, 0, "trigger", err
		}
		start, end := firstRun(flags, n)
		return start, end, "trigger", nil

	case stageDef.RangeBounded:
		flags := make([]bool, n)
		for i := range flags {
			inside := true
			for _, channel := range stageDef.Channels {
				samples, ok := raw.Channel(channel)
				if !ok {
					return 0, 0, "range", autoclaveerrors.NewEvalError("stage %q names unknown channel %q", stageDef.ID, channel)
				}
				if samples[i] < stageDef.RangeLower || samples[i] > stageDef.RangeUpper {
					inside = false
					break
				}
			}
			flags[i] = inside
		}
		start, end := firstRun(flags, n)
		return start, end, "range", nil
	}

	return 0, 0, "", autoclaveerrors.NewEvalError("stage %q has no recognised detection mode", stageDef.ID)
}

func (d *Detector) triggerFlags(stageDef binder.BoundStage, bound *binder.BoundSpecification, raw *model.RawData) ([]bool, error) {
	var condition string
	for _, rule := range bound.Rules {
		if rule.ID == stageDef.TriggerRule {
			condition = rule.Condition
			break
		}
	}
	if condition == "" {
		return nil, autoclaveerrors.NewEvalError("stage %q references unknown trigger rule %q", stageDef.ID, stageDef.TriggerRule)
	}

	node, err := expr.Parse(condition)
	if err != nil {
		return nil, err
	}

	env := make(expr.Environment, len(raw.Channels))
	for name, samples := range raw.Channels {
		values := make([]any, len(samples))
		for i, s := range samples {
			values[i] = s
		}
		env[name] = values
	}

	value, err := d.ev.Evaluate(node, env)
	if err != nil {
		return nil, err
	}
	list, ok := value.([]any)
	if !ok {
		return nil, autoclaveerrors.NewEvalError("trigger rule %q did not produce a per-sample result", stageDef.TriggerRule)
	}

	flags := make([]bool, raw.Len())
	for i := range flags {
		if i < len(list) {
			if b, ok := list[i].(bool); ok {
				flags[i] = b
			}
		}
	}
	return flags, nil
}

// firstRun finds the first true index and the first false index after it.
func firstRun(flags []bool, n int) (int, int) {
	start := -1
	for i, flag := range flags {
		if flag {
			start = i
			break
		}
	}
	if start < 0 {
		return -1, -1
	}
	for i := start + 1; i < len(flags); i++ {
		if !flags[i] {
			return start, i
		}
	}
	return start, n
}

func parseTimePoint(value, unit string, stamps []float64) (float64, error) {
	switch unit {
	case "datetime":
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return float64(t.Unix()), nil
			}
		}
		return 0, fmt.Errorf("unparseable datetime %q", value)
	case "unix", "timestamp":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable unix timestamp %q", value)
		}
		return f, nil
	case "minutes":
		m, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable minute offset %q", value)
		}
		if len(stamps) == 0 {
			return 0, fmt.Errorf("no timestamp axis for relative minutes")
		}
		return stamps[0] + m*60, nil
	}
	return 0, fmt.Errorf("unknown time unit %q", unit)
}

// indexOf maps a timestamp to the first index at or after it, clamped to
// the series bounds.
func indexOf(stamps []float64, ts float64) int {
	idx := sort.Search(len(stamps), func(i int) bool { return stamps[i] >= ts })
	if idx > len(stamps) {
		idx = len(stamps)
	}
	return idx
}

func samplingMinutes(stamps []float64) float64 {
	if len(stamps) < 2 {
		return 1
	}
	deltas := make([]float64, 0, len(stamps)-1)
	for i := 1; i < len(stamps); i++ {
		deltas = append(deltas, stamps[i]-stamps[i-1])
	}
	sort.Float64s(deltas)
	return deltas[len(deltas)/2] / 60
}
