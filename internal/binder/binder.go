// Package binder turns a specification plus a runtime sensor grouping into
// a fully-resolved, placeholder-free plan.
package binder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/curelab/autoclave/internal/model"
	"github.com/curelab/autoclave/internal/registry"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// BoundSpecification mirrors the specification shape with every placeholder
// substituted. It is created per request and discarded after the run.
type BoundSpecification struct {
	SpecID       string
	Calculations []BoundCalculation
	Rules        []BoundRule
	Stages       []BoundStage

	NonContiguousStages bool
}

// BoundCalculation is a calculation entry with concrete channel names.
type BoundCalculation struct {
	ID         string
	Type       string
	Formula    string
	Channels   []string
	Parameters map[string]any
}

// BoundRule is a rule entry whose condition contains only channel references.
type BoundRule struct {
	ID           string
	Condition    string
	Severity     string
	Stage        string
	Parameters   map[string]any
	Calculations []string
}

// BoundStage is a stage entry with its identifier form resolved.
type BoundStage struct {
	ID           string
	Name         string
	Type         string
	TimeRange    *registry.TimeRange
	TriggerRule  string
	RangeLower   float64
	RangeUpper   float64
	RangeBounded bool
	Channels     []string
	Algorithm    string
	Rules        []string
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Bind resolves spec against grouping, fetching referenced templates from
// the registry. The result contains no {...} placeholder.
func Bind(spec *registry.Specification, templates *registry.TemplateRegistry, grouping model.SensorGrouping) (*BoundSpecification, error) {
	if len(grouping) == 0 {
		return nil, autoclaveerrors.NewBindingError("", "sensor grouping is empty")
	}

	bound := &BoundSpecification{
		SpecID:              spec.ID,
		NonContiguousStages: spec.NonContiguousStages,
	}

	for _, entry := range spec.Calculations {
		calc, err := bindCalculation(entry, templates, grouping)
		if err != nil {
			return nil, err
		}
		bound.Calculations = append(bound.Calculations, calc)
	}

	calcIDs := make(map[string]struct{}, len(bound.Calculations))
	for _, calc := range bound.Calculations {
		calcIDs[calc.ID] = struct{}{}
	}

	for _, entry := range spec.Rules {
		rule, err := bindRule(entry, templates, grouping, calcIDs)
		if err != nil {
			return nil, err
		}
		bound.Rules = append(bound.Rules, rule)
	}

	for _, entry := range spec.Stages {
		stage, err := bindStage(entry, templates, grouping)
		if err != nil {
			return nil, err
		}
		bound.Stages = append(bound.Stages, stage)
	}

	return bound, nil
}

func bindCalculation(entry registry.CalcDef, templates *registry.TemplateRegistry, grouping model.SensorGrouping) (BoundCalculation, error) {
	formula := entry.Formula
	calcType := entry.Type
	groups := stripPlaceholders(entry.Sensors)
	params := map[string]any{}
	id := entry.ID

	if entry.Template != "" {
		tmpl, err := templates.GetTemplate(registry.KindCalculation, entry.Template)
		if err != nil {
			return BoundCalculation{}, err
		}
		if formula == "" {
			formula = tmpl.Formula
		}
		if calcType == "" {
			calcType = tmpl.Type
		}
		if len(groups) == 0 {
			groups = stripPlaceholders(tmpl.Sensors)
		}
		params = mergeParameters(tmpl.Parameters, entry.Parameters)
		if id == "" {
			id = tmpl.ID
		}
	} else {
		params = mergeParameters(nil, entry.Parameters)
	}

	if calcType == "" {
		if formula != "" {
			calcType = registry.CalcTypeCalculated
		} else {
			calcType = registry.CalcTypeSensorGroup
		}
	}

	var channels []string
	for _, group := range groups {
		resolved, ok := grouping[group]
		if !ok {
			return BoundCalculation{}, autoclaveerrors.NewBindingError(group, "")
		}
		channels = append(channels, resolved...)
	}

	formula, err := substitute(formula, grouping, params)
	if err != nil {
		return BoundCalculation{}, err
	}

	return BoundCalculation{
		ID:         id,
		Type:       calcType,
		Formula:    formula,
		Channels:   channels,
		Parameters: params,
	}, nil
}

func bindRule(entry registry.RuleDef, templates *registry.TemplateRegistry, grouping model.SensorGrouping, calcIDs map[string]struct{}) (BoundRule, error) {
	condition := entry.Condition
	severity := entry.Severity
	stage := entry.Stage
	params := map[string]any{}

	if entry.Template != "" {
		tmpl, err := templates.GetTemplate(registry.KindRule, entry.Template)
		if err != nil {
			return BoundRule{}, err
		}
		if condition == "" {
			condition = tmpl.Condition
		}
		if severity == "" {
			severity = tmpl.Severity
		}
		if stage == "" {
			stage = tmpl.Stage
		}
		params = mergeParameters(tmpl.Parameters, entry.Parameters)
	} else {
		params = mergeParameters(nil, entry.Parameters)
	}

	// {calculation_id} resolves first, against the bound calculations of the
	// same specification.
	if ref, ok := params["calculation_id"]; ok {
		refID := fmt.Sprintf("%v", ref)
		if _, exists := calcIDs[refID]; !exists {
			return BoundRule{}, autoclaveerrors.NewDanglingReferenceError(entry.ID, refID)
		}
		condition = strings.ReplaceAll(condition, "{calculation_id}", refID)
	}

	condition, err := substitute(condition, grouping, params)
	if err != nil {
		return BoundRule{}, err
	}

	return BoundRule{
		ID:           entry.ID,
		Condition:    condition,
		Severity:     severity,
		Stage:        stage,
		Parameters:   params,
		Calculations: append([]string(nil), entry.Calculations...),
	}, nil
}

func bindStage(entry registry.StageDef, templates *registry.TemplateRegistry, grouping model.SensorGrouping) (BoundStage, error) {
	stage := BoundStage{
		ID:          entry.ID,
		Name:        entry.Name,
		Type:        entry.Type,
		TimeRange:   entry.TimeRange,
		TriggerRule: entry.TriggerRule,
		Algorithm:   entry.Algorithm,
		Rules:       append([]string(nil), entry.Rules...),
	}

	if entry.Template != "" {
		tmpl, err := templates.GetTemplate(registry.KindStage, entry.Template)
		if err != nil {
			return BoundStage{}, err
		}
		if stage.Type == "" {
			stage.Type = tmpl.Type
		}
		if stage.Name == "" {
			stage.Name = tmpl.Name
		}
		if stage.TimeRange == nil {
			stage.TimeRange = tmpl.TimeRange
		}
		if stage.TriggerRule == "" {
			stage.TriggerRule = tmpl.TriggerRule
		}
		if entry.TemperatureRange == nil {
			entry.TemperatureRange = tmpl.TemperatureRange
		}
		if stage.Algorithm == "" {
			stage.Algorithm = tmpl.Algorithm
		}
	}

	if tr := entry.TemperatureRange; tr != nil {
		channels, ok := grouping[tr.Group]
		if !ok {
			return BoundStage{}, autoclaveerrors.NewBindingError(tr.Group, "")
		}
		stage.Channels = channels
		stage.RangeLower = tr.Lower
		stage.RangeUpper = tr.Upper
		stage.RangeBounded = true
		if stage.Type == "" {
			stage.Type = "temperature_range"
		}
	}

	return stage, nil
}

// substitute replaces {group} placeholders with channel expressions and any
// remaining {param} placeholders from the parameter map. A placeholder that
// matches neither is a missing sensor group.
func substitute(text string, grouping model.SensorGrouping, params map[string]any) (string, error) {
	if text == "" {
		return text, nil
	}

	var substErr error
	out := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if channels, ok := grouping[name]; ok {
			return channelExpr(channels)
		}
		if value, ok := params[name]; ok {
			return fmt.Sprintf("%v", value)
		}
		if substErr == nil {
			substErr = autoclaveerrors.NewBindingError(name, "")
		}
		return match
	})
	if substErr != nil {
		return "", substErr
	}
	return out, nil
}

// channelExpr renders a channel list: the single channel literally, else a
// parenthesised comma list.
func channelExpr(channels []string) string {
	if len(channels) == 1 {
		return channels[0]
	}
	return "(" + strings.Join(channels, ", ") + ")"
}

func mergeParameters(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func stripPlaceholders(sensors []string) []string {
	out := make([]string, 0, len(sensors))
	for _, sensor := range sensors {
		out = append(out, strings.Trim(sensor, "{}"))
	}
	return out
}
