package config

import (
	"gopkg.in/yaml.v3"
)

// Startup holds the process-level parameters loaded once at boot.
type Startup struct {
	TemplatesRoot      string  `yaml:"templates_root" validate:"required"`
	SpecificationsRoot string  `yaml:"specifications_root" validate:"required"`
	WorkflowsRoot      string  `yaml:"workflows_root,omitempty"`
	PlanCacheSize      int     `yaml:"plan_cache_size,omitempty" validate:"omitempty,min=1,max=64"`
	Logging            Logging `yaml:"logging,omitempty"`

	// CompositeComparators lists operator names treated as comparison-bearing
	// during result analysis, beyond the built-in comparison set.
	CompositeComparators []string `yaml:"composite_comparators,omitempty"`

	// RuleResultPrefixes identifies processor-result keys holding rule
	// outcomes during aggregation.
	RuleResultPrefixes []string `yaml:"rule_result_prefixes,omitempty"`

	Adapters Adapters `yaml:"adapters,omitempty"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty,omitempty"`
}

// Adapters carries per-service timeouts handed to external source and sink
// adapters. The core itself never applies them.
type Adapters struct {
	SourceTimeout int `yaml:"source_timeout,omitempty" validate:"omitempty,min=1"`
	SinkTimeout   int `yaml:"sink_timeout,omitempty" validate:"omitempty,min=1"`
}

// Workflow is a declarative task graph definition: an ordered list of layers,
// each contributing tasks.
type Workflow struct {
	Version string  `yaml:"version,omitempty"`
	Name    string  `yaml:"name" validate:"required,min=1,max=100"`
	Layers  []Layer `yaml:"layers" validate:"required,min=1,dive"`
}

// Layer groups tasks of one layer type.
type Layer struct {
	Type  string `yaml:"type" validate:"required,layer_type"`
	Tasks []Task `yaml:"tasks" validate:"required,min=1,dive"`
}

// Task describes one unit of work in the DAG.
type Task struct {
	ID             string         `yaml:"id" validate:"required,task_id"`
	Layer          string         `yaml:"-"`
	Implementation string         `yaml:"implementation,omitempty"`
	Algorithm      string         `yaml:"algorithm,omitempty"`
	DependsOn      []string       `yaml:"depends_on,omitempty"`
	Parameters     map[string]any `yaml:"parameters,omitempty"`
}

// UnmarshalYAML applies task defaults.
func (t *Task) UnmarshalYAML(value *yaml.Node) error {
	type rawTask Task
	var tmp rawTask
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*t = Task(tmp)
	if t.Implementation == "" {
		t.Implementation = "default"
	}
	return nil
}

// Tasks flattens the layer structure into declaration order, stamping each
// task with its layer type.
func (w *Workflow) Tasks() []Task {
	var out []Task
	for _, layer := range w.Layers {
		for _, task := range layer.Tasks {
			task.Layer = layer.Type
			out = append(out, task)
		}
	}
	return out
}

// Layer types the component factory understands.
const (
	LayerSource         = "source"
	LayerGrouping       = "grouping"
	LayerStageDetection = "stage_detection"
	LayerBinding        = "binding"
	LayerRuleEvaluation = "rule_evaluation"
	LayerAggregation    = "aggregation"
	LayerFormatting     = "formatting"
	LayerOutput         = "output"
)

// KnownLayerTypes enumerates the valid layer type names.
var KnownLayerTypes = map[string]struct{}{
	LayerSource:         {},
	LayerGrouping:       {},
	LayerStageDetection: {},
	LayerBinding:        {},
	LayerRuleEvaluation: {},
	LayerAggregation:    {},
	LayerFormatting:     {},
	LayerOutput:         {},
}
