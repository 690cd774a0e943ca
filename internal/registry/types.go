package registry

// TemplateKind discriminates the three template families.
type TemplateKind string

const (
	KindCalculation TemplateKind = "calculation"
	KindRule        TemplateKind = "rule"
	KindStage       TemplateKind = "stage"
)

// Template is a reusable definition not bound to physical sensors. Fields
// are populated according to Kind; placeholders use the {group} syntax.
type Template struct {
	Kind        TemplateKind `yaml:"-"`
	ID          string       `yaml:"id"`
	Type        string       `yaml:"type,omitempty"`
	Name        string       `yaml:"name,omitempty"`
	Description string       `yaml:"description,omitempty"`

	Formula   string `yaml:"formula,omitempty"`
	Condition string `yaml:"condition,omitempty"`
	Severity  string `yaml:"severity,omitempty"`
	Stage     string `yaml:"stage,omitempty"`

	Sensors    []string       `yaml:"sensors,omitempty"`
	Parameters map[string]any `yaml:"parameters,omitempty"`

	TimeRange        *TimeRange        `yaml:"time_range,omitempty"`
	TriggerRule      string            `yaml:"trigger_rule,omitempty"`
	TemperatureRange *TemperatureRange `yaml:"temperature_range,omitempty"`
	Algorithm        string            `yaml:"algorithm,omitempty"`
}

// SensorGroupDef declares a sensor group a process family expects.
type SensorGroupDef struct {
	ID       string `yaml:"id"`
	Required bool   `yaml:"required"`
	MinCount int    `yaml:"min_count,omitempty"`
	DataType string `yaml:"data_type,omitempty"`
}

// TimeRange bounds a stage in one of three units: datetime (ISO strings),
// unix (timestamp seconds), or minutes (relative to the first sample).
type TimeRange struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Unit  string `yaml:"unit,omitempty"`
}

// TemperatureRange is the convenience stage form: a band over one group.
type TemperatureRange struct {
	Group string  `yaml:"sensor_group"`
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// Specification is a named bundle of stages, rules, and calculations for
// one process family. Loaded documents are immutable for the process life.
type Specification struct {
	ID           string
	Metadata     map[string]any
	Rules        []RuleDef
	Stages       []StageDef
	Calculations []CalcDef

	// NonContiguousStages permits overlapping stage intervals.
	NonContiguousStages bool
}

// RuleDef is one rule entry: a template reference with overrides, or an
// inline condition.
type RuleDef struct {
	ID           string         `yaml:"id"`
	Template     string         `yaml:"template,omitempty"`
	Condition    string         `yaml:"condition,omitempty"`
	Severity     string         `yaml:"severity,omitempty"`
	Stage        string         `yaml:"stage,omitempty"`
	Parameters   map[string]any `yaml:"parameters,omitempty"`
	Calculations []string       `yaml:"calculations,omitempty"`
}

// StageDef is one stage entry with its identifier form.
type StageDef struct {
	ID               string            `yaml:"id"`
	Name             string            `yaml:"name,omitempty"`
	DisplayOrder     int               `yaml:"display_order,omitempty"`
	Type             string            `yaml:"type,omitempty"`
	Template         string            `yaml:"template,omitempty"`
	TimeRange        *TimeRange        `yaml:"time_range,omitempty"`
	TriggerRule      string            `yaml:"trigger_rule,omitempty"`
	TemperatureRange *TemperatureRange `yaml:"temperature_range,omitempty"`
	Algorithm        string            `yaml:"algorithm,omitempty"`
	Rules            []string          `yaml:"rules,omitempty"`
}

// CalcDef is one calculation entry: a direct sensor-group reference or a
// derived formula, possibly via template.
type CalcDef struct {
	ID         string         `yaml:"id,omitempty"`
	Template   string         `yaml:"template,omitempty"`
	Sensors    []string       `yaml:"sensors,omitempty"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
	Formula    string         `yaml:"formula,omitempty"`
	Type       string         `yaml:"type,omitempty"`
}

// Calculation types.
const (
	CalcTypeSensorGroup = "sensor_group"
	CalcTypeCalculated  = "calculated"
)

// CalculationByID finds a calculation entry in the specification.
func (s *Specification) CalculationByID(id string) (CalcDef, bool) {
	for _, calc := range s.Calculations {
		if calc.ID == id {
			return calc, true
		}
	}
	return CalcDef{}, false
}

// StageForRule searches the stage assignments for the given rule id.
func (s *Specification) StageForRule(ruleID string) (string, bool) {
	for _, stage := range s.Stages {
		for _, assigned := range stage.Rules {
			if assigned == ruleID {
				return stage.ID, true
			}
		}
	}
	return "", false
}
