package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// LoadStartup reads and validates the startup configuration file.
func LoadStartup(path string) (*Startup, error) {
	var cfg Startup
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.PlanCacheSize == 0 {
		cfg.PlanCacheSize = 2
	}
	if err := validatorInstance().Struct(&cfg); err != nil {
		return nil, autoclaveerrors.NewConfigError(path, err)
	}
	return &cfg, nil
}

// LoadWorkflow reads and validates a workflow definition file.
func LoadWorkflow(path string) (*Workflow, error) {
	var wf Workflow
	if err := decodeFile(path, &wf); err != nil {
		return nil, err
	}
	if err := ValidateWorkflow(&wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ValidateWorkflow checks structural validity of a workflow definition:
// struct tags, unique task ids, and known layer types. Dependency existence
// and cycles are the plan builder's concern.
func ValidateWorkflow(wf *Workflow) error {
	if err := validatorInstance().Struct(wf); err != nil {
		return autoclaveerrors.NewValidationError("workflow", err.Error(), err)
	}

	seen := make(map[string]struct{})
	for _, task := range wf.Tasks() {
		if _, dup := seen[task.ID]; dup {
			return autoclaveerrors.NewValidationError("tasks", fmt.Sprintf("duplicate task id %q", task.ID), nil)
		}
		seen[task.ID] = struct{}{}
	}
	return nil
}

// decodeFile reads a YAML document into out, wrapping failures as ConfigError.
func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return autoclaveerrors.NewConfigError(path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return autoclaveerrors.NewConfigError(path, err)
	}
	return nil
}
