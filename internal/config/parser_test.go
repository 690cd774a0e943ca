package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStartup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "startup_config.yaml", `
templates_root: config/templates
specifications_root: config/specifications
plan_cache_size: 4
logging:
  level: debug
  pretty: true
composite_comparators: [THRESHOLD_BAND]
rule_result_prefixes: [rule]
adapters:
  source_timeout: 30
  sink_timeout: 10
`)

	cfg, err := LoadStartup(path)
	require.NoError(t, err)

	assert.Equal(t, "config/templates", cfg.TemplatesRoot)
	assert.Equal(t, "config/specifications", cfg.SpecificationsRoot)
	assert.Equal(t, 4, cfg.PlanCacheSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, []string{"THRESHOLD_BAND"}, cfg.CompositeComparators)
	assert.Equal(t, 30, cfg.Adapters.SourceTimeout)
}

func TestLoadStartupDefaultsCacheSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "startup_config.yaml", `
templates_root: t
specifications_root: s
`)

	cfg, err := LoadStartup(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.PlanCacheSize)
}

func TestLoadStartupRejectsMissingRoots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "startup_config.yaml", `
templates_root: t
`)

	_, err := LoadStartup(path)
	require.Error(t, err)

	var configErr *autoclaveerrors.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestLoadStartupMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadStartup(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	var configErr *autoclaveerrors.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

const sampleWorkflow = `
version: "1"
name: autoclave_compliance
layers:
  - type: source
    tasks:
      - id: load_data
  - type: grouping
    tasks:
      - id: validate_groups
        depends_on: [load_data]
  - type: binding
    tasks:
      - id: bind_spec
        depends_on: [validate_groups]
  - type: rule_evaluation
    tasks:
      - id: rules_main
        depends_on: [bind_spec]
        parameters:
          threshold: -74
`

func TestLoadWorkflow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "workflow.yaml", sampleWorkflow)

	wf, err := LoadWorkflow(path)
	require.NoError(t, err)

	assert.Equal(t, "autoclave_compliance", wf.Name)
	require.Len(t, wf.Layers, 4)

	tasks := wf.Tasks()
	require.Len(t, tasks, 4)
	assert.Equal(t, "source", tasks[0].Layer)
	assert.Equal(t, "default", tasks[0].Implementation)
	assert.Equal(t, []string{"bind_spec"}, tasks[3].DependsOn)
	assert.Equal(t, -74, tasks[3].Parameters["threshold"])
}

func TestValidateWorkflowRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	wf := &Workflow{
		Name: "dup",
		Layers: []Layer{
			{Type: LayerSource, Tasks: []Task{{ID: "a", Implementation: "default"}}},
			{Type: LayerGrouping, Tasks: []Task{{ID: "a", Implementation: "default"}}},
		},
	}

	err := ValidateWorkflow(wf)
	require.Error(t, err)

	var validationErr *autoclaveerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "duplicate task id")
}

func TestValidateWorkflowRejectsBadLayerType(t *testing.T) {
	t.Parallel()

	wf := &Workflow{
		Name: "bad",
		Layers: []Layer{
			{Type: "telemetry", Tasks: []Task{{ID: "a", Implementation: "default"}}},
		},
	}

	err := ValidateWorkflow(wf)
	require.Error(t, err)

	var validationErr *autoclaveerrors.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestValidateWorkflowRejectsBadTaskID(t *testing.T) {
	t.Parallel()

	wf := &Workflow{
		Name: "bad",
		Layers: []Layer{
			{Type: LayerSource, Tasks: []Task{{ID: "Load Data", Implementation: "default"}}},
		},
	}

	err := ValidateWorkflow(wf)
	require.Error(t, err)
}
