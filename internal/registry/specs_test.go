package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curelab/autoclave/internal/logger"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

func writeSpecDir(t *testing.T, root, dir string, files map[string]string) {
	t.Helper()
	full := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(full, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(full, name), []byte(content), 0o644))
	}
}

const specRules = `
version: "1"
specification_id: cp_standard
rules:
  - id: max_pressure
    condition: "MAX(bag_pressure) <= -74"
    severity: critical
    stage: pre_ventilation
    calculations: [bag_pressure]
`

const specStages = `
version: "1"
specification_id: cp_standard
stages:
  - id: curing
    display_order: 2
    type: time_range
  - id: heating
    display_order: 1
    type: time_range
    rules: [max_pressure]
`

const specCalcs = `
version: "1"
specification_id: cp_standard
calculations:
  - id: bag_pressure
    type: sensor_group
    sensors: ["{pressure_group}"]
`

func TestSpecRegistrySelfDescribingDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSpecDir(t, root, "cp_standard", map[string]string{
		"rules.yaml":        specRules,
		"stages.yaml":       specStages,
		"calculations.yaml": specCalcs,
		"specification.yaml": `
material: carbon_prepreg
non_contiguous_stages: true
`,
	})

	reg, err := NewSpecRegistry(root, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"cp_standard"}, reg.ListSpecifications())

	spec, err := reg.LoadSpecification("cp_standard")
	require.NoError(t, err)
	assert.True(t, spec.NonContiguousStages)
	require.Len(t, spec.Rules, 1)
	assert.Equal(t, "max_pressure", spec.Rules[0].ID)

	// Stages come back ordered by display_order.
	require.Len(t, spec.Stages, 2)
	assert.Equal(t, "heating", spec.Stages[0].ID)
	assert.Equal(t, "curing", spec.Stages[1].ID)

	calc, ok := spec.CalculationByID("bag_pressure")
	require.True(t, ok)
	assert.Equal(t, CalcTypeSensorGroup, calc.Type)

	stageID, ok := spec.StageForRule("max_pressure")
	require.True(t, ok)
	assert.Equal(t, "heating", stageID)
}

func TestSpecRegistryIndexIsAuthoritative(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.yaml"), []byte(`
specifications:
  cp_standard:
    dir: standard_v2
    materials: [carbon_prepreg]
`), 0o644))
	writeSpecDir(t, root, "standard_v2", map[string]string{"rules.yaml": specRules})
	writeSpecDir(t, root, "unlisted", map[string]string{"rules.yaml": specRules})

	reg, err := NewSpecRegistry(root, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"cp_standard"}, reg.ListSpecifications())

	spec, err := reg.LoadSpecification("cp_standard")
	require.NoError(t, err)
	assert.Len(t, spec.Rules, 1)

	_, err = reg.LoadSpecification("unlisted")
	require.Error(t, err)
}

func TestSpecRegistryUnknownID(t *testing.T) {
	t.Parallel()

	reg, err := NewSpecRegistry(t.TempDir(), logger.Nop())
	require.NoError(t, err)

	_, err = reg.LoadSpecification("ghost")
	require.Error(t, err)

	var notFound *autoclaveerrors.SpecNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.ID)
}

func TestSpecRegistryCachesLoads(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSpecDir(t, root, "cp_standard", map[string]string{"rules.yaml": specRules})

	reg, err := NewSpecRegistry(root, logger.Nop())
	require.NoError(t, err)

	first, err := reg.LoadSpecification("cp_standard")
	require.NoError(t, err)
	second, err := reg.LoadSpecification("cp_standard")
	require.NoError(t, err)
	assert.Same(t, first, second)
}
