package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curelab/autoclave/internal/model"
)

func TestMergeCollectsRuleResults(t *testing.T) {
	t.Parallel()

	processorResults := map[string]any{
		"rules_main": []model.RuleResult{
			{RuleID: "max_pressure", Passed: true},
			{RuleID: "min_temp", Passed: false},
		},
		"rules_extra": []model.RuleResult{
			{RuleID: "heating_rate", Passed: true},
		},
		"load_data": "not rule shaped",
	}

	merged := NewMerger(nil).Merge(processorResults)
	assert.Equal(t, 3, merged.Total)
	assert.Equal(t, 2, merged.Passed)
	assert.Equal(t, 1, merged.Failed)
	assert.False(t, merged.AllPassed())

	rule, ok := merged.Rules["max_pressure"]
	require.True(t, ok)
	assert.True(t, rule.Passed)
}

func TestMergeSingleResultShape(t *testing.T) {
	t.Parallel()

	merged := NewMerger(nil).Merge(map[string]any{
		"compliance_check": model.RuleResult{RuleID: "only", Passed: true},
	})
	assert.Equal(t, 1, merged.Total)
	assert.True(t, merged.AllPassed())
}

func TestMergeIgnoresUnmatchedKeys(t *testing.T) {
	t.Parallel()

	merged := NewMerger([]string{"compliance"}).Merge(map[string]any{
		"rules_main": []model.RuleResult{{RuleID: "skipped", Passed: false}},
		"compliance": []model.RuleResult{{RuleID: "kept", Passed: true}},
	})

	assert.Equal(t, 1, merged.Total)
	_, ok := merged.Rules["skipped"]
	assert.False(t, ok)
	_, ok = merged.Rules["kept"]
	assert.True(t, ok)
}

func TestMergeEmptyInput(t *testing.T) {
	t.Parallel()

	merged := NewMerger(nil).Merge(map[string]any{})
	assert.Equal(t, 0, merged.Total)
	assert.True(t, merged.AllPassed())
	assert.Empty(t, merged.Rules)
}

func TestMergeLaterKeyWinsOnDuplicateRuleID(t *testing.T) {
	t.Parallel()

	// Keys are scanned in sorted order, so rules_b overwrites rules_a.
	merged := NewMerger(nil).Merge(map[string]any{
		"rules_b": []model.RuleResult{{RuleID: "shared", Passed: true}},
		"rules_a": []model.RuleResult{{RuleID: "shared", Passed: false}},
	})

	rule := merged.Rules["shared"]
	assert.True(t, rule.Passed)
}
