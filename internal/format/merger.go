// Package format merges per-task rule outcomes and renders the final
// results document.
package format

import (
	"sort"
	"strings"

	"github.com/curelab/autoclave/internal/model"
)

// MergedResults is the aggregation of every rule outcome across tasks.
type MergedResults struct {
	Total  int
	Passed int
	Failed int
	Rules  map[string]model.RuleResult
}

// Merger collects rule outcomes out of the processor-results map. Keys
// matching any configured prefix are treated as rule-bearing entries.
type Merger struct {
	prefixes []string
}

// DefaultRulePrefixes is used when the startup config names none.
var DefaultRulePrefixes = []string{"rule", "rules", "compliance"}

// NewMerger creates a merger for the given key prefixes.
func NewMerger(prefixes []string) *Merger {
	if len(prefixes) == 0 {
		prefixes = DefaultRulePrefixes
	}
	return &Merger{prefixes: prefixes}
}

// Merge scans the processor results for rule outcomes and tallies them.
// Recognized value shapes are []model.RuleResult and a single RuleResult.
func (m *Merger) Merge(processorResults map[string]any) *MergedResults {
	merged := &MergedResults{Rules: make(map[string]model.RuleResult)}

	keys := make([]string, 0, len(processorResults))
	for key := range processorResults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !m.matches(key) {
			continue
		}
		switch v := processorResults[key].(type) {
		case []model.RuleResult:
			for _, r := range v {
				merged.add(r)
			}
		case model.RuleResult:
			merged.add(v)
		}
	}
	return merged
}

func (m *Merger) matches(key string) bool {
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (r *MergedResults) add(rule model.RuleResult) {
	r.Rules[rule.RuleID] = rule
	r.Total++
	if rule.Passed {
		r.Passed++
	} else {
		r.Failed++
	}
}

// AllPassed reports whether every merged rule passed.
func (r *MergedResults) AllPassed() bool {
	return r.Failed == 0
}
