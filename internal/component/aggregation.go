package component

import (
	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
	"github.com/curelab/autoclave/internal/format"
)

// aggregationComponent merges rule outcomes from every upstream task into
// one tally.
type aggregationComponent struct {
	deps Deps
}

func (c *aggregationComponent) Name() string { return "aggregation" }

func (c *aggregationComponent) Execute(wc *engine.Context, task config.Task) error {
	merger := format.NewMerger(c.deps.RulePrefixes)
	merged := merger.Merge(wc.Results())

	wc.SetResult(task.ID, merged)

	c.deps.Log.WithFields(map[string]any{
		"task":   task.ID,
		"total":  merged.Total,
		"passed": merged.Passed,
		"failed": merged.Failed,
	}).Debug("results aggregated")
	return nil
}
