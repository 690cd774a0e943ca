package component

import (
	"fmt"

	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
)

// groupingComponent validates the request's sensor grouping against the
// loaded dataset and publishes it to the context.
type groupingComponent struct {
	deps Deps
}

func (c *groupingComponent) Name() string { return "grouping" }

func (c *groupingComponent) Execute(wc *engine.Context, task config.Task) error {
	raw := wc.RawData()
	if raw == nil {
		return fmt.Errorf("grouping task %q ran before source ingestion", task.ID)
	}

	grouping := wc.Request.SensorGrouping
	if err := grouping.Validate(raw); err != nil {
		return err
	}

	wc.SetSensorGrouping(grouping)
	wc.SetResult(task.ID, grouping.GroupNames())

	c.deps.Log.WithFields(map[string]any{
		"task":   task.ID,
		"groups": len(grouping),
	}).Debug("sensor grouping validated")
	return nil
}
