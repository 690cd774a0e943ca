package component

import (
	"fmt"

	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
	"github.com/curelab/autoclave/internal/stage"
)

// stageComponent detects the stage timeline for the run.
type stageComponent struct {
	deps Deps
}

func (c *stageComponent) Name() string { return "stage_detection" }

func (c *stageComponent) Execute(wc *engine.Context, task config.Task) error {
	raw := wc.RawData()
	bound := wc.BoundSpec()
	if raw == nil || bound == nil {
		return fmt.Errorf("stage detection task %q ran before ingestion or binding", task.ID)
	}

	detector := stage.NewDetector(c.deps.Evaluator, c.deps.Log)
	timeline, warnings, err := detector.Detect(raw, bound)
	if err != nil {
		return err
	}
	for _, warning := range warnings {
		c.deps.Log.WithFields(map[string]any{"task": task.ID}).Warn(warning)
	}

	wc.SetStageTimeline(timeline)
	wc.SetResult(task.ID, timeline)

	c.deps.Log.WithFields(map[string]any{
		"task":   task.ID,
		"stages": len(timeline),
	}).Debug("stage timeline detected")
	return nil
}
