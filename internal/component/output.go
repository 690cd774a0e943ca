package component

import (
	"context"
	"fmt"

	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
	"github.com/curelab/autoclave/internal/sink"
)

// outputComponent persists the formatted document through a sink adapter.
// The destination path template comes from the task parameters.
type outputComponent struct {
	deps Deps
}

func (c *outputComponent) Name() string { return "output" }

func (c *outputComponent) Execute(wc *engine.Context, task config.Task) error {
	doc := wc.FormattedResults()
	if doc == nil {
		return fmt.Errorf("output task %q ran before formatting", task.ID)
	}

	pathTemplate := stringParam(task, "path", "results/{process_id}/{series_id}/{calculation_date}.json")
	adapter := sink.NewFileSink(pathTemplate, map[string]string{
		"process_id":       wc.Request.ProcessID,
		"series_id":        wc.Request.SeriesID,
		"calculation_date": wc.Request.CalculationDate,
		"run_id":           wc.RunID,
	})

	written, err := adapter.Write(context.Background(), doc)
	if err != nil {
		return err
	}

	wc.SetResult(task.ID, written)

	c.deps.Log.WithFields(map[string]any{
		"task": task.ID,
		"path": written,
	}).Info("results written")
	return nil
}
