package component

import (
	"context"
	"fmt"

	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
	"github.com/curelab/autoclave/internal/source"
)

// sourceComponent ingests the run's dataset. The data path comes from the
// request, overridable per task; the adapter is CSV unless a task parameter
// selects otherwise.
type sourceComponent struct {
	deps Deps
}

func (c *sourceComponent) Name() string { return "source" }

func (c *sourceComponent) Execute(wc *engine.Context, task config.Task) error {
	path := stringParam(task, "path", wc.Request.DataPath)
	if path == "" {
		return fmt.Errorf("source task %q has no data path", task.ID)
	}
	tsColumn := stringParam(task, "timestamp_column", "timestamp")

	adapter := source.NewCSVSource(path, tsColumn)
	raw, meta, err := adapter.Read(context.Background())
	if err != nil {
		return err
	}

	wc.SetRawData(raw, meta)
	wc.SetResult(task.ID, meta)

	c.deps.Log.WithFields(map[string]any{
		"task":    task.ID,
		"rows":    meta.RowCount,
		"columns": meta.ColumnCount,
	}).Debug("dataset loaded")
	return nil
}
