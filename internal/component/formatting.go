package component

import (
	"fmt"

	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
	"github.com/curelab/autoclave/internal/format"
)

// formattingComponent renders the merged results into the standard document
// form and publishes it as the run's formatted output.
type formattingComponent struct {
	deps Deps
}

func (c *formattingComponent) Name() string { return "formatting" }

func (c *formattingComponent) Execute(wc *engine.Context, task config.Task) error {
	merged := findMerged(wc, task)
	if merged == nil {
		return fmt.Errorf("formatting task %q found no aggregated results", task.ID)
	}

	formatter := format.NewFormatter(task.Algorithm)
	doc := formatter.Format(merged, format.Timing{
		RequestTime:   wc.Request.CalculationDate,
		ExecutionTime: stringMetadata(wc, "execution_time"),
	})

	wc.SetFormattedResults(doc)
	wc.SetResult(task.ID, doc)

	c.deps.Log.WithFields(map[string]any{
		"task":   task.ID,
		"status": doc.AnalysisSummary.Status,
	}).Debug("results formatted")
	return nil
}

// findMerged prefers the task's declared dependencies, then any merged
// entry in the processor results.
func findMerged(wc *engine.Context, task config.Task) *format.MergedResults {
	for _, dep := range task.DependsOn {
		if value, ok := wc.Result(dep); ok {
			if merged, ok := value.(*format.MergedResults); ok {
				return merged
			}
		}
	}
	for _, value := range wc.Results() {
		if merged, ok := value.(*format.MergedResults); ok {
			return merged
		}
	}
	return nil
}

func stringMetadata(wc *engine.Context, key string) string {
	if value, ok := wc.Metadata()[key]; ok {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}
