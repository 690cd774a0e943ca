package engine

import (
	stderrors "errors"
	"time"

	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/logger"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// Component is one executable analysis step. Implementations read their
// inputs from the run context and write their outputs back to it.
type Component interface {
	// Name identifies the component in logs.
	Name() string
	// Execute runs the step. A non-nil error aborts the run.
	Execute(ctx *Context, task config.Task) error
}

// ComponentResolver maps a task's layer type and implementation name to a
// Component. Unknown pairs return an error.
type ComponentResolver interface {
	Resolve(layer, implementation string) (Component, error)
}

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// TaskResult records the outcome of one task.
type TaskResult struct {
	TaskID   string
	Layer    string
	Status   RunStatus
	Err      error
	Duration time.Duration
}

// Result is the outcome of a whole run.
type Result struct {
	RunID         string
	Status        RunStatus
	TaskResults   []TaskResult
	Err           error
	ExecutionTime time.Duration
}

// Orchestrator turns workflow definitions into plans, reuses plans through
// the cache, and drives task execution in topological order.
type Orchestrator struct {
	resolver ComponentResolver
	cache    *PlanCache
	log      *logger.Logger
}

// NewOrchestrator creates an orchestrator around the given resolver and cache.
func NewOrchestrator(resolver ComponentResolver, cache *PlanCache, log *logger.Logger) *Orchestrator {
	if cache == nil {
		cache = NewPlanCache(DefaultPlanCacheSize)
	}
	return &Orchestrator{resolver: resolver, cache: cache, log: log}
}

// Plan returns the execution plan for the workflow. The definition is
// fingerprinted before any graph work, so a cache hit skips plan
// construction entirely; identical definitions share one plan.
func (o *Orchestrator) Plan(wf *config.Workflow) (*ExecutionPlan, error) {
	fingerprint := FingerprintTasks(wf.Tasks())
	if cached, ok := o.cache.Get(wf.Name, fingerprint); ok {
		o.log.WithFields(map[string]any{"workflow": wf.Name}).Debug("plan cache hit")
		return cached, nil
	}
	fresh, err := BuildPlan(wf)
	if err != nil {
		return nil, err
	}
	o.cache.Put(wf.Name, fingerprint, fresh)
	o.log.WithFields(map[string]any{"workflow": wf.Name, "tasks": len(fresh.Tasks)}).Debug("plan cached")
	return fresh, nil
}

// Run executes the workflow for one request. Tasks run sequentially in plan
// order; the first failure stops the run, and the cancel channel is checked
// between tasks.
func (o *Orchestrator) Run(cancel <-chan struct{}, wf *config.Workflow, req Request) (*Result, *Context) {
	started := time.Now()

	wc := NewContext(req)
	result := &Result{RunID: wc.RunID, Status: StatusCompleted}

	plan, err := o.Plan(wf)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		result.ExecutionTime = time.Since(started)
		return result, wc
	}
	wc.SetPlan(plan)
	wc.SetMetadata("workflow", wf.Name)
	wc.SetMetadata("specification_id", req.SpecificationID)
	wc.SetMetadata("process_id", req.ProcessID)
	wc.SetMetadata("series_id", req.SeriesID)
	wc.SetMetadata("calculation_date", req.CalculationDate)
	wc.SetMetadata("execution_time", started.UTC().Format(time.RFC3339))

	runLog := o.log.WithFields(map[string]any{"run_id": wc.RunID, "workflow": wf.Name})
	runLog.Info("run started")

	for _, taskID := range plan.Order {
		select {
		case <-cancel:
			result.Status = StatusCancelled
			result.Err = autoclaveerrors.NewCancelledError(taskID)
			result.ExecutionTime = time.Since(started)
			runLog.Warn("run cancelled")
			return result, wc
		default:
		}

		task := plan.Tasks[taskID]
		taskResult := o.runTask(wc, task, runLog)
		result.TaskResults = append(result.TaskResults, taskResult)

		if taskResult.Err != nil {
			result.Status = StatusFailed
			result.Err = autoclaveerrors.NewWorkflowError(taskID, taskResult.Err)
			result.ExecutionTime = time.Since(started)
			runLog.Error(taskResult.Err, "run failed")
			return result, wc
		}
	}

	result.ExecutionTime = time.Since(started)
	runLog.WithFields(map[string]any{"duration": result.ExecutionTime.String()}).Info("run completed")
	return result, wc
}

func (o *Orchestrator) runTask(wc *Context, task config.Task, runLog *logger.Logger) TaskResult {
	started := time.Now()
	taskResult := TaskResult{TaskID: task.ID, Layer: task.Layer, Status: StatusCompleted}

	component, err := o.resolver.Resolve(task.Layer, task.Implementation)
	if err != nil {
		taskResult.Status = StatusFailed
		taskResult.Err = err
		taskResult.Duration = time.Since(started)
		return taskResult
	}

	taskLog := runLog.WithFields(map[string]any{"task": task.ID, "layer": task.Layer})
	taskLog.Debug("task started")

	if err := component.Execute(wc, task); err != nil {
		taskResult.Status = StatusFailed
		taskResult.Err = err
		taskResult.Duration = time.Since(started)
		return taskResult
	}

	taskResult.Duration = time.Since(started)
	taskLog.WithFields(map[string]any{"duration": taskResult.Duration.String()}).Debug("task completed")
	return taskResult
}

// CacheStats exposes the plan cache counters.
func (o *Orchestrator) CacheStats() (hits, misses int64) {
	return o.cache.Stats()
}

// ExitCode classifies a run outcome for the CLI: 0 success, 1 validation
// failure, 2 configuration failure, 3 runtime failure.
func ExitCode(result *Result) int {
	if result == nil {
		return 0
	}
	return ClassifyError(result.Err)
}

// ClassifyError maps an error to the CLI exit code convention.
func ClassifyError(err error) int {
	if err == nil {
		return 0
	}

	var validationErr *autoclaveerrors.ValidationError
	if stderrors.As(err, &validationErr) {
		return 1
	}

	var configErr *autoclaveerrors.ConfigError
	var specErr *autoclaveerrors.SpecNotFoundError
	var templateErr *autoclaveerrors.UnresolvedTemplateError
	var danglingErr *autoclaveerrors.DanglingReferenceError
	if stderrors.As(err, &configErr) ||
		stderrors.As(err, &specErr) ||
		stderrors.As(err, &templateErr) ||
		stderrors.As(err, &danglingErr) {
		return 2
	}

	return 3
}
