package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curelab/autoclave/internal/binder"
	"github.com/curelab/autoclave/internal/model"
)

// Request carries the caller-supplied inputs of one run.
type Request struct {
	WorkflowID      string
	SpecificationID string
	SensorGrouping  model.SensorGrouping
	ProcessID       string
	SeriesID        string
	CalculationDate string
	DataPath        string
}

// Context is the shared state of one run, owned by the orchestrator and
// passed to every task. Each task writes a disjoint set of keys; writes are
// append-or-replace, never partial. A mutex keeps the context safe should
// independent tasks ever run in parallel.
type Context struct {
	RunID   string
	Request Request

	mu               sync.RWMutex
	rawData          *model.RawData
	metadata         map[string]any
	sensorGrouping   model.SensorGrouping
	stageTimeline    model.StageTimeline
	boundSpec        *binder.BoundSpecification
	plan             *ExecutionPlan
	processorResults map[string]any
	formattedResults any
	lastUpdated      time.Time
	initialized      bool
}

// NewContext creates the context for one run.
func NewContext(req Request) *Context {
	return &Context{
		RunID:            uuid.NewString(),
		Request:          req,
		metadata:         make(map[string]any),
		processorResults: make(map[string]any),
	}
}

func (c *Context) touch() {
	c.lastUpdated = time.Now()
}

// SetRawData stores the ingested dataset and flips the initialized flag.
func (c *Context) SetRawData(raw *model.RawData, meta model.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rawData = raw
	c.metadata["row_count"] = meta.RowCount
	c.metadata["column_count"] = meta.ColumnCount
	c.metadata["columns"] = meta.Columns
	c.metadata["timestamp_column"] = meta.TimestampColumn
	c.metadata["source"] = meta.Source
	c.initialized = true
	c.touch()
}

// RawData returns the ingested dataset, or nil before ingestion.
func (c *Context) RawData() *model.RawData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rawData
}

// IsInitialized reports whether source ingestion has happened.
func (c *Context) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// SetMetadata stores one metadata entry.
func (c *Context) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
	c.touch()
}

// Metadata returns a copy of the metadata map.
func (c *Context) Metadata() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// SetSensorGrouping stores the validated grouping.
func (c *Context) SetSensorGrouping(grouping model.SensorGrouping) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensorGrouping = grouping
	c.touch()
}

// SensorGrouping returns the run's grouping.
func (c *Context) SensorGrouping() model.SensorGrouping {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sensorGrouping
}

// SetStageTimeline stores the detected stage intervals.
func (c *Context) SetStageTimeline(timeline model.StageTimeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stageTimeline = timeline
	c.touch()
}

// StageTimeline returns the detected stage intervals.
func (c *Context) StageTimeline() model.StageTimeline {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stageTimeline
}

// SetBoundSpec stores the run's bound specification.
func (c *Context) SetBoundSpec(bound *binder.BoundSpecification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundSpec = bound
	c.touch()
}

// BoundSpec returns the run's bound specification, or nil before binding.
func (c *Context) BoundSpec() *binder.BoundSpecification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.boundSpec
}

// SetPlan records the plan driving this run.
func (c *Context) SetPlan(plan *ExecutionPlan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plan = plan
	c.touch()
}

// Plan returns the plan driving this run.
func (c *Context) Plan() *ExecutionPlan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.plan
}

// SetResult stores a task's output under its task id.
func (c *Context) SetResult(taskID string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processorResults[taskID] = value
	c.touch()
}

// Result returns a task's stored output.
func (c *Context) Result(taskID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.processorResults[taskID]
	return value, ok
}

// Results returns a copy of the processor-results map.
func (c *Context) Results() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.processorResults))
	for k, v := range c.processorResults {
		out[k] = v
	}
	return out
}

// SetFormattedResults stores the final formatted document.
func (c *Context) SetFormattedResults(doc any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formattedResults = doc
	c.touch()
}

// FormattedResults returns the final formatted document.
func (c *Context) FormattedResults() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.formattedResults
}

// LastUpdated returns the time of the most recent context write.
func (c *Context) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}
