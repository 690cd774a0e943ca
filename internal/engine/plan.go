package engine

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/curelab/autoclave/internal/config"
)

// ExecutionPlan is the topologically-ordered task list produced from a
// workflow definition. Plans are immutable once built and safe to reuse
// across runs.
type ExecutionPlan struct {
	WorkflowName string
	Tasks        map[string]config.Task
	Order        []string
	Levels       [][]string
}

// BuildPlan validates the workflow's task graph and produces its plan.
func BuildPlan(wf *config.Workflow) (*ExecutionPlan, error) {
	tasks := wf.Tasks()
	g, err := buildGraph(tasks)
	if err != nil {
		return nil, err
	}

	plan := &ExecutionPlan{
		WorkflowName: wf.Name,
		Tasks:        make(map[string]config.Task, len(tasks)),
		Levels:       g.levels,
	}
	for _, task := range tasks {
		plan.Tasks[task.ID] = task
	}
	for _, level := range g.levels {
		plan.Order = append(plan.Order, level...)
	}
	return plan, nil
}

// FingerprintTasks hashes task identities, dependencies, and declared
// parameters straight from a workflow definition, so a plan's fingerprint is
// known without building the plan. Runtime inputs never contribute; identical
// definitions hash to the same value.
func FingerprintTasks(tasks []config.Task) uint64 {
	h := fnv.New64a()

	sorted := make([]config.Task, len(tasks))
	copy(sorted, tasks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, task := range sorted {
		fmt.Fprintf(h, "task:%s|%s|%s|%s;", task.ID, task.Layer, task.Implementation, task.Algorithm)
		for _, dep := range task.DependsOn {
			fmt.Fprintf(h, "dep:%s;", dep)
		}
		writeCanonical(h, task.Parameters)
	}
	return h.Sum64()
}

// Fingerprint hashes the plan's defining tasks. It always matches
// FingerprintTasks over the definition the plan was built from.
func (p *ExecutionPlan) Fingerprint() uint64 {
	tasks := make([]config.Task, 0, len(p.Tasks))
	for _, task := range p.Tasks {
		tasks = append(tasks, task)
	}
	return FingerprintTasks(tasks)
}

func writeCanonical(h interface{ Write([]byte) (int, error) }, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(h, "%s=", key)
			writeCanonical(h, v[key])
			fmt.Fprint(h, ";")
		}
	case []any:
		for _, elem := range v {
			writeCanonical(h, elem)
			fmt.Fprint(h, ",")
		}
	default:
		fmt.Fprintf(h, "%T:%v", value, value)
	}
}
