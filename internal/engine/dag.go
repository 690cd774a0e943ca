package engine

import (
	"fmt"

	"github.com/curelab/autoclave/internal/config"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// node is a vertex in the execution DAG.
type node struct {
	id         string
	task       *config.Task
	order      int // declaration index, used for stable tie-breaking
	dependsOn  []*node
	dependents []*node
}

// graph holds the DAG structure and its topological levels.
type graph struct {
	nodes  map[string]*node
	seq    []*node
	levels [][]string
}

func newGraph() *graph {
	return &graph{nodes: make(map[string]*node)}
}

func (g *graph) addNode(task *config.Task, order int) error {
	if _, exists := g.nodes[task.ID]; exists {
		return autoclaveerrors.NewValidationError("tasks", fmt.Sprintf("duplicate task id %q", task.ID), nil)
	}
	n := &node{id: task.ID, task: task, order: order}
	g.nodes[task.ID] = n
	g.seq = append(g.seq, n)
	return nil
}

func (g *graph) addEdge(from, to string) error {
	source, ok := g.nodes[from]
	if !ok {
		return autoclaveerrors.NewValidationError("tasks", fmt.Sprintf("task %q depends on unknown task %q", to, from), nil)
	}
	target := g.nodes[to]
	source.dependents = append(source.dependents, target)
	target.dependsOn = append(target.dependsOn, source)
	return nil
}

// topologicalSort computes the DAG levels with Kahn's algorithm, breaking
// ties by declaration order.
func (g *graph) topologicalSort() error {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = 0
	}
	for _, n := range g.nodes {
		for _, dep := range n.dependents {
			indegree[dep.id]++
		}
	}

	var queue []*node
	for _, n := range g.seq {
		if indegree[n.id] == 0 {
			queue = append(queue, n)
		}
	}

	processed := 0
	var levels [][]string

	for len(queue) > 0 {
		currentLevel := queue
		sortByDeclaration(currentLevel)

		ids := make([]string, len(currentLevel))
		for i, n := range currentLevel {
			ids[i] = n.id
		}
		levels = append(levels, ids)

		var nextLevel []*node
		for _, n := range currentLevel {
			processed++
			for _, dependent := range n.dependents {
				indegree[dependent.id]--
				if indegree[dependent.id] == 0 {
					nextLevel = append(nextLevel, dependent)
				}
			}
		}
		queue = nextLevel
	}

	if processed != len(g.nodes) {
		return autoclaveerrors.NewValidationError("tasks", "cycle detected in task graph", nil)
	}

	g.levels = levels
	return nil
}

func sortByDeclaration(nodes []*node) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j].order < nodes[j-1].order; j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

// buildGraph constructs the execution graph from flattened workflow tasks.
func buildGraph(tasks []config.Task) (*graph, error) {
	g := newGraph()

	for i := range tasks {
		task := &tasks[i]
		if _, ok := config.KnownLayerTypes[task.Layer]; !ok {
			return nil, autoclaveerrors.NewValidationError("tasks", fmt.Sprintf("task %q has unknown layer type %q", task.ID, task.Layer), nil)
		}
		if err := g.addNode(task, i); err != nil {
			return nil, err
		}
	}

	for _, task := range tasks {
		for _, dependency := range task.DependsOn {
			if _, ok := g.nodes[dependency]; !ok {
				return nil, autoclaveerrors.NewValidationError("tasks", fmt.Sprintf("task %q depends on unknown task %q", task.ID, dependency), nil)
			}
			if err := g.addEdge(dependency, task.ID); err != nil {
				return nil, err
			}
		}
	}

	if err := g.topologicalSort(); err != nil {
		return nil, err
	}
	return g, nil
}
