package component

import (
	"fmt"

	"github.com/curelab/autoclave/internal/binder"
	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
)

// bindingComponent resolves the request's specification and binds it to the
// run's sensor grouping. A missing group fails the run here, before any
// evaluation happens.
type bindingComponent struct {
	deps Deps
}

func (c *bindingComponent) Name() string { return "binding" }

func (c *bindingComponent) Execute(wc *engine.Context, task config.Task) error {
	specID := stringParam(task, "specification_id", wc.Request.SpecificationID)
	if specID == "" {
		return fmt.Errorf("binding task %q has no specification id", task.ID)
	}

	spec, err := c.deps.Specs.LoadSpecification(specID)
	if err != nil {
		return err
	}

	grouping := wc.SensorGrouping()
	if grouping == nil {
		grouping = wc.Request.SensorGrouping
	}

	bound, err := binder.Bind(spec, c.deps.Templates, grouping)
	if err != nil {
		return err
	}

	wc.SetBoundSpec(bound)
	wc.SetResult(task.ID, bound.SpecID)

	c.deps.Log.WithFields(map[string]any{
		"task":         task.ID,
		"spec":         bound.SpecID,
		"rules":        len(bound.Rules),
		"calculations": len(bound.Calculations),
		"stages":       len(bound.Stages),
	}).Debug("specification bound")
	return nil
}
