// Package component adapts each analysis layer to the engine's Component
// contract and registers implementations by (layer, implementation) pair.
package component

import (
	"fmt"
	"sync"

	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
	"github.com/curelab/autoclave/internal/expr"
	"github.com/curelab/autoclave/internal/logger"
	"github.com/curelab/autoclave/internal/registry"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// Deps carries the shared collaborators handed to every component.
type Deps struct {
	Templates    *registry.TemplateRegistry
	Specs        *registry.SpecRegistry
	Evaluator    *expr.Evaluator
	Log          *logger.Logger
	RulePrefixes []string
}

// Factory resolves components for the orchestrator. It satisfies
// engine.ComponentResolver.
type Factory struct {
	mu         sync.RWMutex
	components map[string]engine.Component
}

// NewFactory creates a factory with the default implementation of every
// layer registered.
func NewFactory(deps Deps) *Factory {
	f := &Factory{components: make(map[string]engine.Component)}

	f.Register(config.LayerSource, "default", &sourceComponent{deps: deps})
	f.Register(config.LayerGrouping, "default", &groupingComponent{deps: deps})
	f.Register(config.LayerBinding, "default", &bindingComponent{deps: deps})
	f.Register(config.LayerStageDetection, "default", &stageComponent{deps: deps})
	f.Register(config.LayerRuleEvaluation, "default", &ruleComponent{deps: deps})
	f.Register(config.LayerAggregation, "default", &aggregationComponent{deps: deps})
	f.Register(config.LayerFormatting, "default", &formattingComponent{deps: deps})
	f.Register(config.LayerOutput, "default", &outputComponent{deps: deps})

	return f
}

// Register installs a component under the (layer, implementation) key,
// replacing any previous registration.
func (f *Factory) Register(layer, implementation string, c engine.Component) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.components[componentKey(layer, implementation)] = c
}

// Resolve returns the component registered for the pair.
func (f *Factory) Resolve(layer, implementation string) (engine.Component, error) {
	if implementation == "" {
		implementation = "default"
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	c, ok := f.components[componentKey(layer, implementation)]
	if !ok {
		return nil, autoclaveerrors.NewValidationError("tasks",
			fmt.Sprintf("no %s component registered for implementation %q", layer, implementation), nil)
	}
	return c, nil
}

func componentKey(layer, implementation string) string {
	return layer + "/" + implementation
}

// stringParam reads a string task parameter, with a fallback.
func stringParam(task config.Task, key, fallback string) string {
	if v, ok := task.Parameters[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
