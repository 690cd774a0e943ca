package main

import (
	"github.com/curelab/autoclave/internal/component"
	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
	"github.com/curelab/autoclave/internal/expr"
	"github.com/curelab/autoclave/internal/logger"
	"github.com/curelab/autoclave/internal/registry"
)

// app bundles the process-lifetime collaborators built from the startup
// configuration.
type app struct {
	startup   *config.Startup
	log       *logger.Logger
	templates *registry.TemplateRegistry
	specs     *registry.SpecRegistry
	evaluator *expr.Evaluator
	factory   *component.Factory
	engine    *engine.Orchestrator
}

// newApp loads the startup configuration and constructs the engine around it.
func newApp(flags *rootFlags) (*app, error) {
	startup, err := config.LoadStartup(flags.configPath)
	if err != nil {
		return nil, err
	}

	level := startup.Logging.Level
	if flags.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, Pretty: startup.Logging.Pretty})
	if err != nil {
		return nil, err
	}

	templates, err := registry.NewTemplateRegistry(startup.TemplatesRoot, log)
	if err != nil {
		return nil, err
	}
	specs, err := registry.NewSpecRegistry(startup.SpecificationsRoot, log)
	if err != nil {
		return nil, err
	}

	evaluator := expr.NewEvaluator(expr.NewStandardRegistry(),
		expr.WithCompositeComparators(startup.CompositeComparators))

	factory := component.NewFactory(component.Deps{
		Templates:    templates,
		Specs:        specs,
		Evaluator:    evaluator,
		Log:          log,
		RulePrefixes: startup.RuleResultPrefixes,
	})

	cache := engine.NewPlanCache(startup.PlanCacheSize)
	orchestrator := engine.NewOrchestrator(factory, cache, log)

	return &app{
		startup:   startup,
		log:       log,
		templates: templates,
		specs:     specs,
		evaluator: evaluator,
		factory:   factory,
		engine:    orchestrator,
	}, nil
}
