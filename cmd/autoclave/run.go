package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
	"github.com/curelab/autoclave/internal/format"
	"github.com/curelab/autoclave/internal/model"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

type runOptions struct {
	workflowPath    string
	specificationID string
	groupingPath    string
	dataPath        string
	processID       string
	seriesID        string
	calculationDate string
}

func newRunCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a workflow against one process dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, rootFlags, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.workflowPath, "workflow", "w", "", "Path to the workflow definition")
	cmd.Flags().StringVarP(&opts.specificationID, "spec", "s", "", "Specification id to evaluate")
	cmd.Flags().StringVarP(&opts.groupingPath, "grouping", "g", "", "Path to the sensor grouping document")
	cmd.Flags().StringVarP(&opts.dataPath, "data", "d", "", "Path to the raw dataset")
	cmd.Flags().StringVar(&opts.processID, "process-id", "", "Process identifier for output paths")
	cmd.Flags().StringVar(&opts.seriesID, "series-id", "", "Series identifier for output paths")
	cmd.Flags().StringVar(&opts.calculationDate, "date", "", "Calculation date for output paths")

	cmd.MarkFlagRequired("workflow")
	cmd.MarkFlagRequired("spec")
	cmd.MarkFlagRequired("grouping")
	cmd.MarkFlagRequired("data")

	return cmd
}

func runRun(cmd *cobra.Command, rootFlags *rootFlags, opts *runOptions) error {
	application, err := newApp(rootFlags)
	if err != nil {
		return err
	}

	wf, err := config.LoadWorkflow(opts.workflowPath)
	if err != nil {
		return err
	}
	if err := config.ValidateWorkflow(wf); err != nil {
		return err
	}

	grouping, err := loadGrouping(opts.groupingPath)
	if err != nil {
		return err
	}

	req := engine.Request{
		WorkflowID:      wf.Name,
		SpecificationID: opts.specificationID,
		SensorGrouping:  grouping,
		ProcessID:       opts.processID,
		SeriesID:        opts.seriesID,
		CalculationDate: opts.calculationDate,
		DataPath:        opts.dataPath,
	}

	cancel := make(chan struct{})
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	go func() {
		<-interrupts
		close(cancel)
	}()

	result, wc := application.engine.Run(cancel, wf, req)
	renderRunSummary(cmd, result, wc)

	if result.Err != nil {
		return result.Err
	}
	return nil
}

// loadGrouping reads a YAML document mapping group names to channel lists.
// A top-level sensor_grouping key is accepted for compatibility with
// request payload dumps.
func loadGrouping(path string) (model.SensorGrouping, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, autoclaveerrors.NewConfigError(path, err)
	}

	var wrapped struct {
		SensorGrouping map[string][]string `yaml:"sensor_grouping"`
	}
	if err := yaml.Unmarshal(payload, &wrapped); err == nil && len(wrapped.SensorGrouping) > 0 {
		return model.SensorGrouping(wrapped.SensorGrouping), nil
	}

	var flat map[string][]string
	if err := yaml.Unmarshal(payload, &flat); err != nil {
		return nil, autoclaveerrors.NewConfigError(path, err)
	}
	return model.SensorGrouping(flat), nil
}

func renderRunSummary(cmd *cobra.Command, result *engine.Result, wc *engine.Context) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, titleStyle.Render("Run "+result.RunID))
	switch result.Status {
	case engine.StatusCompleted:
		fmt.Fprintln(out, successStyle.Render("status: completed"))
	case engine.StatusCancelled:
		fmt.Fprintln(out, warnStyle.Render("status: cancelled"))
	default:
		fmt.Fprintln(out, failureStyle.Render("status: failed"))
	}

	for _, taskResult := range result.TaskResults {
		line := fmt.Sprintf("  %-24s %-16s %s", taskResult.TaskID, taskResult.Layer, taskResult.Duration)
		if taskResult.Err != nil {
			fmt.Fprintln(out, failureStyle.Render(line+"  "+taskResult.Err.Error()))
		} else {
			fmt.Fprintln(out, line)
		}
	}

	if doc, ok := wc.FormattedResults().(*format.Document); ok {
		compliance := doc.Results[0].RuleCompliance
		summary := fmt.Sprintf("rules: %d total, %d passed, %d failed",
			compliance.TotalRules, compliance.PassedRules, compliance.FailedRules)
		if compliance.FailedRules == 0 {
			fmt.Fprintln(out, successStyle.Render(summary))
		} else {
			fmt.Fprintln(out, failureStyle.Render(summary))
		}
	}

	fmt.Fprintln(out, summaryStyle.Render(fmt.Sprintf("elapsed: %s", result.ExecutionTime)))
}
