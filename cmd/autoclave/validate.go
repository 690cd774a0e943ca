package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curelab/autoclave/internal/config"
	"github.com/curelab/autoclave/internal/engine"
)

func newValidateCmd(rootFlags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Validate a workflow definition and print its execution plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}

	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	wf, err := config.LoadWorkflow(path)
	if err != nil {
		return err
	}
	if err := config.ValidateWorkflow(wf); err != nil {
		return err
	}

	plan, err := engine.BuildPlan(wf)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Workflow "+wf.Name))
	fmt.Fprintf(out, "tasks: %d, levels: %d, fingerprint: %016x\n", len(plan.Tasks), len(plan.Levels), plan.Fingerprint())
	for i, level := range plan.Levels {
		fmt.Fprintf(out, "  level %d:", i)
		for _, id := range level {
			fmt.Fprintf(out, " %s", id)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, successStyle.Render("workflow is valid"))
	return nil
}
