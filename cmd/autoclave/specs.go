package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSpecsCmd(rootFlags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "specs",
		Short: "List the specifications the registry resolves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpecs(cmd, rootFlags)
		},
	}

	return cmd
}

func runSpecs(cmd *cobra.Command, rootFlags *rootFlags) error {
	application, err := newApp(rootFlags)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ids := application.specs.ListSpecifications()
	if len(ids) == 0 {
		fmt.Fprintln(out, warnStyle.Render("no specifications found"))
		return nil
	}

	fmt.Fprintln(out, titleStyle.Render("Specifications"))
	for _, id := range ids {
		spec, err := application.specs.LoadSpecification(id)
		if err != nil {
			fmt.Fprintln(out, failureStyle.Render(fmt.Sprintf("  %s  (%v)", id, err)))
			continue
		}
		fmt.Fprintf(out, "  %-32s rules=%d stages=%d calculations=%d\n",
			id, len(spec.Rules), len(spec.Stages), len(spec.Calculations))
	}
	return nil
}
