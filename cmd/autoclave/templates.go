package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curelab/autoclave/internal/registry"
)

func newTemplatesCmd(rootFlags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the loaded template registry contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplates(cmd, rootFlags)
		},
	}

	return cmd
}

func runTemplates(cmd *cobra.Command, rootFlags *rootFlags) error {
	application, err := newApp(rootFlags)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	kinds := []registry.TemplateKind{registry.KindCalculation, registry.KindRule, registry.KindStage}

	for _, kind := range kinds {
		ids := application.templates.ListTemplates(kind)
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s templates (%d)", kind, len(ids))))
		for _, id := range ids {
			fmt.Fprintf(out, "  %s\n", id)
		}
	}
	return nil
}
