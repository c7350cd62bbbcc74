package cmd

import (
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/metinsenturk/dagster/pkg/examples"
	"github.com/metinsenturk/dagster/pkg/pipedef"
	"github.com/metinsenturk/dagster/pkg/plan"
)

var planSolidSubset []string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the compiled execution plan without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := examples.NewETLPipeline()
		if err != nil {
			return err
		}
		if len(planSolidSubset) > 0 {
			pipeline, err = pipedef.BuildSubPipeline(pipeline, planSolidSubset)
			if err != nil {
				return err
			}
		}

		p, err := plan.BuildPlan(pipeline, nil)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Key", "Kind", "Solid", "Inputs", "Outputs"})
		for _, step := range p.Steps {
			table.Append([]string{
				step.Key,
				string(step.Kind),
				step.SolidName,
				strings.Join(inputNames(step), ", "),
				strings.Join(outputNames(step), ", "),
			})
		}
		table.Render()
		return nil
	},
}

func inputNames(step *plan.ExecutionStep) []string {
	names := make([]string, 0, len(step.Inputs))
	for _, in := range step.Inputs {
		names = append(names, in.Name)
	}
	return names
}

func outputNames(step *plan.ExecutionStep) []string {
	names := make([]string, 0, len(step.Outputs))
	for _, out := range step.Outputs {
		names = append(names, out.Name)
	}
	return names
}

func init() {
	planCmd.Flags().StringSliceVar(&planSolidSubset, "solids", nil, "restrict the plan to this comma-separated list of solid names")
	rootCmd.AddCommand(planCmd)
}
