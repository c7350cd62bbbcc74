package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/metinsenturk/dagster/pkg/configenv"
	"github.com/metinsenturk/dagster/pkg/examples"
	"github.com/metinsenturk/dagster/pkg/execution"
)

var externalizeSpecPath string

// externalizeSpec is the on-disk shape of an externalized-run request: the
// boundary values are too structured for flags, so they are loaded from a
// small YAML file instead.
type externalizeSpec struct {
	Steps   []string                       `yaml:"steps"`
	Inputs  map[string]map[string]string   `yaml:"inputs"`
	Outputs map[string][]outputMarshalSpec `yaml:"outputs"`
}

type outputMarshalSpec struct {
	Output string `yaml:"output"`
	Path   string `yaml:"path"`
}

var externalizeCmd = &cobra.Command{
	Use:   "externalize",
	Short: "Run a subset of the plan with marshalled boundary values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if externalizeSpecPath == "" {
			return fmt.Errorf("externalize: --spec is required")
		}
		data, err := os.ReadFile(externalizeSpecPath)
		if err != nil {
			return err
		}
		var spec externalizeSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return err
		}

		outputs := make(map[string][]execution.OutputMarshalSpec, len(spec.Outputs))
		for stepKey, specs := range spec.Outputs {
			for _, s := range specs {
				outputs[stepKey] = append(outputs[stepKey], execution.OutputMarshalSpec{Output: s.Output, Path: s.Path})
			}
		}

		rawEnv, err := loadRawEnvironment(envFilePath)
		if err != nil {
			return fmt.Errorf("loading environment: %w", err)
		}
		pipeline, err := examples.NewETLPipeline()
		if err != nil {
			return err
		}

		results, err := execution.ExecuteExternalizedPlan(
			context.Background(),
			pipeline,
			spec.Steps,
			spec.Inputs,
			outputs,
			rawEnv,
			configenv.ExecutionMetadata{},
			runThrowOnUserError,
		)
		if err != nil {
			return err
		}

		for _, r := range results {
			status := "ok"
			if !r.Success {
				status = "FAILED"
			}
			fmt.Printf("%s\t%s\n", r.Step.Key, status)
		}
		return nil
	},
}

func init() {
	externalizeCmd.Flags().StringVar(&externalizeSpecPath, "spec", "", "path to a YAML file describing steps/inputs/outputs to marshal")
	externalizeCmd.Flags().BoolVar(&runThrowOnUserError, "throw-on-user-error", true, "abort the run at the first failing step instead of recording it")
	rootCmd.AddCommand(externalizeCmd)
}
