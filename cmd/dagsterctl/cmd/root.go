// Package cmd is the cobra-based command surface for dagsterctl, the
// ambient "how a user actually runs this" front end around the execution
// core. It contains no execution-core logic of its own — every
// subcommand works against the bundled pkg/examples pipeline: run and
// externalize load a YAML environment file and call straight into
// pkg/execution's public entry operations; plan compiles the plan with
// pkg/plan and prints it without loading an environment.
package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/metinsenturk/dagster/pkg/logger"
)

var envFilePath string

var rootCmd = &cobra.Command{
	Use:   "dagsterctl",
	Short: "Run and inspect dagster-style execution-core pipelines",
	Long:  "dagsterctl loads a pipeline environment and drives the pipeline execution core: building plans, running pipelines, and externalizing subset runs.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		opts := logger.DefaultOptions()
		opts.ColorConsole = color.NoColor == false
		logger.Init(opts)
	},
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFilePath, "env", "e", "", "path to a YAML environment file (context name/config/resources/persistence)")
}
