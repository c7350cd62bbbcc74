package main

import (
	"os"

	"github.com/metinsenturk/dagster/cmd/dagsterctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
