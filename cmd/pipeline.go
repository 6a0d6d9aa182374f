package main

import (
	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run and inspect crossing-difficulty pipeline runs",
	Long:  "Commands for executing full scoring runs over a feature extract and inspecting the snapshots they publish.",
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}
