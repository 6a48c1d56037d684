// Command sweenv drives a single container-backed SWE-bench-style episode:
// reset a repo to a task's base commit, feed it agent actions, and collect
// the resulting patch.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweagent/sweenv/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sweenv",
	Short: "sweenv runs SWE-bench style tasks in a sandboxed container",
	Long: `sweenv is the execution environment for an autonomous software
engineering agent: it resets a task's repo inside a container, accepts a
sequence of editor/shell actions, and produces a patch on submission.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOut,
	})
}
