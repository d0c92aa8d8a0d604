// Package cli is the front door: argument parsing, environment validation,
// and signal wiring for the orchestrator.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/pablasso/ralph/internal/version"
)

// Flag values shared by the run path.
var (
	flagTasks       string
	flagPrompt      string
	flagMaxParallel int
	flagInterval    int
)

var rootCmd = &cobra.Command{
	Use:     "ralph",
	Short:   "Autonomous parallel task runner for AI coding agents",
	Long:    `Ralph reads a declarative task list and runs one worker agent per task, up to a concurrency limit, until every task is completed or failed.`,
	Version: version.Version,
	RunE:    runRalph,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagTasks, "tasks", "t", DefaultTaskFile, "Path to the task file")
	rootCmd.Flags().StringVarP(&flagPrompt, "prompt", "p", "", "Override the prompt file from the task file")
	rootCmd.Flags().IntVarP(&flagMaxParallel, "max-parallel", "j", 0, "Override max parallel workers")
	rootCmd.Flags().IntVarP(&flagInterval, "interval", "i", -1, "Override check interval in seconds")

	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(watchCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
