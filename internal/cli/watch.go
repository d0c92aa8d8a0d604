package cli

import (
	"github.com/spf13/cobra"

	"github.com/pablasso/ralph/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live read-only view of a running task file",
	Long:  `Watch re-reads the task file every second and shows overall progress. It never writes anything, so it is safe to run alongside the orchestrator in another terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Watch(flagTasks)
	},
}
