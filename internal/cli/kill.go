package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pablasso/ralph/internal/supervisor"
	"github.com/pablasso/ralph/internal/task"
)

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop an orphaned orchestrator and sweep worker processes",
	Long:  `Locate a previously started orchestrator through its PID file, terminate it, and force-kill any leftover worker processes by name pattern. Works without the task file.`,
	RunE:  runKill,
}

func runKill(cmd *cobra.Command, args []string) error {
	pidFile := task.NewPIDFile(pidFilePath())

	pid, err := pidFile.Read()
	switch {
	case err != nil:
		fmt.Fprintln(cmd.OutOrStdout(), "no orchestrator PID file found")
	case !task.ProcessExists(pid):
		fmt.Fprintf(cmd.OutOrStdout(), "orchestrator (PID %d) is not running\n", pid)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "terminating orchestrator (PID %d)...\n", pid)
		supervisor.Terminate(pid)
		time.Sleep(supervisor.DefaultGracePeriod)
		if task.ProcessExists(pid) {
			supervisor.Kill(pid)
		}
	}
	pidFile.Release()

	fmt.Fprintln(cmd.OutOrStdout(), "sweeping worker processes...")
	supervisor.SweepByName(supervisor.DefaultWorkerPattern())

	return nil
}
