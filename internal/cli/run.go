package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pablasso/ralph/internal/scheduler"
	"github.com/pablasso/ralph/internal/supervisor"
	"github.com/pablasso/ralph/internal/task"
)

// runRalph is the default command: validate the environment, then hand
// control to the scheduler loop until the run reaches a terminal state.
func runRalph(cmd *cobra.Command, args []string) error {
	if err := checkPrerequisites(flagTasks, flagPrompt); err != nil {
		return err
	}

	pidFile := task.NewPIDFile(pidFilePath())
	if err := pidFile.Acquire(); err != nil {
		return err
	}
	defer pidFile.Release()

	runDir, err := os.MkdirTemp("", "ralph-run-*")
	if err != nil {
		return err
	}

	sup := supervisor.New(runDir)
	sched := scheduler.New(flagTasks, runDir, scheduler.NewSupervisorWorkers(sup), task.NewEventLog(eventLogPath()))
	sched.PromptOverride = flagPrompt
	if flagMaxParallel > 0 {
		sched.MaxParallel = flagMaxParallel
	}
	if flagInterval >= 0 {
		sched.Interval = time.Duration(flagInterval) * time.Second
		sched.IntervalSet = true
	}

	// An interrupt during any sleep breaks straight into the shutdown path.
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return sched.Run(ctx)
}
