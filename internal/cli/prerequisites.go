package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pablasso/ralph/internal/supervisor"
	"github.com/pablasso/ralph/internal/task"
)

// Well-known paths, all relative to the project root (the cwd).
const (
	RalphDir        = ".ralph"
	DefaultTaskFile = "ralph-tasks.json"
	pidFileName     = "ralph.pid"
	eventLogName    = "events.log"
)

func pidFilePath() string {
	return filepath.Join(RalphDir, pidFileName)
}

func eventLogPath() string {
	return filepath.Join(RalphDir, eventLogName)
}

// PrerequisiteError represents a failed prerequisite check with helpful
// remediation info.
type PrerequisiteError struct {
	Check   string
	Message string
	Help    string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%s: %s\n\n%s", e.Check, e.Message, e.Help)
}

// checkPrerequisites validates the environment before a run. Every failure
// here is fatal at startup; the orchestrator never silently proceeds.
func checkPrerequisites(taskFile, promptOverride string) error {
	if err := checkProjectMarker(); err != nil {
		return err
	}
	if err := checkWorker(); err != nil {
		return err
	}
	return checkTaskFile(taskFile, promptOverride)
}

// checkProjectMarker verifies the project marker directory exists in the cwd.
func checkProjectMarker() error {
	info, err := os.Stat(RalphDir)
	if err != nil || !info.IsDir() {
		return &PrerequisiteError{
			Check:   "Project marker",
			Message: fmt.Sprintf("no %s/ directory in the current directory", RalphDir),
			Help:    fmt.Sprintf("Run ralph from your project root, or create the marker with 'mkdir %s'.", RalphDir),
		}
	}
	return nil
}

// checkWorker verifies the worker executable is resolvable on the path.
func checkWorker() error {
	if _, err := exec.LookPath(supervisor.DefaultWorkerCmd); err != nil {
		return &PrerequisiteError{
			Check:   "Worker executable",
			Message: fmt.Sprintf("%q not found on PATH", supervisor.DefaultWorkerCmd),
			Help:    "Install Claude Code: https://claude.ai/code",
		}
	}
	return nil
}

// checkTaskFile verifies the task file and prompt file exist and parse.
func checkTaskFile(taskFile, promptOverride string) error {
	cfg, err := task.Load(taskFile)
	if err != nil {
		return &PrerequisiteError{
			Check:   "Task file",
			Message: fmt.Sprintf("cannot load %s: %v", taskFile, err),
			Help:    "Create the task file with your planning assistant, or pass --tasks <path>.",
		}
	}

	promptPath := cfg.Prompt()
	if promptOverride != "" {
		promptPath = promptOverride
	}
	if _, err := os.Stat(promptPath); err != nil {
		return &PrerequisiteError{
			Check:   "Prompt file",
			Message: fmt.Sprintf("cannot read %s", promptPath),
			Help:    "Create the shared prompt file, or pass --prompt <path>.",
		}
	}

	return nil
}
