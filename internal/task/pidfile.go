package task

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile records the orchestrator's own process id at a well-known path.
// It doubles as a single-instance lock for the project and as the side
// channel the kill command uses to locate a running (or orphaned)
// orchestrator without needing the task file.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PID file manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file location.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire attempts to record our PID.
// Returns an error if another live orchestrator holds the file.
// Stale files (from dead processes) are automatically cleaned up.
func (p *PIDFile) Acquire() error {
	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
		f.Close()
		if writeErr != nil {
			os.Remove(p.path)
			return fmt.Errorf("failed to write pid file: %w", writeErr)
		}
		return nil
	}

	if !os.IsExist(err) {
		return fmt.Errorf("failed to create pid file: %w", err)
	}

	// File exists - check if the recorded process is still alive.
	pid, readErr := p.Read()
	if readErr == nil && ProcessExists(pid) {
		return fmt.Errorf("ralph is already running (PID %d)", pid)
	}

	// Stale or unreadable - remove and retry once.
	if removeErr := os.Remove(p.path); removeErr != nil {
		return fmt.Errorf("failed to remove stale pid file: %w", removeErr)
	}

	f, err = os.OpenFile(p.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("pid file acquired by another process during retry")
		}
		return fmt.Errorf("failed to create pid file on retry: %w", err)
	}
	_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()
	if writeErr != nil {
		os.Remove(p.path)
		return fmt.Errorf("failed to write pid file on retry: %w", writeErr)
	}
	return nil
}

// Read returns the PID recorded in the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file contents: %w", err)
	}
	return pid, nil
}

// Release removes the PID file. Idempotent.
func (p *PIDFile) Release() error {
	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pid file: %w", err)
	}
	return nil
}

// ProcessExists checks if a process with the given PID is running.
// Uses kill with signal 0, which checks for process existence without
// sending a signal.
func ProcessExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
