// Package supervisor spawns and tracks one worker process per task.
package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pablasso/ralph/internal/task"
)

// Worker invocation defaults. The worker reads its composed prompt on stdin
// and signals success or failure through its exit code.
var (
	DefaultWorkerCmd  = "claude"
	DefaultWorkerArgs = []string{"-p", "--dangerously-skip-permissions"}
)

// DefaultGracePeriod is how long workers get between SIGTERM and SIGKILL.
const DefaultGracePeriod = 1500 * time.Millisecond

// Result reports a reaped worker process.
type Result struct {
	TaskID   string
	ExitCode int
}

// Supervisor owns the run-time process handles. The scheduler only queries
// it and instructs starts and stops; nothing else touches the handles.
type Supervisor struct {
	WorkerCmd   string
	WorkerArgs  []string
	RunDir      string // scratch dir for per-task prompt and log files
	GracePeriod time.Duration

	mu      sync.Mutex
	handles map[string]*Handle
}

// New creates a Supervisor writing scratch files under runDir.
func New(runDir string) *Supervisor {
	return &Supervisor{
		WorkerCmd:   DefaultWorkerCmd,
		WorkerArgs:  DefaultWorkerArgs,
		RunDir:      runDir,
		GracePeriod: DefaultGracePeriod,
		handles:     make(map[string]*Handle),
	}
}

// Handle tracks one spawned worker process.
type Handle struct {
	TaskID    string
	StartedAt time.Time

	cmd *exec.Cmd

	mu       sync.Mutex
	finished bool
	exitCode int
}

// PID returns the worker's process id.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Alive reports whether the process has not yet been reaped.
func (h *Handle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.finished
}

// ExitCode returns the exit code and whether the process has exited.
func (h *Handle) ExitCode() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, h.finished
}

// wait blocks in a background goroutine so reaping stays non-blocking for
// the scheduler.
func (h *Handle) wait(stdin, log *os.File) {
	err := h.cmd.Wait()
	stdin.Close()
	log.Close()

	h.mu.Lock()
	h.finished = true
	h.exitCode = exitCodeFrom(err)
	h.mu.Unlock()
}

// exitCodeFrom maps a Wait error to an exit code. A wait error that carries
// no exit status (the child was already reaped by the OS) is treated as exit
// 0 so the scheduler never deadlocks on an unreapable child. This can mask a
// real failure; the trade-off is deliberate.
func exitCodeFrom(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 0
}

// Start composes the per-task worker input, spawns the worker as a detached
// process group, and tracks the handle. The worker's combined stdout/stderr
// goes to {taskID}.log under the run dir.
func (s *Supervisor) Start(t task.Task, promptContent string) (*Handle, error) {
	s.mu.Lock()
	if _, exists := s.handles[t.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("task %s already has a worker", t.ID)
	}
	s.mu.Unlock()

	input := BuildWorkerInput(t, promptContent)
	promptPath := filepath.Join(s.RunDir, t.ID+"-prompt.txt")
	if err := os.WriteFile(promptPath, []byte(input), 0644); err != nil {
		return nil, fmt.Errorf("failed to write worker prompt: %w", err)
	}

	stdin, err := os.Open(promptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open worker prompt: %w", err)
	}

	logFile, err := os.Create(LogPath(s.RunDir, t.ID))
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create worker log: %w", err)
	}

	cmd := exec.Command(s.WorkerCmd, s.WorkerArgs...)
	cmd.Stdin = stdin
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		stdin.Close()
		logFile.Close()
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	h := &Handle{
		TaskID:    t.ID,
		StartedAt: time.Now(),
		cmd:       cmd,
	}

	s.mu.Lock()
	s.handles[t.ID] = h
	s.mu.Unlock()

	go h.wait(stdin, logFile)

	return h, nil
}

// ReapFinished removes every finished handle and returns its result.
// Strictly non-blocking: processes still running are left alone.
func (s *Supervisor) ReapFinished() []Result {
	s.mu.Lock()
	var results []Result
	for id, h := range s.handles {
		if code, done := h.ExitCode(); done {
			results = append(results, Result{TaskID: id, ExitCode: code})
			delete(s.handles, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].TaskID < results[j].TaskID
	})
	return results
}

// RunningCount returns how many tracked workers are still alive.
func (s *Supervisor) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.handles {
		if h.Alive() {
			n++
		}
	}
	return n
}

// Tracks reports whether a live worker is tracked for the given task id.
func (s *Supervisor) Tracks(taskID string) bool {
	s.mu.Lock()
	h, ok := s.handles[taskID]
	s.mu.Unlock()
	return ok && h.Alive()
}

// TerminateAll sends SIGTERM to every tracked process group (negative-PID, so
// children spawned by the worker are included), waits the grace period, then
// SIGKILLs survivors. Finishes with a name-pattern sweep for workers whose
// handle was lost. Tracked handles are dropped afterwards.
func (s *Supervisor) TerminateAll() {
	s.mu.Lock()
	var live []*Handle
	for _, h := range s.handles {
		if h.Alive() {
			live = append(live, h)
		}
	}
	s.mu.Unlock()

	for _, h := range live {
		terminateGroup(h.PID())
	}

	if len(live) > 0 {
		time.Sleep(s.gracePeriod())
	}

	for _, h := range live {
		if h.Alive() {
			killGroup(h.PID())
		}
	}

	sweepByName(s.workerPattern())

	s.mu.Lock()
	s.handles = make(map[string]*Handle)
	s.mu.Unlock()
}

func (s *Supervisor) workerPattern() string {
	return strings.Join(append([]string{s.WorkerCmd}, s.WorkerArgs...), " ")
}

// DefaultWorkerPattern matches the default worker command line, for the kill
// sweep when no supervisor instance exists.
func DefaultWorkerPattern() string {
	return strings.Join(append([]string{DefaultWorkerCmd}, DefaultWorkerArgs...), " ")
}

// SweepByName force-kills worker processes whose command line matches the
// pattern. Used by the kill command, which has no handles to work from.
func SweepByName(pattern string) {
	sweepByName(pattern)
}

// Terminate sends a graceful terminate signal to a process group.
func Terminate(pid int) {
	terminateGroup(pid)
}

// Kill forcefully kills a process group.
func Kill(pid int) {
	killGroup(pid)
}

func (s *Supervisor) gracePeriod() time.Duration {
	if s.GracePeriod <= 0 {
		return DefaultGracePeriod
	}
	return s.GracePeriod
}

// LogPath returns the worker log file path for a task.
func LogPath(runDir, taskID string) string {
	return filepath.Join(runDir, taskID+".log")
}

// BuildWorkerInput prepends a machine-readable block identifying the assigned
// task to the shared prompt content. The prompt is included verbatim.
func BuildWorkerInput(t task.Task, promptContent string) string {
	assignment := struct {
		ID                 string   `json:"id"`
		Title              string   `json:"title"`
		Description        string   `json:"description"`
		AcceptanceCriteria []string `json:"acceptanceCriteria"`
	}{t.ID, t.Title, t.Description, t.AcceptanceCriteria}

	// Marshal of a plain struct can't fail
	header, _ := json.MarshalIndent(assignment, "", "  ")

	return fmt.Sprintf("## Assigned Task\n```json\n%s\n```\n\n%s", header, promptContent)
}
