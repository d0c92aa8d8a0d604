// Package scheduler drives the run: reconcile persisted state with live
// workers, reap finished ones, admit pending tasks within the concurrency
// budget, and redraw the status screen each cycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pablasso/ralph/internal/render"
	"github.com/pablasso/ralph/internal/task"
)

// Run outcome errors. Both surface as a non-zero exit from the CLI.
var (
	// ErrTasksFailed means the run finished but at least one task failed.
	ErrTasksFailed = errors.New("one or more tasks failed")

	// ErrStuck means nothing is runnable but not every task is terminal,
	// e.g. a task left in an unrecognized status by an external edit.
	ErrStuck = errors.New("run is stuck")
)

// Process is the minimal view of a spawned worker the scheduler needs.
type Process interface {
	PID() int
}

// Workers is the supervisor surface the scheduler drives. The supervisor
// exclusively owns the process handles; the scheduler only queries liveness
// and instructs starts and stops.
type Workers interface {
	Start(t task.Task, promptContent string) (Process, error)
	ReapFinished() []Result
	RunningCount() int
	Tracks(taskID string) bool
	TerminateAll()
}

// Result reports a reaped worker process.
type Result struct {
	TaskID   string
	ExitCode int
}

// Timing defaults for the control loop.
const (
	defaultSpawnDelay = 500 * time.Millisecond
	defaultRetryDelay = 2 * time.Second
)

// Scheduler is the single-threaded control loop. It is the only writer of
// the task file during normal operation; external edits are picked up at the
// start of each cycle and tolerated last-writer-wins.
type Scheduler struct {
	TaskFile string
	RunDir   string
	Workers  Workers
	Events   *task.EventLog
	Out      io.Writer
	ErrOut   io.Writer

	// Flag overrides; zero values defer to the task file.
	PromptOverride string
	MaxParallel    int
	Interval       time.Duration
	IntervalSet    bool

	SpawnDelay time.Duration
	RetryDelay time.Duration

	startTime    time.Time
	shutdownOnce sync.Once
}

// New creates a Scheduler with default timing and output streams.
func New(taskFile, runDir string, workers Workers, events *task.EventLog) *Scheduler {
	return &Scheduler{
		TaskFile:   taskFile,
		RunDir:     runDir,
		Workers:    workers,
		Events:     events,
		Out:        os.Stdout,
		ErrOut:     os.Stderr,
		SpawnDelay: defaultSpawnDelay,
		RetryDelay: defaultRetryDelay,
	}
}

// Run executes the control loop until every task is terminal or ctx is
// cancelled. Returns nil on full success or interruption, ErrTasksFailed or
// ErrStuck otherwise.
func (s *Scheduler) Run(ctx context.Context) error {
	cfg, err := task.Load(s.TaskFile)
	if err != nil {
		return err
	}

	// Crash recovery: running statuses from a previous process can't be
	// trusted.
	if n := task.ResetStaleRunning(cfg); n > 0 {
		if err := task.Save(s.TaskFile, cfg); err != nil {
			return err
		}
		fmt.Fprintf(s.ErrOut, "reset %d stale running task(s) to pending\n", n)
	}

	s.startTime = time.Now()
	s.Events.RunStarted(cfg.Project, len(cfg.Tasks))

	for {
		if ctx.Err() != nil {
			return s.shutdown()
		}

		cfg, err = task.Load(s.TaskFile)
		if err != nil {
			// An external writer may be mid-write; skip the cycle.
			fmt.Fprintf(s.ErrOut, "task file unreadable, retrying: %v\n", err)
			if !s.sleep(ctx, s.retryDelay()) {
				return s.shutdown()
			}
			continue
		}

		if err := s.reconcile(cfg); err != nil {
			return err
		}

		if err := s.reap(cfg); err != nil {
			return err
		}

		counts := cfg.Counts()
		fmt.Fprint(s.Out, render.ClearScreen+render.Screen(cfg, counts, s.RunDir))

		if counts.Pending == 0 && counts.Running == 0 && counts.Total > 0 {
			return s.finish(cfg, counts)
		}

		if done, err := s.admit(ctx, cfg, counts); err != nil {
			return err
		} else if done {
			return s.shutdown()
		}

		if !s.countdown(ctx, s.interval(cfg)) {
			return s.shutdown()
		}
	}
}

// reconcile forces the persisted status to running for every task with a
// live tracked worker, unless it already reached a terminal status. Protects
// against a stale pending written by an external editor racing us.
func (s *Scheduler) reconcile(cfg *task.Config) error {
	dirty := false
	for i := range cfg.Tasks {
		t := &cfg.Tasks[i]
		if t.Terminal() || t.Status == task.StatusRunning {
			continue
		}
		if s.Workers.Tracks(t.ID) {
			t.Status = task.StatusRunning
			dirty = true
		}
	}
	if !dirty {
		return nil
	}
	return task.Save(s.TaskFile, cfg)
}

// reap applies completed/failed transitions for finished workers, persisting
// after each so a crash loses at most one transition.
func (s *Scheduler) reap(cfg *task.Config) error {
	for _, r := range s.Workers.ReapFinished() {
		t := cfg.Find(r.TaskID)
		if t == nil {
			continue
		}
		if r.ExitCode == 0 {
			t.Status = task.StatusCompleted
			s.Events.TaskCompleted(t.ID)
		} else {
			t.Status = task.StatusFailed
			s.Events.TaskFailed(t.ID, r.ExitCode)
			fmt.Fprintf(s.ErrOut, "task %s failed (exit %d), log: %s\n",
				t.ID, r.ExitCode, s.RunDir)
		}
		if err := task.Save(s.TaskFile, cfg); err != nil {
			return err
		}
	}
	return nil
}

// admit starts pending tasks in document order while slots remain within the
// concurrency budget. A spawn failure leaves the task pending for a later
// cycle; it is indistinguishable from a task that hasn't had a turn yet.
// Returns done=true if an interrupt cut the inter-spawn delay short.
func (s *Scheduler) admit(ctx context.Context, cfg *task.Config, counts task.Counts) (bool, error) {
	available := s.parallel(cfg) - s.Workers.RunningCount()
	if available <= 0 || counts.Pending == 0 {
		return false, nil
	}

	prompt, err := os.ReadFile(s.promptPath(cfg))
	if err != nil {
		fmt.Fprintf(s.ErrOut, "cannot read prompt file: %v\n", err)
		return false, nil
	}

	started := 0
	for i := range cfg.Tasks {
		if available <= 0 {
			break
		}
		t := &cfg.Tasks[i]
		if t.Status != task.StatusPending || s.Workers.Tracks(t.ID) {
			continue
		}

		// Stagger spawns so a wide budget doesn't launch a thundering herd.
		if started > 0 && !s.sleep(ctx, s.spawnDelay()) {
			return true, nil
		}

		proc, startErr := s.Workers.Start(*t, string(prompt))
		if startErr != nil {
			fmt.Fprintf(s.ErrOut, "failed to start worker for %s: %v\n", t.ID, startErr)
			break // leave pending, retry next cycle
		}

		t.Status = task.StatusRunning
		if err := task.Save(s.TaskFile, cfg); err != nil {
			return false, err
		}
		s.Events.TaskStarted(t.ID, proc.PID())
		started++
		available--
	}

	return false, nil
}

// finish records the terminal state of the run exactly once.
func (s *Scheduler) finish(cfg *task.Config, counts task.Counts) error {
	if counts.Completed+counts.Failed < counts.Total {
		return fmt.Errorf("%w: %d task(s) in unrecognized status", ErrStuck, counts.Unknown)
	}

	now := time.Now()
	cfg.CompletedAt = &now
	if err := task.Save(s.TaskFile, cfg); err != nil {
		return err
	}

	duration := time.Since(s.startTime)
	s.Events.RunCompleted(counts.Completed, counts.Failed, duration)

	if counts.Failed > 0 {
		return fmt.Errorf("%w: %d of %d tasks failed", ErrTasksFailed, counts.Failed, counts.Total)
	}

	fmt.Fprintf(s.Out, "\nAll %d tasks completed. (%s)\n", counts.Total, formatDuration(duration))
	os.RemoveAll(s.RunDir)
	return nil
}

// shutdown terminates every tracked worker group and resets running tasks to
// pending so a subsequent run retries them. Guarded so re-entrant interrupts
// cannot run the cleanup twice.
func (s *Scheduler) shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		fmt.Fprintf(s.ErrOut, "\ninterrupted, stopping workers...\n")
		s.Workers.TerminateAll()

		cfg, loadErr := task.Load(s.TaskFile)
		if loadErr != nil {
			err = fmt.Errorf("failed to reload task file during shutdown: %w", loadErr)
			return
		}

		n := task.ResetStaleRunning(cfg)
		if saveErr := task.Save(s.TaskFile, cfg); saveErr != nil {
			err = saveErr
			return
		}
		s.Events.RunInterrupted(n)
		if n > 0 {
			fmt.Fprintf(s.ErrOut, "reset %d running task(s) to pending\n", n)
		}

		os.RemoveAll(s.RunDir) // best-effort scratch cleanup
	})
	return err
}

// countdown sleeps for the poll interval, redrawing a heartbeat line each
// second. Returns false if ctx was cancelled during the wait.
func (s *Scheduler) countdown(ctx context.Context, interval time.Duration) bool {
	remaining := interval
	for remaining > 0 {
		secs := int((remaining + time.Second - 1) / time.Second)
		fmt.Fprintf(s.Out, "\r\x1b[K%s", render.Countdown(secs))

		step := time.Second
		if remaining < step {
			step = remaining
		}
		if !s.sleep(ctx, step) {
			return false
		}
		remaining -= step
	}
	if ctx.Err() != nil {
		return false
	}
	return true
}

// sleep waits for d unless ctx is cancelled first.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Scheduler) parallel(cfg *task.Config) int {
	if s.MaxParallel > 0 {
		return s.MaxParallel
	}
	return cfg.Parallel()
}

func (s *Scheduler) interval(cfg *task.Config) time.Duration {
	if s.IntervalSet {
		return s.Interval
	}
	return cfg.PollInterval()
}

func (s *Scheduler) promptPath(cfg *task.Config) string {
	if s.PromptOverride != "" {
		return s.PromptOverride
	}
	return cfg.Prompt()
}

func (s *Scheduler) spawnDelay() time.Duration {
	if s.SpawnDelay <= 0 {
		return defaultSpawnDelay
	}
	return s.SpawnDelay
}

func (s *Scheduler) retryDelay() time.Duration {
	if s.RetryDelay <= 0 {
		return defaultRetryDelay
	}
	return s.RetryDelay
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}
