package scheduler

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pablasso/ralph/internal/task"
)

type fakeProcess int

func (p fakeProcess) PID() int { return int(p) }

// fakeWorkers is an in-memory stand-in for the process supervisor.
type fakeWorkers struct {
	mu            sync.Mutex
	exitCodes     map[string]int // exit code per task once it "finishes"
	autoFinish    bool           // finish running tasks on the next reap
	startErr      error
	started       []string
	running       map[string]bool
	maxConcurrent int
	terminated    bool
}

func newFakeWorkers(autoFinish bool) *fakeWorkers {
	return &fakeWorkers{
		exitCodes:  make(map[string]int),
		autoFinish: autoFinish,
		running:    make(map[string]bool),
	}
}

func (f *fakeWorkers) Start(t task.Task, promptContent string) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, t.ID)
	f.running[t.ID] = true
	if len(f.running) > f.maxConcurrent {
		f.maxConcurrent = len(f.running)
	}
	return fakeProcess(1000 + len(f.started)), nil
}

func (f *fakeWorkers) ReapFinished() []Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.autoFinish {
		return nil
	}
	var results []Result
	for id := range f.running {
		results = append(results, Result{TaskID: id, ExitCode: f.exitCodes[id]})
		delete(f.running, id)
	}
	return results
}

func (f *fakeWorkers) RunningCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.running)
}

func (f *fakeWorkers) Tracks(taskID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[taskID]
}

func (f *fakeWorkers) TerminateAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = true
	f.running = make(map[string]bool)
}

func (f *fakeWorkers) startedTasks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

// newTestScheduler writes the config and a prompt file into a temp dir and
// returns a scheduler with fast timing.
func newTestScheduler(t *testing.T, cfg *task.Config, workers Workers) (*Scheduler, string) {
	t.Helper()
	dir := t.TempDir()

	taskPath := filepath.Join(dir, "ralph-tasks.json")
	if err := task.Save(taskPath, cfg); err != nil {
		t.Fatalf("failed to write task file: %v", err)
	}

	promptPath := filepath.Join(dir, "ralph-prompt.md")
	if err := os.WriteFile(promptPath, []byte("shared prompt\n"), 0644); err != nil {
		t.Fatalf("failed to write prompt file: %v", err)
	}

	s := New(taskPath, filepath.Join(dir, "run"), workers, task.NewEventLog(filepath.Join(dir, "events.log")))
	s.Out = io.Discard
	s.ErrOut = io.Discard
	s.PromptOverride = promptPath
	s.Interval = 0
	s.IntervalSet = true
	s.SpawnDelay = time.Millisecond
	s.RetryDelay = time.Millisecond
	return s, taskPath
}

func pendingConfig(ids ...string) *task.Config {
	cfg := &task.Config{Project: "demo", MaxParallel: 1}
	for _, id := range ids {
		cfg.Tasks = append(cfg.Tasks, task.Task{ID: id, Title: "task " + id, Status: task.StatusPending})
	}
	return cfg
}

func TestRun_AllTasksComplete(t *testing.T) {
	workers := newFakeWorkers(true)
	s, taskPath := newTestScheduler(t, pendingConfig("t01", "t02", "t03"), workers)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := task.Load(taskPath)
	if err != nil {
		t.Fatalf("failed to reload task file: %v", err)
	}
	for _, tk := range cfg.Tasks {
		if tk.Status != task.StatusCompleted {
			t.Errorf("task %s: got status %q, want completed", tk.ID, tk.Status)
		}
	}
	if cfg.CompletedAt == nil {
		t.Error("completedAt should be recorded at terminal state")
	}

	// maxParallel=1: admission is one task per cycle, in document order.
	started := workers.startedTasks()
	want := []string{"t01", "t02", "t03"}
	for i := range want {
		if i >= len(started) || started[i] != want[i] {
			t.Fatalf("got start order %v, want %v", started, want)
		}
	}
	if workers.maxConcurrent > 1 {
		t.Errorf("max concurrent = %d, want at most 1", workers.maxConcurrent)
	}
}

func TestRun_FailedTaskYieldsError(t *testing.T) {
	workers := newFakeWorkers(true)
	workers.exitCodes["t02"] = 1
	s, taskPath := newTestScheduler(t, pendingConfig("t01", "t02", "t03"), workers)

	err := s.Run(context.Background())
	if !errors.Is(err, ErrTasksFailed) {
		t.Fatalf("got %v, want ErrTasksFailed", err)
	}

	cfg, _ := task.Load(taskPath)
	if cfg.Find("t02").Status != task.StatusFailed {
		t.Errorf("t02: got status %q, want failed", cfg.Find("t02").Status)
	}
	if cfg.Find("t01").Status != task.StatusCompleted || cfg.Find("t03").Status != task.StatusCompleted {
		t.Error("unrelated tasks should still run to completion")
	}
	if cfg.CompletedAt == nil {
		t.Error("completedAt should be recorded even for failed runs")
	}
}

func TestRun_StuckRunIsFatal(t *testing.T) {
	cfg := &task.Config{
		Project: "demo",
		Tasks:   []task.Task{{ID: "t01", Status: "corrupted"}},
	}
	s, _ := newTestScheduler(t, cfg, newFakeWorkers(true))

	err := s.Run(context.Background())
	if !errors.Is(err, ErrStuck) {
		t.Fatalf("got %v, want ErrStuck", err)
	}
}

func TestRun_InterruptResetsRunningTasks(t *testing.T) {
	workers := newFakeWorkers(false) // tasks never finish
	s, taskPath := newTestScheduler(t, pendingConfig("t01", "t02"), workers)
	s.Interval = time.Hour // sit in the countdown until cancelled

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Wait until the first task is persisted as running.
	deadline := time.Now().Add(5 * time.Second)
	for {
		cfg, err := task.Load(taskPath)
		if err == nil && cfg.Find("t01").Status == task.StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for t01 to start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("interrupted run should not error: %v", err)
	}

	if !workers.terminated {
		t.Error("shutdown should terminate all workers")
	}

	cfg, _ := task.Load(taskPath)
	if cfg.Find("t01").Status != task.StatusPending {
		t.Errorf("t01: got status %q, want pending after interrupt", cfg.Find("t01").Status)
	}
	if cfg.CompletedAt != nil {
		t.Error("an interrupted run must not record completedAt")
	}
}

func TestRun_ResetsStaleRunningOnStartup(t *testing.T) {
	cfg := &task.Config{
		Project: "demo",
		Tasks: []task.Task{
			{ID: "t01", Status: task.StatusRunning}, // stale from a crash
			{ID: "t02", Status: task.StatusCompleted},
		},
	}
	workers := newFakeWorkers(true)
	s, taskPath := newTestScheduler(t, cfg, workers)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, _ := task.Load(taskPath)
	if reloaded.Find("t01").Status != task.StatusCompleted {
		t.Errorf("stale running task should be retried to completion, got %q", reloaded.Find("t01").Status)
	}
}

func TestAdmit_RespectsBudget(t *testing.T) {
	workers := newFakeWorkers(false)
	cfg := pendingConfig("t01", "t02", "t03", "t04", "t05")
	cfg.MaxParallel = 2
	s, taskPath := newTestScheduler(t, cfg, workers)

	loaded, err := task.Load(taskPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.admit(context.Background(), loaded, loaded.Counts()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(workers.startedTasks()); got != 2 {
		t.Errorf("started %d tasks, want 2", got)
	}

	// One slot occupied: only one more admission.
	loaded, _ = task.Load(taskPath)
	if _, err := s.admit(context.Background(), loaded, loaded.Counts()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(workers.startedTasks()); got != 2 {
		t.Errorf("a full budget should admit nothing, got %d total starts", got)
	}
}

func TestAdmit_SpawnFailureLeavesTaskPending(t *testing.T) {
	workers := newFakeWorkers(false)
	workers.startErr = errors.New("fork: resource temporarily unavailable")
	s, taskPath := newTestScheduler(t, pendingConfig("t01"), workers)

	loaded, _ := task.Load(taskPath)
	if _, err := s.admit(context.Background(), loaded, loaded.Counts()); err != nil {
		t.Fatalf("spawn failure must not abort the loop: %v", err)
	}

	reloaded, _ := task.Load(taskPath)
	if reloaded.Find("t01").Status != task.StatusPending {
		t.Errorf("t01: got status %q, want pending after spawn failure", reloaded.Find("t01").Status)
	}
}

func TestReconcile_ForcesRunningForTrackedTasks(t *testing.T) {
	workers := newFakeWorkers(false)
	s, taskPath := newTestScheduler(t, pendingConfig("t01", "t02"), workers)

	// Simulate a live tracked worker whose persisted status was clobbered
	// back to pending by an external editor.
	workers.running["t01"] = true

	loaded, _ := task.Load(taskPath)
	if err := s.reconcile(loaded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, _ := task.Load(taskPath)
	if reloaded.Find("t01").Status != task.StatusRunning {
		t.Errorf("t01: got status %q, want running", reloaded.Find("t01").Status)
	}
	if reloaded.Find("t02").Status != task.StatusPending {
		t.Errorf("t02: got status %q, want pending (untracked)", reloaded.Find("t02").Status)
	}
}

func TestReconcile_NeverRevivesTerminalTasks(t *testing.T) {
	workers := newFakeWorkers(false)
	cfg := &task.Config{
		Project: "demo",
		Tasks:   []task.Task{{ID: "t01", Status: task.StatusCompleted}},
	}
	s, taskPath := newTestScheduler(t, cfg, workers)
	workers.running["t01"] = true

	loaded, _ := task.Load(taskPath)
	if err := s.reconcile(loaded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, _ := task.Load(taskPath)
	if reloaded.Find("t01").Status != task.StatusCompleted {
		t.Errorf("t01: got status %q, terminal statuses must not move backward", reloaded.Find("t01").Status)
	}
}

func TestCountdown_CancelledContextBreaksOut(t *testing.T) {
	s, _ := newTestScheduler(t, pendingConfig("t01"), newFakeWorkers(false))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if s.countdown(ctx, 10*time.Second) {
		t.Error("countdown should report cancellation")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled countdown took %v, should return immediately", elapsed)
	}
}

func TestShutdown_IsIdempotent(t *testing.T) {
	workers := newFakeWorkers(false)
	s, taskPath := newTestScheduler(t, pendingConfig("t01"), workers)

	loaded, _ := task.Load(taskPath)
	loaded.Find("t01").Status = task.StatusRunning
	task.Save(taskPath, loaded)

	if err := s.shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.shutdown(); err != nil {
		t.Fatalf("second shutdown should be a no-op: %v", err)
	}

	reloaded, _ := task.Load(taskPath)
	if reloaded.Find("t01").Status != task.StatusPending {
		t.Errorf("t01: got status %q, want pending", reloaded.Find("t01").Status)
	}
}
