package task

import (
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config

	if cfg.Parallel() != 1 {
		t.Errorf("got parallel %d, want 1", cfg.Parallel())
	}
	if cfg.PollInterval() != 15*time.Second {
		t.Errorf("got poll interval %v, want 15s", cfg.PollInterval())
	}
	if cfg.Prompt() != DefaultPromptFile {
		t.Errorf("got prompt %q, want %q", cfg.Prompt(), DefaultPromptFile)
	}
}

func TestConfigPollInterval_ExplicitZero(t *testing.T) {
	zero := 0
	cfg := Config{CheckInterval: &zero}
	if cfg.PollInterval() != 0 {
		t.Errorf("explicit 0 should mean no delay, got %v", cfg.PollInterval())
	}
}

func TestConfigCounts(t *testing.T) {
	cfg := Config{
		Tasks: []Task{
			{Status: StatusCompleted},
			{Status: StatusCompleted},
			{Status: StatusRunning},
			{Status: StatusFailed},
			{Status: StatusPending},
			{Status: "bogus"},
		},
	}

	counts := cfg.Counts()
	if counts.Completed != 2 || counts.Running != 1 || counts.Failed != 1 ||
		counts.Pending != 1 || counts.Unknown != 1 || counts.Total != 6 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

func TestConfigFind(t *testing.T) {
	cfg := Config{Tasks: []Task{{ID: "t01"}, {ID: "t02"}}}

	if got := cfg.Find("t02"); got == nil || got.ID != "t02" {
		t.Errorf("Find(t02) = %+v", got)
	}
	if got := cfg.Find("t99"); got != nil {
		t.Errorf("Find(t99) should be nil, got %+v", got)
	}

	// Find returns a pointer into the slice; mutations must stick.
	cfg.Find("t01").Status = StatusRunning
	if cfg.Tasks[0].Status != StatusRunning {
		t.Error("Find should return a pointer into Tasks")
	}
}
