package task

import "time"

// Defaults applied when the task file omits a setting.
const (
	DefaultPromptFile    = "ralph-prompt.md"
	defaultCheckInterval = 15 * time.Second
)

// Config is the full task file document: project metadata, run settings,
// and the task list. The file is the permanent run ledger; tasks are never
// deleted, only their status changes.
type Config struct {
	Project     string     `json:"project"`
	Description string     `json:"description,omitempty"`
	MaxParallel int        `json:"maxParallel,omitempty"`
	// CheckInterval is in seconds. A pointer so an explicit 0 (busy poll)
	// is distinguishable from an absent field.
	CheckInterval *int       `json:"checkInterval,omitempty"`
	PromptFile    string     `json:"promptFile,omitempty"`
	Tasks         []Task     `json:"tasks"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// Parallel returns the effective concurrency limit (at least 1).
func (c *Config) Parallel() int {
	if c.MaxParallel < 1 {
		return 1
	}
	return c.MaxParallel
}

// PollInterval returns the effective delay between scheduling cycles.
func (c *Config) PollInterval() time.Duration {
	if c.CheckInterval == nil || *c.CheckInterval < 0 {
		return defaultCheckInterval
	}
	return time.Duration(*c.CheckInterval) * time.Second
}

// Prompt returns the effective prompt file path.
func (c *Config) Prompt() string {
	if c.PromptFile == "" {
		return DefaultPromptFile
	}
	return c.PromptFile
}

// Counts summarizes task statuses for one scheduling cycle.
type Counts struct {
	Completed int
	Running   int
	Failed    int
	Pending   int
	Unknown   int
	Total     int
}

// Counts tallies the current task statuses. Unrecognized statuses land in
// Unknown so the scheduler can detect a corrupted file instead of spinning.
func (c *Config) Counts() Counts {
	var n Counts
	n.Total = len(c.Tasks)
	for i := range c.Tasks {
		switch c.Tasks[i].Status {
		case StatusCompleted:
			n.Completed++
		case StatusRunning:
			n.Running++
		case StatusFailed:
			n.Failed++
		case StatusPending:
			n.Pending++
		default:
			n.Unknown++
		}
	}
	return n
}

// Find returns the task with the given id, or nil.
func (c *Config) Find(id string) *Task {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return &c.Tasks[i]
		}
	}
	return nil
}
