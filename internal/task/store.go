package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrMalformed indicates the task file is not usable this cycle: invalid
// JSON or no tasks array. An external writer may be mid-write, so callers
// should skip the cycle and retry rather than abort.
var ErrMalformed = errors.New("malformed task file")

// Load reads and parses the task file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	// Probe for the tasks array before decoding the full document. A file
	// without one is either mid-write or not a ralph task file at all.
	var probe struct {
		Tasks *json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if probe.Tasks == nil {
		return nil, fmt.Errorf("%w: missing tasks array", ErrMalformed)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &cfg, nil
}

// Save atomically rewrites the full task file with pretty formatting so
// external tools and humans can diff it. Every mutation rewrites the whole
// document; partial patches risk lost updates.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task file: %w", err)
	}
	data = append(data, '\n')

	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ResetStaleRunning forces any task still marked running back to pending and
// returns how many were reset. Used on startup after a crash: liveness
// recorded by a previous process can't be trusted. This is the one sanctioned
// backward status transition.
func ResetStaleRunning(cfg *Config) int {
	reset := 0
	for i := range cfg.Tasks {
		if cfg.Tasks[i].Status == StatusRunning {
			cfg.Tasks[i].Status = StatusPending
			reset++
		}
	}
	return reset
}
