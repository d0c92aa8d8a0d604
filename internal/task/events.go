package task

import (
	"encoding/json"
	"os"
	"time"
)

// Event type constants for the run event log.
const (
	EventRunStarted     = "run_started"
	EventRunCompleted   = "run_completed"
	EventRunInterrupted = "run_interrupted"
	EventTaskStarted    = "task_started"
	EventTaskCompleted  = "task_completed"
	EventTaskFailed     = "task_failed"
)

// Event is a single run history entry.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventLog appends run events to a JSON Lines file. It is the durable
// history of what the orchestrator did; the task file only holds the
// current status.
type EventLog struct {
	path string
}

// NewEventLog creates an event log writer for the given file path.
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path}
}

// Log appends one event to the log file.
func (l *EventLog) Log(event string, data map[string]interface{}) error {
	entry := Event{
		Timestamp: time.Now(),
		Event:     event,
		Data:      data,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	jsonBytes = append(jsonBytes, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(jsonBytes)
	return err
}

// RunStarted logs a run_started event.
func (l *EventLog) RunStarted(project string, totalTasks int) error {
	return l.Log(EventRunStarted, map[string]interface{}{
		"project":     project,
		"total_tasks": totalTasks,
	})
}

// TaskStarted logs a task_started event.
func (l *EventLog) TaskStarted(taskID string, pid int) error {
	return l.Log(EventTaskStarted, map[string]interface{}{
		"task_id": taskID,
		"pid":     pid,
	})
}

// TaskCompleted logs a task_completed event.
func (l *EventLog) TaskCompleted(taskID string) error {
	return l.Log(EventTaskCompleted, map[string]interface{}{
		"task_id": taskID,
	})
}

// TaskFailed logs a task_failed event.
func (l *EventLog) TaskFailed(taskID string, exitCode int) error {
	return l.Log(EventTaskFailed, map[string]interface{}{
		"task_id":   taskID,
		"exit_code": exitCode,
	})
}

// RunCompleted logs a run_completed event with summary statistics.
func (l *EventLog) RunCompleted(completed, failed int, duration time.Duration) error {
	return l.Log(EventRunCompleted, map[string]interface{}{
		"completed":   completed,
		"failed":      failed,
		"duration_ms": duration.Milliseconds(),
	})
}

// RunInterrupted logs a run_interrupted event.
func (l *EventLog) RunInterrupted(resetTasks int) error {
	return l.Log(EventRunInterrupted, map[string]interface{}{
		"reset_tasks": resetTasks,
	})
}
