package task

import "encoding/json"

// Task represents a single unit of work assigned to one worker process.
type Task struct {
	ID                 string
	Title              string
	Description        string
	AcceptanceCriteria []string
	Status             string

	// Extra holds caller-defined fields we don't interpret. They survive
	// load/save untouched so external tools can annotate the task file.
	Extra map[string]json.RawMessage
}

// Task status constants
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Terminal reports whether the task has reached a final status.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// knownTaskKeys are the fields Task interprets; everything else is Extra.
var knownTaskKeys = map[string]bool{
	"id":                 true,
	"title":              true,
	"description":        true,
	"acceptanceCriteria": true,
	"status":             true,
}

// UnmarshalJSON decodes the known fields and stashes everything else in Extra.
func (t *Task) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	for key, raw := range fields {
		var err error
		switch key {
		case "id":
			err = json.Unmarshal(raw, &t.ID)
		case "title":
			err = json.Unmarshal(raw, &t.Title)
		case "description":
			err = json.Unmarshal(raw, &t.Description)
		case "acceptanceCriteria":
			err = json.Unmarshal(raw, &t.AcceptanceCriteria)
		case "status":
			err = json.Unmarshal(raw, &t.Status)
		default:
			if t.Extra == nil {
				t.Extra = make(map[string]json.RawMessage)
			}
			t.Extra[key] = raw
		}
		if err != nil {
			return err
		}
	}

	if t.Status == "" {
		t.Status = StatusPending
	}
	return nil
}

// MarshalJSON re-emits the known fields alongside the preserved Extra fields.
// Keys come out in deterministic (sorted) order so saved files diff cleanly.
func (t Task) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(t.Extra)+5)
	for key, raw := range t.Extra {
		if !knownTaskKeys[key] {
			fields[key] = raw
		}
	}

	set := func(key string, v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[key] = raw
		return nil
	}

	if err := set("id", t.ID); err != nil {
		return nil, err
	}
	if err := set("status", t.Status); err != nil {
		return nil, err
	}
	if t.Title != "" {
		if err := set("title", t.Title); err != nil {
			return nil, err
		}
	}
	if t.Description != "" {
		if err := set("description", t.Description); err != nil {
			return nil, err
		}
	}
	if len(t.AcceptanceCriteria) > 0 {
		if err := set("acceptanceCriteria", t.AcceptanceCriteria); err != nil {
			return nil, err
		}
	}

	return json.Marshal(fields)
}
