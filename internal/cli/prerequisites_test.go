package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pablasso/ralph/internal/testutil"
)

func TestCheckProjectMarker_Missing(t *testing.T) {
	testutil.SetupTestDir(t)

	err := checkProjectMarker()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), RalphDir) {
		t.Errorf("error should name the marker directory: %v", err)
	}
}

func TestCheckProjectMarker_Present(t *testing.T) {
	testutil.SetupTestDir(t)
	os.Mkdir(RalphDir, 0755)

	if err := checkProjectMarker(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckTaskFile_Missing(t *testing.T) {
	dir := testutil.SetupTestDir(t)

	err := checkTaskFile(filepath.Join(dir, "nope.json"), "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var prereq *PrerequisiteError
	if pe, ok := err.(*PrerequisiteError); ok {
		prereq = pe
	} else {
		t.Fatalf("expected PrerequisiteError, got %T", err)
	}
	if prereq.Check != "Task file" {
		t.Errorf("got check %q, want %q", prereq.Check, "Task file")
	}
}

func TestCheckTaskFile_Unparseable(t *testing.T) {
	dir := testutil.SetupTestDir(t)
	path := filepath.Join(dir, "ralph-tasks.json")
	os.WriteFile(path, []byte("{not json"), 0644)

	if err := checkTaskFile(path, ""); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestCheckTaskFile_MissingPromptFile(t *testing.T) {
	dir := testutil.SetupTestDir(t)
	path := filepath.Join(dir, "ralph-tasks.json")
	os.WriteFile(path, []byte(`{"project":"demo","tasks":[]}`), 0644)

	err := checkTaskFile(path, "")
	if err == nil {
		t.Fatal("expected error for missing prompt file, got nil")
	}
	if !strings.Contains(err.Error(), "Prompt file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckTaskFile_Valid(t *testing.T) {
	dir := testutil.SetupTestDir(t)
	taskPath := filepath.Join(dir, "ralph-tasks.json")
	os.WriteFile(taskPath, []byte(`{"project":"demo","tasks":[]}`), 0644)
	promptPath := filepath.Join(dir, "prompt.md")
	os.WriteFile(promptPath, []byte("do the thing"), 0644)

	if err := checkTaskFile(taskPath, promptPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPrerequisiteError_Message(t *testing.T) {
	err := &PrerequisiteError{
		Check:   "Worker executable",
		Message: "not found",
		Help:    "install it",
	}

	msg := err.Error()
	for _, want := range []string{"Worker executable", "not found", "install it"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}
