package model

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadTasks(t *testing.T) {
	path := writeFile(t, "tasks.jsonl", `
{"id": "t1", "prompt": "first task", "domain": "energy"}
# a comment line

{"id": "t2", "prompt": "second task", "needs_search": true}
{"id": "t1", "prompt": "duplicate, should be ignored"}
`)

	tasks, err := LoadTasks(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks after dedup, got %d", len(tasks))
	}
	if tasks[0].ID != "t1" || tasks[0].Prompt != "first task" {
		t.Errorf("Expected first occurrence of t1 kept, got %+v", tasks[0])
	}
	if !tasks[1].NeedsSearch {
		t.Error("Expected needs_search preserved on t2")
	}
}

func TestLoadTasks_MissingID(t *testing.T) {
	path := writeFile(t, "tasks.jsonl", `{"prompt": "no id"}`)
	if _, err := LoadTasks(path); err == nil {
		t.Fatal("Expected error for task without id")
	}
}

func TestLoadTasks_MissingPrompt(t *testing.T) {
	path := writeFile(t, "tasks.jsonl", `{"id": "t1"}`)
	if _, err := LoadTasks(path); err == nil {
		t.Fatal("Expected error for task without prompt")
	}
}

func TestLoadReports(t *testing.T) {
	path := writeFile(t, "reports.json", `{
  "t1": {"body": "report one", "citations": ["https://example.org"]},
  "t2": {"body": "report two"}
}`)

	reports, err := LoadReports(path, "baseline")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(reports))
	}
	for _, r := range reports {
		if r.Method != "baseline" {
			t.Errorf("Expected method baseline, got %q", r.Method)
		}
	}
}

func TestLoadReports_BadJSON(t *testing.T) {
	path := writeFile(t, "reports.json", `not json`)
	if _, err := LoadReports(path, "baseline"); err == nil {
		t.Fatal("Expected error for malformed report file")
	}
}
