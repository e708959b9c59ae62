package model

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Task is a single deep-research task produced by the generation pipeline.
// Tasks are immutable: the evaluator consumes them read-only.
type Task struct {
	ID          string `json:"id"`
	Domain      string `json:"domain,omitempty"`
	Persona     string `json:"persona,omitempty"`     // Expert persona context used during generation
	Prompt      string `json:"prompt"`                // The research task text
	Difficulty  string `json:"difficulty,omitempty"`  // Generation-time difficulty label
	NeedsSearch bool   `json:"needs_search,omitempty"` // Passed the deep-search-necessity filter
}

// CandidateReport is one method's answer to a task.
type CandidateReport struct {
	TaskID    string   `json:"task_id"`
	Method    string   `json:"method"`              // Identifier of the producing system
	Body      string   `json:"body"`                // Free-text report
	Citations []string `json:"citations,omitempty"` // Optional citation URLs
}

// LoadTasks reads tasks from a JSONL file (one JSON object per line).
// Blank lines and # comments are skipped; duplicate task ids keep the first
// occurrence.
func LoadTasks(path string) ([]Task, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tasks: %w", err)
	}
	defer func() { _ = file.Close() }()

	var tasks []Task
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(text), &task); err != nil {
			return nil, fmt.Errorf("parse task at line %d: %w", line, err)
		}
		if task.ID == "" {
			return nil, fmt.Errorf("task at line %d has no id", line)
		}
		if task.Prompt == "" {
			return nil, fmt.Errorf("task %q has no prompt", task.ID)
		}

		if !seen[task.ID] {
			seen[task.ID] = true
			tasks = append(tasks, task)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}

	return tasks, nil
}

// reportFile is the on-disk shape of a method's reports: task id -> report.
type reportFile map[string]struct {
	Body      string   `json:"body"`
	Citations []string `json:"citations,omitempty"`
}

// LoadReports reads one method's reports from a JSON file mapping task id to
// report body plus optional citations.
func LoadReports(path, method string) ([]CandidateReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open reports: %w", err)
	}

	var raw reportFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse reports %s: %w", path, err)
	}

	reports := make([]CandidateReport, 0, len(raw))
	for taskID, entry := range raw {
		reports = append(reports, CandidateReport{
			TaskID:    taskID,
			Method:    method,
			Body:      entry.Body,
			Citations: entry.Citations,
		})
	}
	return reports, nil
}
