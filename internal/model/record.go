package model

import "time"

// Status is the lifecycle state of an evaluation record.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPartial  Status = "PARTIAL"
	StatusComplete Status = "COMPLETE"
	StatusFailed   Status = "FAILED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CriterionScore is one criterion's score inside a dimension.
type CriterionScore struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// DimensionScore is the judge's score for one rubric dimension.
type DimensionScore struct {
	Name     string           `json:"name"`
	Score    float64          `json:"score"`
	Analysis string           `json:"analysis,omitempty"`
	Criteria []CriterionScore `json:"criteria,omitempty"`
}

// JudgeResult holds the point-wise judge branch outcome. The rubric used is
// embedded so the aggregate stays reproducible even if the cache is later
// cleared and regenerated.
type JudgeResult struct {
	Rubric    *Rubric          `json:"rubric"`
	Scores    []DimensionScore `json:"scores"`
	Aggregate float64          `json:"aggregate"`
}

// FactCheckResult holds the fact-check branch outcome.
type FactCheckResult struct {
	Summary  FactSummary    `json:"summary"`
	Verdicts []ClaimVerdict `json:"verdicts,omitempty"`
}

// EvaluationRecord is the final persisted outcome for one (task, method)
// pair. Only the orchestrator mutates it; either branch may be absent when
// it failed, with the error recorded next to it.
type EvaluationRecord struct {
	RunID     string           `json:"run_id"`
	TaskID    string           `json:"task_id"`
	Method    string           `json:"method"`
	Status    Status           `json:"status"`
	Judge     *JudgeResult     `json:"judge,omitempty"`
	JudgeErr  string           `json:"judge_error,omitempty"`
	Facts     *FactCheckResult `json:"facts,omitempty"`
	FactsErr  string           `json:"facts_error,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Key identifies the record within a record store.
func (r *EvaluationRecord) Key() string {
	return r.TaskID + "\x00" + r.Method
}

// RecordKey builds the store key for a (task, method) pair.
func RecordKey(taskID, method string) string {
	return taskID + "\x00" + method
}
