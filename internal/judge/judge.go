// Package judge applies a rubric to a candidate report, scoring each
// dimension with one LLM call and combining them into a weighted aggregate.
package judge

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/parse"
	"github.com/arbiterhq/arbiter/internal/service"
)

// UnparsableScoreError rejects a dimension whose response could not be
// coerced to an in-range number, even after one corrective re-prompt.
type UnparsableScoreError struct {
	TaskID    string
	Dimension string
	Reason    string
}

func (e *UnparsableScoreError) Error() string {
	return fmt.Sprintf("unparsable score for task %s dimension %s: %s", e.TaskID, e.Dimension, e.Reason)
}

// IsUnparsable reports whether err is a score parse rejection.
func IsUnparsable(err error) bool {
	var target *UnparsableScoreError
	return errors.As(err, &target)
}

// dimensionParallelism bounds concurrent dimension scoring within one
// report; the outer layers already fan out across reports.
const dimensionParallelism = 4

// Judge scores reports point-wise against a rubric.
type Judge struct {
	client service.Invoker
	cfg    model.JudgeConfig
}

// New creates a judge.
func New(client service.Invoker, cfg model.JudgeConfig) *Judge {
	return &Judge{client: client, cfg: cfg}
}

// Score evaluates the report against every rubric dimension and returns the
// per-dimension scores plus the weighted aggregate, on the configured score
// range. The rubric snapshot is embedded in the result so the aggregate
// stays reproducible.
func (j *Judge) Score(ctx context.Context, task model.Task, rubric *model.Rubric, report model.CandidateReport) (*model.JudgeResult, error) {
	scores := make([]model.DimensionScore, len(rubric.Dimensions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dimensionParallelism)
	for i, dim := range rubric.Dimensions {
		i, dim := i, dim
		g.Go(func() error {
			ds, err := j.scoreDimension(gctx, task, rubric, dim, report)
			if err != nil {
				return err
			}
			scores[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggregate := 0.0
	for _, ds := range scores {
		aggregate += ds.Score * rubric.Weights[ds.Name]
	}

	return &model.JudgeResult{
		Rubric:    rubric,
		Scores:    scores,
		Aggregate: aggregate,
	}, nil
}

// scoreDimension issues the scoring call for one dimension, with one
// corrective re-prompt when the response does not parse.
func (j *Judge) scoreDimension(ctx context.Context, task model.Task, rubric *model.Rubric, dim model.Dimension, report model.CandidateReport) (model.DimensionScore, error) {
	prompt := buildScorePrompt(task, dim, rubric.Criteria[dim.Name], report, j.cfg)

	resp, err := j.client.Invoke(ctx, service.Request{
		Capability:  service.CapabilityLLM,
		System:      scoreSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   j.cfg.MaxTokens,
		Temperature: j.cfg.Temperature,
	})
	if err != nil {
		return model.DimensionScore{}, fmt.Errorf("score dimension %s: %w", dim.Name, err)
	}

	ds, parseErr := j.parseDimensionScore(dim, rubric.Criteria[dim.Name], resp.Text)
	if parseErr == nil {
		return ds, nil
	}

	// One corrective attempt with the parse failure spelled out.
	resp, err = j.client.Invoke(ctx, service.Request{
		Capability:  service.CapabilityLLM,
		System:      scoreSystemPrompt,
		Prompt:      buildCorrectivePrompt(prompt, resp.Text, parseErr),
		MaxTokens:   j.cfg.MaxTokens,
		Temperature: j.cfg.Temperature,
	})
	if err != nil {
		return model.DimensionScore{}, fmt.Errorf("re-score dimension %s: %w", dim.Name, err)
	}

	ds, parseErr = j.parseDimensionScore(dim, rubric.Criteria[dim.Name], resp.Text)
	if parseErr != nil {
		return model.DimensionScore{}, &UnparsableScoreError{
			TaskID:    task.ID,
			Dimension: dim.Name,
			Reason:    parseErr.Error(),
		}
	}
	return ds, nil
}

type scoredCriterion struct {
	Criterion string  `json:"criterion"`
	Analysis  string  `json:"analysis"`
	Score     float64 `json:"score"`
}

type dimensionResponse struct {
	Analysis string            `json:"analysis"`
	Scores   []scoredCriterion `json:"scores"`
}

func (j *Judge) parseDimensionScore(dim model.Dimension, criteria []model.Criterion, raw string) (model.DimensionScore, error) {
	var parsed dimensionResponse
	if err := parse.Object(raw, &parsed); err != nil {
		return model.DimensionScore{}, err
	}
	if len(parsed.Scores) == 0 {
		return model.DimensionScore{}, fmt.Errorf("no criterion scores in response")
	}

	min, max := j.cfg.ScoreMin, j.cfg.ScoreMax
	if max <= min {
		min, max = 0, 10
	}

	total := 0.0
	breakdown := make([]model.CriterionScore, 0, len(parsed.Scores))
	for _, sc := range parsed.Scores {
		if sc.Score < min || sc.Score > max {
			return model.DimensionScore{}, fmt.Errorf("score %.2f outside [%g,%g]", sc.Score, min, max)
		}
		total += sc.Score
		breakdown = append(breakdown, model.CriterionScore{Text: sc.Criterion, Score: sc.Score})
	}

	return model.DimensionScore{
		Name:     dim.Name,
		Score:    total / float64(len(parsed.Scores)),
		Analysis: parsed.Analysis,
		Criteria: breakdown,
	}, nil
}
