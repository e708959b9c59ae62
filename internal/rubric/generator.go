// Package rubric derives task-specific scoring rubrics: which dimensions to
// score, the criteria per dimension, and normalized weights. Rubrics are
// cached per task id and reused across evaluation runs.
package rubric

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arbiterhq/arbiter/internal/cache"
	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/parse"
	"github.com/arbiterhq/arbiter/internal/service"
)

// MalformedRubricError rejects a rubric the model produced that cannot be
// repaired into a valid one.
type MalformedRubricError struct {
	TaskID string
	Reason string
}

func (e *MalformedRubricError) Error() string {
	return fmt.Sprintf("malformed rubric for task %s: %s", e.TaskID, e.Reason)
}

// GenerationFailedError wraps an underlying service failure. Fatal for the
// task's judge branch; not retried beyond the service client's own budget.
type GenerationFailedError struct {
	TaskID string
	Err    error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("rubric generation failed for task %s: %v", e.TaskID, e.Err)
}

func (e *GenerationFailedError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is a rubric validation rejection.
func IsMalformed(err error) bool {
	var target *MalformedRubricError
	return errors.As(err, &target)
}

// FixedDimensions returns the four standard dimensions every rubric starts
// from. Task-specific dimensions are added on top.
func FixedDimensions() []model.Dimension {
	return []model.Dimension{
		{Name: "coverage", Description: "Breadth, depth, and relevance of coverage"},
		{Name: "insight", Description: "Depth, originality, logic, and value of analysis"},
		{Name: "instruction_following", Description: "Accuracy in meeting all requirements"},
		{Name: "clarity", Description: "Readability, fluency, structure, and ease of understanding"},
	}
}

// Generator builds rubrics through the service client and the cache store.
type Generator struct {
	client service.Invoker
	store  *cache.RubricStore // nil disables caching
	cfg    model.JudgeConfig
}

// NewGenerator creates a generator. store may be nil to disable caching.
func NewGenerator(client service.Invoker, store *cache.RubricStore, cfg model.JudgeConfig) *Generator {
	return &Generator{client: client, store: store, cfg: cfg}
}

// Generate returns the rubric for a task, from cache when available. A cache
// hit issues no LLM calls and returns the cached rubric verbatim.
func (g *Generator) Generate(ctx context.Context, task model.Task) (*model.Rubric, error) {
	if g.store != nil {
		if cached, ok := g.store.Get(task.ID); ok {
			return cached, nil
		}
	}

	extra, err := g.generateDimensions(ctx, task)
	if err != nil {
		return nil, err
	}

	dims := mergeDimensions(FixedDimensions(), extra)
	if len(dims) < 2 {
		return nil, &MalformedRubricError{TaskID: task.ID, Reason: fmt.Sprintf("only %d dimensions", len(dims))}
	}

	criteria, rawWeights, err := g.generateCriteria(ctx, task, dims)
	if err != nil {
		return nil, err
	}

	for _, dim := range dims {
		if len(criteria[dim.Name]) == 0 {
			return nil, &MalformedRubricError{TaskID: task.ID, Reason: fmt.Sprintf("dimension %q has no criteria", dim.Name)}
		}
	}

	weights, err := NormalizeWeights(rawWeights)
	if err != nil {
		return nil, &MalformedRubricError{TaskID: task.ID, Reason: fmt.Sprintf("weights: %v", err)}
	}

	rubric := &model.Rubric{
		TaskID:     task.ID,
		Dimensions: dims,
		Criteria:   criteria,
		Weights:    weights,
	}
	if !rubric.WeightsNormalized() {
		return nil, &MalformedRubricError{TaskID: task.ID, Reason: fmt.Sprintf("weight sum %.6f not within epsilon of 1", rubric.WeightSum())}
	}

	if g.store != nil {
		if err := g.store.Put(task.ID, rubric); err != nil {
			// Persisting is best-effort; the rubric itself is still valid.
			return rubric, nil
		}
	}
	return rubric, nil
}

func (g *Generator) generateDimensions(ctx context.Context, task model.Task) ([]model.Dimension, error) {
	resp, err := g.client.Invoke(ctx, service.Request{
		Capability:  service.CapabilityLLM,
		System:      dimensionSystemPrompt,
		Prompt:      buildDimensionPrompt(task),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return nil, &GenerationFailedError{TaskID: task.ID, Err: err}
	}

	var parsed []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := parse.Array(resp.Text, &parsed); err != nil {
		return nil, &MalformedRubricError{TaskID: task.ID, Reason: fmt.Sprintf("dimensions: %v", err)}
	}

	var dims []model.Dimension
	for _, d := range parsed {
		name := NormalizeName(d.Name)
		if name == "" {
			continue
		}
		dims = append(dims, model.Dimension{Name: name, Description: strings.TrimSpace(d.Description)})
	}
	return dims, nil
}

func (g *Generator) generateCriteria(ctx context.Context, task model.Task, dims []model.Dimension) (map[string][]model.Criterion, map[string]float64, error) {
	resp, err := g.client.Invoke(ctx, service.Request{
		Capability:  service.CapabilityLLM,
		System:      criteriaSystemPrompt,
		Prompt:      buildCriteriaPrompt(task, dims),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return nil, nil, &GenerationFailedError{TaskID: task.ID, Err: err}
	}

	var parsed map[string]struct {
		Weight   float64 `json:"weight"`
		Criteria []struct {
			Text        string `json:"text"`
			ScoreAnchor string `json:"score_anchor"`
		} `json:"criteria"`
	}
	if err := parse.Object(resp.Text, &parsed); err != nil {
		return nil, nil, &MalformedRubricError{TaskID: task.ID, Reason: fmt.Sprintf("criteria: %v", err)}
	}

	criteria := make(map[string][]model.Criterion, len(dims))
	rawWeights := make(map[string]float64, len(dims))
	for _, dim := range dims {
		entry, ok := lookupNormalized(parsed, dim.Name)
		if !ok {
			return nil, nil, &MalformedRubricError{TaskID: task.ID, Reason: fmt.Sprintf("no criteria returned for dimension %q", dim.Name)}
		}
		for _, c := range entry.Criteria {
			text := strings.TrimSpace(c.Text)
			if text == "" {
				continue
			}
			criteria[dim.Name] = append(criteria[dim.Name], model.Criterion{
				Text:        text,
				ScoreAnchor: strings.TrimSpace(c.ScoreAnchor),
			})
		}
		rawWeights[dim.Name] = entry.Weight
	}
	return criteria, rawWeights, nil
}

// lookupNormalized finds a response entry whose key normalizes to name.
func lookupNormalized[V any](m map[string]V, name string) (V, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if NormalizeName(k) == name {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// NormalizeName lowercases a dimension name and joins words with
// underscores, so "Source Diversity" and "source-diversity" collide.
func NormalizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	return strings.Join(strings.Fields(name), "_")
}

// mergeDimensions appends extras to the fixed set, dropping duplicates by
// normalized name and keeping first-seen order.
func mergeDimensions(fixed, extra []model.Dimension) []model.Dimension {
	seen := make(map[string]bool, len(fixed)+len(extra))
	var out []model.Dimension
	for _, d := range append(append([]model.Dimension{}, fixed...), extra...) {
		name := NormalizeName(d.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		d.Name = name
		out = append(out, d)
	}
	return out
}
