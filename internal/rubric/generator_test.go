package rubric

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/arbiterhq/arbiter/internal/cache"
	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/service"
)

// scriptedInvoker returns canned responses in order and counts calls.
type scriptedInvoker struct {
	calls     int
	responses []string
	err       error
}

func (s *scriptedInvoker) Invoke(ctx context.Context, req service.Request) (*service.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.calls > len(s.responses) {
		return nil, fmt.Errorf("unexpected call %d", s.calls)
	}
	return &service.Response{Text: s.responses[s.calls-1]}, nil
}

const dimensionsResponse = `[
  {"name": "Source Diversity", "description": "Range of independent sources consulted"}
]`

func criteriaResponse(names []string) string {
	var entries []string
	for _, name := range names {
		entries = append(entries, fmt.Sprintf(
			`"%s": {"weight": 2, "criteria": [{"text": "Check for %s", "score_anchor": "High covers it fully"}]}`,
			name, name))
	}
	return "{" + strings.Join(entries, ",") + "}"
}

func allDimNames() []string {
	names := make([]string, 0, 5)
	for _, d := range FixedDimensions() {
		names = append(names, d.Name)
	}
	return append(names, "source_diversity")
}

func testTask() model.Task {
	return model.Task{ID: "t1", Prompt: "Survey the economic impact of offshore wind in the Baltic region.", Domain: "energy"}
}

func TestGenerator_BuildsValidRubric(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{dimensionsResponse, criteriaResponse(allDimNames())}}
	gen := NewGenerator(invoker, nil, model.JudgeConfig{MaxTokens: 1024})

	rubric, err := gen.Generate(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(rubric.Dimensions) != 5 {
		t.Errorf("Expected 5 dimensions (4 fixed + 1 extra), got %d", len(rubric.Dimensions))
	}
	if _, ok := rubric.Dimension("source_diversity"); !ok {
		t.Error("Expected extra dimension 'source_diversity' with normalized name")
	}
	if !rubric.WeightsNormalized() {
		t.Errorf("Expected weight sum within 1e-6 of 1.0, got %v", rubric.WeightSum())
	}
	for _, dim := range rubric.Dimensions {
		if len(rubric.Criteria[dim.Name]) == 0 {
			t.Errorf("Expected criteria for dimension %q", dim.Name)
		}
	}
	if invoker.calls != 2 {
		t.Errorf("Expected 2 LLM calls, got %d", invoker.calls)
	}
}

func TestGenerator_CacheHitSkipsLLM(t *testing.T) {
	store := cache.NewRubricStore(cache.NewDiskCache(t.TempDir()))
	invoker := &scriptedInvoker{responses: []string{dimensionsResponse, criteriaResponse(allDimNames())}}
	gen := NewGenerator(invoker, store, model.JudgeConfig{})

	first, err := gen.Generate(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	callsAfterFirst := invoker.calls

	second, err := gen.Generate(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Expected no error on cached run, got %v", err)
	}

	if invoker.calls != callsAfterFirst {
		t.Errorf("Expected no additional LLM calls on cache hit, got %d extra", invoker.calls-callsAfterFirst)
	}
	if second.WeightSum() != first.WeightSum() {
		t.Errorf("Expected identical cached rubric, weight sums differ: %v vs %v", first.WeightSum(), second.WeightSum())
	}
	if len(second.Dimensions) != len(first.Dimensions) {
		t.Errorf("Expected identical dimensions, got %d vs %d", len(first.Dimensions), len(second.Dimensions))
	}
}

func TestGenerator_DeduplicatesDimensions(t *testing.T) {
	// The model repeats a fixed dimension under a different spelling.
	dims := `[
	  {"name": "Coverage", "description": "dup of fixed"},
	  {"name": "source-diversity", "description": "range of sources"}
	]`
	invoker := &scriptedInvoker{responses: []string{dims, criteriaResponse(allDimNames())}}
	gen := NewGenerator(invoker, nil, model.JudgeConfig{})

	rubric, err := gen.Generate(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	count := 0
	for _, d := range rubric.Dimensions {
		if d.Name == "coverage" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected 'coverage' exactly once, got %d", count)
	}
}

func TestGenerator_MissingCriteriaIsMalformed(t *testing.T) {
	// Criteria response omits the extra dimension entirely.
	fixedOnly := make([]string, 0, 4)
	for _, d := range FixedDimensions() {
		fixedOnly = append(fixedOnly, d.Name)
	}
	invoker := &scriptedInvoker{responses: []string{dimensionsResponse, criteriaResponse(fixedOnly)}}
	gen := NewGenerator(invoker, nil, model.JudgeConfig{})

	_, err := gen.Generate(context.Background(), testTask())
	if !IsMalformed(err) {
		t.Fatalf("Expected MalformedRubricError, got %v", err)
	}
}

func TestGenerator_NonNumericWeightsRejected(t *testing.T) {
	bad := `{"coverage": {"weight": "very important", "criteria": [{"text": "c"}]}}`
	invoker := &scriptedInvoker{responses: []string{`[]`, bad}}
	gen := NewGenerator(invoker, nil, model.JudgeConfig{})

	_, err := gen.Generate(context.Background(), testTask())
	if !IsMalformed(err) {
		t.Fatalf("Expected MalformedRubricError for non-numeric weights, got %v", err)
	}
}

func TestGenerator_ServiceFailurePropagates(t *testing.T) {
	invoker := &scriptedInvoker{err: &service.ServiceUnavailableError{Capability: service.CapabilityLLM, Attempts: 5, Err: fmt.Errorf("503")}}
	gen := NewGenerator(invoker, nil, model.JudgeConfig{})

	_, err := gen.Generate(context.Background(), testTask())
	var genErr *GenerationFailedError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected GenerationFailedError, got %v", err)
	}
	if !service.IsUnavailable(err) {
		t.Error("Expected wrapped ServiceUnavailableError to remain detectable")
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Source Diversity":  "source_diversity",
		"source-diversity":  "source_diversity",
		"  Coverage  ":      "coverage",
		"multi  word  name": "multi_word_name",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q): expected %q, got %q", in, want, got)
		}
	}
}
