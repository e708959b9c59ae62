package extract

import (
	"context"
	"fmt"
	"testing"

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

func TestExtractor_EmptyReportYieldsNoClaims(t *testing.T) {
	invoker := &scriptedInvoker{}
	ex := NewExtractor(invoker, 0)

	claims, err := ex.Extract(context.Background(), model.CandidateReport{TaskID: "t1", Body: "   \n  "})
	if err != nil {
		t.Fatalf("Expected no error for empty report, got %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("Expected 0 claims, got %d", len(claims))
	}
	if invoker.calls != 0 {
		t.Errorf("Expected no LLM calls for empty report, got %d", invoker.calls)
	}
}

func TestExtractor_ExtractsClaimsPerPart(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{
		`["Solar capacity doubled between 2019 and 2023.", "Grid storage lags behind."]`,
		`[{"text": "Global solar capacity doubled between 2019 and 2023", "had_citation": true}]`,
		`[{"text": "Grid-scale storage deployment has not kept pace with solar growth", "had_citation": false}]`,
	}}
	ex := NewExtractor(invoker, 0)

	claims, err := ex.Extract(context.Background(), model.CandidateReport{
		TaskID: "t1",
		Body:   "Solar capacity doubled between 2019 and 2023. Grid storage lags behind.",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(claims))
	}
	if claims[0].Part != 0 || claims[1].Part != 1 {
		t.Errorf("Expected part indices 0 and 1, got %d and %d", claims[0].Part, claims[1].Part)
	}
	if !claims[0].HadCitation {
		t.Error("Expected first claim to keep had_citation=true")
	}
	if claims[1].HadCitation {
		t.Error("Expected uncited assertion to still be a claim with had_citation=false")
	}
	if invoker.calls != 3 {
		t.Errorf("Expected 3 LLM calls (1 segment + 2 parts), got %d", invoker.calls)
	}
}

func TestExtractor_SegmentationFallbackToWholeReport(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{
		`I could not split this report.`,
		`[{"text": "The treaty was signed in 1990", "had_citation": false}]`,
	}}
	ex := NewExtractor(invoker, 0)

	claims, err := ex.Extract(context.Background(), model.CandidateReport{TaskID: "t1", Body: "The treaty was signed in 1990."})
	if err != nil {
		t.Fatalf("Expected fallback to single part, got %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("Expected 1 claim, got %d", len(claims))
	}
	if claims[0].Part != 0 {
		t.Errorf("Expected claim in part 0, got %d", claims[0].Part)
	}
	if invoker.calls != 2 {
		t.Errorf("Expected 2 LLM calls, got %d", invoker.calls)
	}
}

func TestExtractor_DedupesRepeatedClaims(t *testing.T) {
	invoker := &scriptedInvoker{responses: []string{
		`["First part.", "Second part."]`,
		`[{"text": "The treaty was signed in 1990", "had_citation": false}]`,
		`[{"text": "the treaty was signed in 1990", "had_citation": false}]`,
	}}
	ex := NewExtractor(invoker, 0)

	claims, err := ex.Extract(context.Background(), model.CandidateReport{TaskID: "t1", Body: "First part. Second part."})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("Expected duplicate claims collapsed to 1, got %d", len(claims))
	}
}

func TestExtractor_ServiceErrorPropagates(t *testing.T) {
	invoker := &scriptedInvoker{err: &service.ServiceUnavailableError{Capability: service.CapabilityLLM, Attempts: 4}}
	ex := NewExtractor(invoker, 0)

	_, err := ex.Extract(context.Background(), model.CandidateReport{TaskID: "t1", Body: "Some report text."})
	if !service.IsUnavailable(err) {
		t.Fatalf("Expected service unavailability to surface, got %v", err)
	}
}
