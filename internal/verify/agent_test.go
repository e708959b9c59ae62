package verify

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/service"
)

// fakeService routes scripted responses by capability and prompt shape.
type fakeService struct {
	mu sync.Mutex

	plan      string // Response to query planning
	verdicts  []string
	refine    string
	results   map[string][]service.SearchResult
	searchErr error

	searchCalls  int
	verdictCalls int
}

func (f *fakeService) Invoke(ctx context.Context, req service.Request) (*service.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req.Capability == service.CapabilitySearch {
		f.searchCalls++
		if f.searchErr != nil {
			return nil, f.searchErr
		}
		return &service.Response{Results: f.results[req.Query]}, nil
	}

	switch {
	case strings.Contains(req.Prompt, "<evidence>"):
		i := f.verdictCalls
		f.verdictCalls++
		if i >= len(f.verdicts) {
			i = len(f.verdicts) - 1
		}
		return &service.Response{Text: f.verdicts[i]}, nil
	case strings.Contains(req.Prompt, "inconclusive"):
		return &service.Response{Text: f.refine}, nil
	default:
		return &service.Response{Text: f.plan}, nil
	}
}

func treatyClaim() model.Claim {
	return model.Claim{Text: "The treaty was signed in 1990", HadCitation: false}
}

func verifyConfig() model.VerifyConfig {
	return model.VerifyConfig{MaxRounds: 3, FanOut: 2, UnverifiableThreshold: 3}
}

func TestAgent_SupportedClaim(t *testing.T) {
	svc := &fakeService{
		plan: `["treaty signing date"]`,
		results: map[string][]service.SearchResult{
			"treaty signing date": {{Title: "Treaty history", URL: "https://example.org/treaty", Snippet: "The treaty was signed in 1990."}},
		},
		verdicts: []string{`{"verdict": "SUPPORTED", "confidence": 0.9, "rationale": "The snippet states the same year."}`},
	}
	agent := NewAgent(svc, nil, verifyConfig())

	v := agent.Verify(context.Background(), treatyClaim())
	if v.Verdict != model.VerdictSupported {
		t.Fatalf("Expected SUPPORTED, got %s", v.Verdict)
	}
	if v.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %v", v.Confidence)
	}
	if v.Rounds != 1 {
		t.Errorf("Expected 1 search round, got %d", v.Rounds)
	}
	if len(v.Evidence) == 0 || v.Evidence[0].Snippet == "" {
		t.Error("Expected evidence with the supporting snippet attached")
	}
}

func TestAgent_ContradictingEvidence(t *testing.T) {
	svc := &fakeService{
		plan: `["treaty signing year"]`,
		results: map[string][]service.SearchResult{
			"treaty signing year": {{Title: "Archive", URL: "https://example.org/a", Snippet: "Records show the treaty was signed in 1991."}},
		},
		verdicts: []string{`{"verdict": "CONTRADICTED", "confidence": 0.85, "rationale": "Evidence gives 1991, the claim says 1990."}`},
	}
	agent := NewAgent(svc, nil, verifyConfig())

	v := agent.Verify(context.Background(), treatyClaim())
	if v.Verdict != model.VerdictContradicted {
		t.Fatalf("Expected CONTRADICTED, got %s", v.Verdict)
	}
}

func TestAgent_SearchFailureYieldsUnverifiable(t *testing.T) {
	svc := &fakeService{
		plan:      `["treaty signing date"]`,
		searchErr: &service.ServiceUnavailableError{Capability: service.CapabilitySearch, Attempts: 4},
	}
	agent := NewAgent(svc, nil, verifyConfig())

	v := agent.Verify(context.Background(), treatyClaim())
	if v.Verdict != model.VerdictUnverifiable {
		t.Fatalf("Expected UNVERIFIABLE after search exhaustion, got %s", v.Verdict)
	}
	if v.Confidence != 0 {
		t.Errorf("Expected confidence 0, got %v", v.Confidence)
	}
	if len(v.Evidence) == 0 || v.Evidence[0].Failure == "" {
		t.Error("Expected the search failure recorded in evidence metadata")
	}
	if v.Rounds != 1 {
		t.Errorf("Expected no refinement rounds after total search failure, got %d", v.Rounds)
	}
}

func TestAgent_RefinesInconclusiveRound(t *testing.T) {
	svc := &fakeService{
		plan: `["vague query"]`,
		results: map[string][]service.SearchResult{
			"vague query":   {{Title: "Off topic", URL: "https://example.org/x", Snippet: "Unrelated text."}},
			"sharper query": {{Title: "On topic", URL: "https://example.org/y", Snippet: "The treaty was signed in 1990."}},
		},
		refine: `["sharper query"]`,
		verdicts: []string{
			`{"verdict": "UNVERIFIABLE", "confidence": 0.2, "rationale": "Evidence is off topic."}`,
			`{"verdict": "SUPPORTED", "confidence": 0.8, "rationale": "Second round found the date."}`,
		},
	}
	agent := NewAgent(svc, nil, verifyConfig())

	v := agent.Verify(context.Background(), treatyClaim())
	if v.Verdict != model.VerdictSupported {
		t.Fatalf("Expected SUPPORTED after refinement, got %s", v.Verdict)
	}
	if v.Rounds != 2 {
		t.Errorf("Expected 2 rounds, got %d", v.Rounds)
	}
	if svc.searchCalls != 2 {
		t.Errorf("Expected 2 search calls, got %d", svc.searchCalls)
	}
}

func TestAgent_RoundsBounded(t *testing.T) {
	svc := &fakeService{
		plan: `["q"]`,
		results: map[string][]service.SearchResult{
			"q":  {{Title: "t", URL: "u", Snippet: "noise"}},
			"q2": {{Title: "t", URL: "u", Snippet: "more noise"}},
		},
		refine:   `["q2"]`,
		verdicts: []string{`{"verdict": "UNVERIFIABLE", "confidence": 0.1, "rationale": "Nothing conclusive."}`},
	}
	agent := NewAgent(svc, nil, verifyConfig())

	v := agent.Verify(context.Background(), treatyClaim())
	if v.Verdict != model.VerdictUnverifiable {
		t.Fatalf("Expected UNVERIFIABLE, got %s", v.Verdict)
	}
	if v.Rounds != 3 {
		t.Errorf("Expected rounds capped at 3, got %d", v.Rounds)
	}
}

func TestAgent_SearchResultsCached(t *testing.T) {
	svc := &fakeService{
		plan: `["shared query"]`,
		results: map[string][]service.SearchResult{
			"shared query": {{Title: "t", URL: "u", Snippet: "The treaty was signed in 1990."}},
		},
		verdicts: []string{`{"verdict": "SUPPORTED", "confidence": 0.9, "rationale": "Matches."}`},
	}
	agent := NewAgent(svc, nil, verifyConfig())

	agent.Verify(context.Background(), treatyClaim())
	agent.Verify(context.Background(), treatyClaim())

	if svc.searchCalls != 1 {
		t.Errorf("Expected second identical query served from cache, got %d search calls", svc.searchCalls)
	}
}

func TestAgent_StateTransitions(t *testing.T) {
	svc := &fakeService{
		plan: `["q"]`,
		results: map[string][]service.SearchResult{
			"q": {{Title: "t", URL: "u", Snippet: "The treaty was signed in 1990."}},
		},
		verdicts: []string{`{"verdict": "SUPPORTED", "confidence": 0.9, "rationale": "Matches."}`},
	}
	agent := NewAgent(svc, nil, verifyConfig())

	var states []State
	agent.Trace = func(_ model.Claim, s State) { states = append(states, s) }

	agent.Verify(context.Background(), treatyClaim())

	want := []State{StateExtracted, StateQueryPlanned, StateSearching, StateEvidenceGathered, StateVerdictIssued}
	if len(states) != len(want) {
		t.Fatalf("Expected %d transitions, got %d: %v", len(want), len(states), states)
	}
	for i, s := range want {
		if states[i] != s {
			t.Errorf("Expected transition %d to be %s, got %s", i, s, states[i])
		}
	}
}

func TestAgent_UnknownVerdictDefaultsToUnverifiable(t *testing.T) {
	svc := &fakeService{
		plan: `["q"]`,
		results: map[string][]service.SearchResult{
			"q": {{Title: "t", URL: "u", Snippet: "snippet"}},
		},
		verdicts: []string{`{"verdict": "MAYBE", "confidence": 0.7, "rationale": "Unsure."}`},
	}
	agent := NewAgent(svc, nil, model.VerifyConfig{MaxRounds: 1, FanOut: 1})

	v := agent.Verify(context.Background(), treatyClaim())
	if v.Verdict != model.VerdictUnverifiable {
		t.Errorf("Expected unknown verdict coerced to UNVERIFIABLE, got %s", v.Verdict)
	}
}

func TestVerifyAll_PreservesClaimOrder(t *testing.T) {
	svc := &fakeService{
		plan: `["q"]`,
		results: map[string][]service.SearchResult{
			"q": {{Title: "t", URL: "u", Snippet: "The treaty was signed in 1990."}},
		},
		verdicts: []string{`{"verdict": "SUPPORTED", "confidence": 0.9, "rationale": "Matches."}`},
	}
	agent := NewAgent(svc, nil, verifyConfig())

	claims := []model.Claim{
		{Text: "The treaty was signed in 1990", Part: 0},
		{Text: "Ratification followed in 1992", Part: 1},
	}
	verdicts := agent.VerifyAll(context.Background(), claims)

	if len(verdicts) != 2 {
		t.Fatalf("Expected 2 verdicts, got %d", len(verdicts))
	}
	for i := range claims {
		if verdicts[i].Claim.Text != claims[i].Text {
			t.Errorf("Expected verdict %d for claim %q, got %q", i, claims[i].Text, verdicts[i].Claim.Text)
		}
	}
}
