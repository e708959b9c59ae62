package verify

import (
	"testing"

	"github.com/arbiterhq/arbiter/internal/model"
)

func verdict(text string, v model.Verdict) model.ClaimVerdict {
	return model.ClaimVerdict{Claim: model.Claim{Text: text}, Verdict: v, Confidence: 0.8}
}

func TestSummarize_Counts(t *testing.T) {
	verdicts := []model.ClaimVerdict{
		verdict("a", model.VerdictSupported),
		verdict("b", model.VerdictSupported),
		verdict("c", model.VerdictContradicted),
		verdict("d", model.VerdictUnverifiable),
	}
	s := Summarize(verdicts, 3)

	if s.Supported != 2 || s.Contradicted != 1 || s.Unverifiable != 1 {
		t.Errorf("Expected counts 2/1/1, got %d/%d/%d", s.Supported, s.Contradicted, s.Unverifiable)
	}
	if s.Score == nil {
		t.Fatal("Expected a factuality score for a non-empty verdict set")
	}
	if *s.Score != 0.5 {
		t.Errorf("Expected score 0.5 (2 of 4 supported), got %v", *s.Score)
	}
}

func TestSummarize_ContradictedAlwaysFlagged(t *testing.T) {
	s := Summarize([]model.ClaimVerdict{
		verdict("the treaty was signed in 1990", model.VerdictContradicted),
	}, 10)

	if len(s.Flagged) != 1 {
		t.Fatalf("Expected 1 flagged claim, got %d", len(s.Flagged))
	}
	if s.Flagged[0].Reason != model.FlagContradicted {
		t.Errorf("Expected reason %s, got %s", model.FlagContradicted, s.Flagged[0].Reason)
	}
	if s.Flagged[0].Claim.Text != "the treaty was signed in 1990" {
		t.Errorf("Expected the contradicted claim surfaced, got %q", s.Flagged[0].Claim.Text)
	}
}

func TestSummarize_UnverifiableFlaggedAboveThreshold(t *testing.T) {
	verdicts := []model.ClaimVerdict{
		verdict("a", model.VerdictUnverifiable),
		verdict("b", model.VerdictUnverifiable),
		verdict("c", model.VerdictUnverifiable),
	}

	if s := Summarize(verdicts, 3); len(s.Flagged) != 0 {
		t.Errorf("Expected no flags at the threshold, got %d", len(s.Flagged))
	}

	verdicts = append(verdicts, verdict("d", model.VerdictUnverifiable))
	s := Summarize(verdicts, 3)
	if len(s.Flagged) != 4 {
		t.Fatalf("Expected all 4 unverifiable claims flagged above threshold, got %d", len(s.Flagged))
	}
	for _, f := range s.Flagged {
		if f.Reason != model.FlagInsufficientlyGrounded {
			t.Errorf("Expected reason %s, got %s", model.FlagInsufficientlyGrounded, f.Reason)
		}
	}
}

func TestSummarize_EmptyVerdicts(t *testing.T) {
	s := Summarize(nil, 3)

	if s.Supported != 0 || s.Contradicted != 0 || s.Unverifiable != 0 {
		t.Errorf("Expected all-zero counts, got %d/%d/%d", s.Supported, s.Contradicted, s.Unverifiable)
	}
	if len(s.Flagged) != 0 {
		t.Errorf("Expected no flagged claims, got %d", len(s.Flagged))
	}
	if s.Score != nil {
		t.Errorf("Expected nil score for zero claims, got %v", *s.Score)
	}
}
