package model

import "time"

// Claim is one independently checkable factual statement extracted from a
// report. Claims carry enough resolved context to stand alone ("the study
// above" style references are expanded during extraction). A claim without a
// citation is still a claim.
type Claim struct {
	Text        string `json:"text"`
	Part        int    `json:"part,omitempty"`   // Report segment the claim came from (0-based)
	Offset      int    `json:"offset,omitempty"` // Best-effort byte offset into the report body
	HadCitation bool   `json:"had_citation"`
}

// Verdict classifies the outcome of checking one claim.
type Verdict string

const (
	VerdictSupported    Verdict = "SUPPORTED"
	VerdictContradicted Verdict = "CONTRADICTED"
	VerdictUnverifiable Verdict = "UNVERIFIABLE"
)

// Evidence is one piece of search output gathered while verifying a claim.
type Evidence struct {
	Query       string    `json:"query"`          // Search query that produced it
	URL         string    `json:"url,omitempty"`
	Title       string    `json:"title,omitempty"`
	Snippet     string    `json:"snippet,omitempty"`
	PageExcerpt string    `json:"page_excerpt,omitempty"` // Scraped page text, when fetched
	RetrievedAt time.Time `json:"retrieved_at"`
	Failure     string    `json:"failure,omitempty"` // Why the search failed, when it did
}

// ClaimVerdict is the outcome of verifying one claim in one evaluation run.
// Verdicts are never mutated after issue; a re-run creates a new verdict.
type ClaimVerdict struct {
	Claim      Claim      `json:"claim"`
	Verdict    Verdict    `json:"verdict"`
	Confidence float64    `json:"confidence"` // In [0,1]
	Rationale  string     `json:"rationale,omitempty"`
	Evidence   []Evidence `json:"evidence,omitempty"`
	Rounds     int        `json:"rounds,omitempty"` // Search rounds spent
}

// FlagReason says why a claim was surfaced in the factuality summary.
type FlagReason string

const (
	FlagContradicted           FlagReason = "contradicted"
	FlagInsufficientlyGrounded FlagReason = "insufficiently_grounded"
)

// FlaggedClaim is a claim surfaced by the fact-check aggregator.
type FlaggedClaim struct {
	Claim  Claim      `json:"claim"`
	Reason FlagReason `json:"reason"`
}

// FactSummary aggregates claim verdicts for one report.
type FactSummary struct {
	Supported    int            `json:"supported"`
	Contradicted int            `json:"contradicted"`
	Unverifiable int            `json:"unverifiable"`
	Flagged      []FlaggedClaim `json:"flagged,omitempty"`

	// Score is supported / (supported + contradicted + unverifiable).
	// Nil when there were no claims at all.
	Score *float64 `json:"score,omitempty"`
}

// Total returns the number of verdicts behind the summary.
func (s *FactSummary) Total() int {
	return s.Supported + s.Contradicted + s.Unverifiable
}
