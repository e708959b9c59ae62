// Package extract decomposes candidate reports into discrete, independently
// checkable factual claims.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/parse"
	"github.com/arbiterhq/arbiter/internal/service"
)

// Extractor pulls factual claims out of report text. Every assertion counts:
// a statement without a citation is still a claim, it just carries
// had_citation=false.
type Extractor struct {
	client    service.Invoker
	maxTokens int
}

// NewExtractor creates a claim extractor.
func NewExtractor(client service.Invoker, maxTokens int) *Extractor {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Extractor{client: client, maxTokens: maxTokens}
}

// Extract returns the report's claims in reading order. An empty report
// yields an empty slice, not an error.
func (e *Extractor) Extract(ctx context.Context, report model.CandidateReport) ([]model.Claim, error) {
	body := strings.TrimSpace(report.Body)
	if body == "" {
		return nil, nil
	}

	parts, err := e.segment(ctx, body)
	if err != nil {
		return nil, err
	}

	var claims []model.Claim
	for i, part := range parts {
		partClaims, err := e.extractPart(ctx, part)
		if err != nil {
			return nil, fmt.Errorf("extract claims from part %d: %w", i, err)
		}
		offset := strings.Index(body, strings.TrimSpace(part))
		for _, pc := range partClaims {
			claims = append(claims, model.Claim{
				Text:        strings.TrimSpace(pc.Text),
				Part:        i,
				Offset:      offset,
				HadCitation: pc.HadCitation,
			})
		}
	}

	return dedupeClaims(claims), nil
}

// segment splits the report into self-contained parts so a long report never
// has to fit in a single extraction call. A segmentation response that does
// not parse degrades to treating the whole report as one part.
func (e *Extractor) segment(ctx context.Context, body string) ([]string, error) {
	resp, err := e.client.Invoke(ctx, service.Request{
		Capability: service.CapabilityLLM,
		System:     segmentSystemPrompt,
		Prompt:     buildSegmentPrompt(body),
		MaxTokens:  e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("segment report: %w", err)
	}

	var parts []string
	if err := parse.Array(resp.Text, &parts); err != nil {
		return []string{body}, nil
	}

	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return []string{body}, nil
	}
	return kept, nil
}

type extractedClaim struct {
	Text        string `json:"text"`
	HadCitation bool   `json:"had_citation"`
}

func (e *Extractor) extractPart(ctx context.Context, part string) ([]extractedClaim, error) {
	resp, err := e.client.Invoke(ctx, service.Request{
		Capability: service.CapabilityLLM,
		System:     claimSystemPrompt,
		Prompt:     buildClaimPrompt(part),
		MaxTokens:  e.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	var claims []extractedClaim
	if err := parse.Array(resp.Text, &claims); err != nil {
		return nil, err
	}

	kept := claims[:0]
	for _, c := range claims {
		if strings.TrimSpace(c.Text) != "" {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// dedupeClaims drops repeats, keeping the first occurrence.
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool, len(claims))
	var unique []model.Claim
	for _, claim := range claims {
		key := strings.ToLower(strings.TrimSpace(claim.Text))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}
	return unique
}
