// Package verify checks extracted claims against web search evidence and
// issues per-claim verdicts.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/parse"
	"github.com/arbiterhq/arbiter/internal/service"
)

// State is a phase in one claim's verification.
type State string

const (
	StateExtracted        State = "EXTRACTED"
	StateQueryPlanned     State = "QUERY_PLANNED"
	StateSearching        State = "SEARCHING"
	StateEvidenceGathered State = "EVIDENCE_GATHERED"
	StateVerdictIssued    State = "VERDICT_ISSUED"
)

// searchCacheSize bounds the per-agent memo of search responses. Claims from
// the same report often plan overlapping queries.
const searchCacheSize = 512

// Agent verifies claims. Claims are independent: the only shared state is
// the rate-limited service client and the query result cache.
type Agent struct {
	client  service.Invoker
	fetcher *PageFetcher // Optional page scraping; nil disables
	cfg     model.VerifyConfig

	searches *lru.Cache[string, []service.SearchResult]

	// Trace, when set, observes every state transition. Used for verbose
	// output and tests; never affects verdicts.
	Trace func(claim model.Claim, state State)
}

// NewAgent creates a verification agent. fetcher may be nil.
func NewAgent(client service.Invoker, fetcher *PageFetcher, cfg model.VerifyConfig) *Agent {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 3
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = 8
	}
	searches, _ := lru.New[string, []service.SearchResult](searchCacheSize)
	return &Agent{client: client, fetcher: fetcher, cfg: cfg, searches: searches}
}

// VerifyAll verifies claims concurrently up to the configured fan-out.
// Verdicts come back in claim order. Failures never abort sibling claims: a
// claim that cannot be checked gets an UNVERIFIABLE verdict instead.
func (a *Agent) VerifyAll(ctx context.Context, claims []model.Claim) []model.ClaimVerdict {
	verdicts := make([]model.ClaimVerdict, len(claims))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.FanOut)
	for i, claim := range claims {
		i, claim := i, claim
		g.Go(func() error {
			verdicts[i] = a.Verify(gctx, claim)
			return nil
		})
	}
	_ = g.Wait()

	return verdicts
}

// Verify runs one claim through the verification state machine. It always
// returns a verdict; errors along the way degrade to UNVERIFIABLE.
func (a *Agent) Verify(ctx context.Context, claim model.Claim) model.ClaimVerdict {
	a.transition(claim, StateExtracted)

	queries, err := a.planQueries(ctx, claim)
	if err != nil {
		return a.issue(claim, model.ClaimVerdict{
			Claim:      claim,
			Verdict:    model.VerdictUnverifiable,
			Confidence: 0,
			Rationale:  "query planning failed",
			Evidence:   []model.Evidence{{Failure: err.Error(), RetrievedAt: time.Now().UTC()}},
		})
	}
	a.transition(claim, StateQueryPlanned)

	var evidence []model.Evidence
	var verdict model.ClaimVerdict
	rounds := 0

	for rounds < a.cfg.MaxRounds {
		rounds++

		a.transition(claim, StateSearching)
		gathered, ok := a.searchRound(ctx, queries)
		evidence = append(evidence, gathered...)
		a.transition(claim, StateEvidenceGathered)

		if !ok && !hasUsableEvidence(evidence) {
			// Every search failed and nothing from earlier rounds is
			// usable. Refining the query will not revive the service.
			return a.issue(claim, model.ClaimVerdict{
				Claim:      claim,
				Verdict:    model.VerdictUnverifiable,
				Confidence: 0,
				Rationale:  "search unavailable",
				Evidence:   evidence,
				Rounds:     rounds,
			})
		}

		verdict = a.reconcile(ctx, claim, evidence)
		verdict.Evidence = evidence
		verdict.Rounds = rounds

		if verdict.Verdict != model.VerdictUnverifiable || rounds >= a.cfg.MaxRounds {
			break
		}

		// Inconclusive: plan one refined query for the next round.
		refined, err := a.refineQuery(ctx, claim, evidence)
		if err != nil || refined == "" {
			break
		}
		queries = []string{refined}
	}

	return a.issue(claim, verdict)
}

func (a *Agent) transition(claim model.Claim, state State) {
	if a.Trace != nil {
		a.Trace(claim, state)
	}
}

func (a *Agent) issue(claim model.Claim, v model.ClaimVerdict) model.ClaimVerdict {
	a.transition(claim, StateVerdictIssued)
	return v
}

// planQueries asks for up to three search queries targeting the claim.
func (a *Agent) planQueries(ctx context.Context, claim model.Claim) ([]string, error) {
	resp, err := a.client.Invoke(ctx, service.Request{
		Capability: service.CapabilityLLM,
		System:     planSystemPrompt,
		Prompt:     buildPlanPrompt(claim),
		MaxTokens:  512,
	})
	if err != nil {
		return nil, fmt.Errorf("plan queries: %w", err)
	}

	var queries []string
	if err := parse.Array(resp.Text, &queries); err != nil {
		// A plain-text response still names a query more often than not.
		line := strings.TrimSpace(resp.Text)
		if line == "" {
			return nil, fmt.Errorf("no queries in response")
		}
		return []string{line}, nil
	}

	kept := queries[:0]
	for _, q := range queries {
		if strings.TrimSpace(q) != "" {
			kept = append(kept, strings.TrimSpace(q))
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no queries in response")
	}
	if len(kept) > 3 {
		kept = kept[:3]
	}
	return kept, nil
}

// searchRound executes every query once. ok reports whether at least one
// search call succeeded; failed queries leave Evidence carrying the failure.
func (a *Agent) searchRound(ctx context.Context, queries []string) (evidence []model.Evidence, ok bool) {
	for _, query := range queries {
		results, err := a.search(ctx, query)
		if err != nil {
			evidence = append(evidence, model.Evidence{
				Query:       query,
				Failure:     err.Error(),
				RetrievedAt: time.Now().UTC(),
			})
			continue
		}
		ok = true
		for _, r := range results {
			ev := model.Evidence{
				Query:       query,
				URL:         r.URL,
				Title:       r.Title,
				Snippet:     r.Snippet,
				RetrievedAt: time.Now().UTC(),
			}
			evidence = append(evidence, ev)
		}
		if a.fetcher != nil && len(results) > 0 && results[0].URL != "" && len(evidence) > 0 {
			// Best-effort page text for the top hit only.
			if excerpt, err := a.fetcher.Excerpt(ctx, results[0].URL); err == nil {
				evidence[len(evidence)-len(results)].PageExcerpt = excerpt
			}
		}
	}
	return evidence, ok
}

func (a *Agent) search(ctx context.Context, query string) ([]service.SearchResult, error) {
	if results, hit := a.searches.Get(query); hit {
		return results, nil
	}

	resp, err := a.client.Invoke(ctx, service.Request{
		Capability: service.CapabilitySearch,
		Query:      query,
		NumResults: 5,
	})
	if err != nil {
		return nil, err
	}

	a.searches.Add(query, resp.Results)
	return resp.Results, nil
}

type reconcileResponse struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// reconcile judges the claim against gathered evidence. Anything the model
// cannot decide, and anything that fails, is UNVERIFIABLE.
func (a *Agent) reconcile(ctx context.Context, claim model.Claim, evidence []model.Evidence) model.ClaimVerdict {
	unverifiable := model.ClaimVerdict{Claim: claim, Verdict: model.VerdictUnverifiable, Confidence: 0}

	if !hasUsableEvidence(evidence) {
		unverifiable.Rationale = "no usable evidence"
		return unverifiable
	}

	resp, err := a.client.Invoke(ctx, service.Request{
		Capability: service.CapabilityLLM,
		System:     verdictSystemPrompt,
		Prompt:     buildVerdictPrompt(claim, evidence),
		MaxTokens:  1024,
	})
	if err != nil {
		unverifiable.Rationale = fmt.Sprintf("verdict call failed: %v", err)
		return unverifiable
	}

	var parsed reconcileResponse
	if err := parse.Object(resp.Text, &parsed); err != nil {
		unverifiable.Rationale = "verdict response unparsable"
		return unverifiable
	}

	verdict := model.Verdict(strings.ToUpper(strings.TrimSpace(parsed.Verdict)))
	switch verdict {
	case model.VerdictSupported, model.VerdictContradicted, model.VerdictUnverifiable:
	default:
		unverifiable.Rationale = fmt.Sprintf("unknown verdict %q", parsed.Verdict)
		return unverifiable
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return model.ClaimVerdict{
		Claim:      claim,
		Verdict:    verdict,
		Confidence: confidence,
		Rationale:  parsed.Rationale,
	}
}

// refineQuery asks for one sharper query after an inconclusive round.
func (a *Agent) refineQuery(ctx context.Context, claim model.Claim, evidence []model.Evidence) (string, error) {
	resp, err := a.client.Invoke(ctx, service.Request{
		Capability: service.CapabilityLLM,
		System:     planSystemPrompt,
		Prompt:     buildRefinePrompt(claim, evidence),
		MaxTokens:  256,
	})
	if err != nil {
		return "", err
	}

	var queries []string
	if err := parse.Array(resp.Text, &queries); err == nil && len(queries) > 0 {
		return strings.TrimSpace(queries[0]), nil
	}
	return strings.TrimSpace(resp.Text), nil
}

func hasUsableEvidence(evidence []model.Evidence) bool {
	for _, ev := range evidence {
		if ev.Failure == "" && (ev.Snippet != "" || ev.PageExcerpt != "") {
			return true
		}
	}
	return false
}
