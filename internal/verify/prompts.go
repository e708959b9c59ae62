package verify

import (
	"fmt"
	"strings"

	"github.com/arbiterhq/arbiter/internal/model"
)

const planSystemPrompt = `You write precise web search queries to fact-check a single claim. You respond with valid JSON only.`

const verdictSystemPrompt = `You are a careful fact-checker who weighs a claim against search evidence. You never go beyond what the evidence shows. You respond with valid JSON only.`

func buildPlanPrompt(claim model.Claim) string {
	var b strings.Builder
	b.WriteString("Write 1-3 web search queries that would confirm or refute this claim:\n\n")
	fmt.Fprintf(&b, "<claim>\n%s\n</claim>\n", claim.Text)
	b.WriteString(`
Queries should target the specific fact (names, dates, figures), not the
broad topic. Output ONLY a JSON array of query strings.`)
	return b.String()
}

func buildVerdictPrompt(claim model.Claim, evidence []model.Evidence) string {
	var b strings.Builder
	b.WriteString("Judge the claim below against the search evidence.\n\n")
	fmt.Fprintf(&b, "<claim>\n%s\n</claim>\n\n<evidence>\n", claim.Text)
	n := 0
	for _, ev := range evidence {
		if ev.Failure != "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. [%s] %s\n   %s\n", n, ev.Title, ev.URL, ev.Snippet)
		if ev.PageExcerpt != "" {
			fmt.Fprintf(&b, "   Page text: %s\n", ev.PageExcerpt)
		}
	}
	b.WriteString("</evidence>\n")

	b.WriteString(`
Rules:
- SUPPORTED only when the evidence directly affirms the specific fact.
- CONTRADICTED only when the evidence directly conflicts with it.
- UNVERIFIABLE when the evidence is absent, off-topic, or mixed. When in
  doubt, choose UNVERIFIABLE.

Output ONLY a JSON object:
{"verdict": "SUPPORTED|CONTRADICTED|UNVERIFIABLE", "confidence": 0.0, "rationale": "one or two sentences"}`)
	return b.String()
}

func buildRefinePrompt(claim model.Claim, evidence []model.Evidence) string {
	var b strings.Builder
	b.WriteString("Earlier searches for this claim were inconclusive.\n\n")
	fmt.Fprintf(&b, "<claim>\n%s\n</claim>\n\nQueries already tried:\n", claim.Text)
	seen := map[string]bool{}
	for _, ev := range evidence {
		if ev.Query != "" && !seen[ev.Query] {
			seen[ev.Query] = true
			fmt.Fprintf(&b, "- %s\n", ev.Query)
		}
	}
	b.WriteString(`
Write ONE sharper query that approaches the fact differently (other
phrasing, a named entity, a primary source). Output ONLY a JSON array
containing that single query string.`)
	return b.String()
}
