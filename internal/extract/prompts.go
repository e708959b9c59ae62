package extract

import (
	"fmt"
	"strings"
)

const segmentSystemPrompt = `You split long research reports into coherent parts for downstream processing. You respond with valid JSON only.`

const claimSystemPrompt = `You extract checkable factual claims from research report text. You respond with valid JSON only.`

func buildSegmentPrompt(body string) string {
	var b strings.Builder
	b.WriteString(`Split the report below into coherent parts at natural section or topic
boundaries. Keep each part's text verbatim; do not summarize, reorder, or
drop anything. A short report may be a single part.

`)
	fmt.Fprintf(&b, "<report>\n%s\n</report>\n", body)
	b.WriteString(`
Output ONLY a JSON array of strings, one per part, in reading order.`)
	return b.String()
}

func buildClaimPrompt(part string) string {
	var b strings.Builder
	b.WriteString(`Extract every checkable factual claim from the text below.

Rules:
- One claim per independent factual assertion. Never merge two assertions
  into one claim; never split one assertion across claims.
- Each claim must be self-contained: resolve references like "the study
  above" or "this figure" into the entity they point to.
- Extract claims whether or not they cite a source. Set "had_citation" to
  true only when the assertion carries an explicit citation (URL, footnote
  marker, or named source).
- Skip opinions, recommendations, and forward-looking speculation.

`)
	fmt.Fprintf(&b, "<text>\n%s\n</text>\n", part)
	b.WriteString(`
Output ONLY a JSON array, in reading order:
[
  {"text": "self-contained factual claim", "had_citation": false}
]
Output [] if the text contains no checkable claims.`)
	return b.String()
}
