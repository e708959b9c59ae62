package judge

import (
	"fmt"
	"strings"

	"github.com/arbiterhq/arbiter/internal/model"
)

const scoreSystemPrompt = `You are a meticulous evaluator who grades deep research reports against explicit scoring criteria. You judge only what the report text supports. You respond with valid JSON only.`

// buildScorePrompt grades one dimension: every criterion gets its own score
// so the dimension score is auditable per criterion.
func buildScorePrompt(task model.Task, dim model.Dimension, criteria []model.Criterion, report model.CandidateReport, cfg model.JudgeConfig) string {
	min, max := cfg.ScoreMin, cfg.ScoreMax
	if max <= min {
		min, max = 0, 10
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Grade the report below on ONE dimension: %s (%s).\n\n", dim.Name, dim.Description)

	b.WriteString("Scoring criteria for this dimension:\n")
	for i, c := range criteria {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Text)
		if c.ScoreAnchor != "" {
			fmt.Fprintf(&b, "   Anchor: %s\n", c.ScoreAnchor)
		}
	}

	fmt.Fprintf(&b, "\n<research_task>\n%s\n</research_task>\n", task.Prompt)
	fmt.Fprintf(&b, "\n<report>\n%s\n</report>\n", report.Body)

	fmt.Fprintf(&b, `
Score EVERY criterion on a %g-%g scale (%g = complete failure, %g = flawless).
Do not reward factual claims you cannot check; a separate system verifies facts.

Output ONLY a JSON object:
{
  "analysis": "2-4 sentences on how the report performs on this dimension",
  "scores": [
    {"criterion": "criterion text", "analysis": "one sentence", "score": 7.5}
  ]
}
Include every criterion exactly once, in order.`, min, max, min, max)

	return b.String()
}

// buildCorrectivePrompt restates the task after a response that failed to
// parse, quoting the failure so the model can fix the exact problem.
func buildCorrectivePrompt(original, badResponse string, parseErr error) string {
	var b strings.Builder
	b.WriteString(original)
	fmt.Fprintf(&b, "\n\nYour previous response was rejected: %s\n", parseErr)
	fmt.Fprintf(&b, "Previous response:\n%s\n", badResponse)
	b.WriteString("\nRespond again with ONLY the JSON object in the exact format requested, every score inside the allowed range.")
	return b.String()
}
