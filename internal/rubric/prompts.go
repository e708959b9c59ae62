package rubric

import (
	"fmt"
	"strings"

	"github.com/arbiterhq/arbiter/internal/model"
)

const dimensionSystemPrompt = `You are an expert evaluator who designs query-specific evaluation dimensions for deep research reports. You respond with valid JSON only.`

const criteriaSystemPrompt = `You are an expert evaluator who writes concrete, measurable scoring criteria and relative importance weights for evaluation dimensions. You respond with valid JSON only.`

// buildDimensionPrompt asks for 1-3 task-specific dimensions beyond the
// standard four. Factuality is excluded: the fact-check branch owns it.
func buildDimensionPrompt(task model.Task) string {
	var b strings.Builder

	b.WriteString("Standard evaluation dimensions (already covered, do NOT repeat them):\n")
	for _, dim := range FixedDimensions() {
		fmt.Fprintf(&b, "- %s: %s\n", dim.Name, dim.Description)
	}

	b.WriteString(`
For the research task below, propose 1-3 additional evaluation dimensions that are:
- highly specific to this task's domain and methodology
- distinct from the standard dimensions above
- measurable from the report text alone
- NOT about factual accuracy (a separate system verifies facts)

`)
	fmt.Fprintf(&b, "<research_task>\n%s\n</research_task>\n", task.Prompt)
	if task.Domain != "" {
		fmt.Fprintf(&b, "\nTask domain: %s\n", task.Domain)
	}

	b.WriteString(`
Output ONLY a JSON array, one object per dimension:
[
  {"name": "snake_case_name", "description": "what this dimension measures"}
]`)

	return b.String()
}

// buildCriteriaPrompt batches criteria and raw weight signals for every
// dimension into one call.
func buildCriteriaPrompt(task model.Task, dims []model.Dimension) string {
	var b strings.Builder

	b.WriteString("Evaluation dimensions for the research task below:\n")
	for _, dim := range dims {
		fmt.Fprintf(&b, "- %s: %s\n", dim.Name, dim.Description)
	}

	fmt.Fprintf(&b, "\n<research_task>\n%s\n</research_task>\n", task.Prompt)

	b.WriteString(`
For EVERY dimension listed above:
1. Write 2-5 concrete scoring criteria. Each has "text" (the check itself) and
   "score_anchor" (one sentence on what a high vs low score looks like).
2. Assign a raw importance weight (positive number; relative scale, any total).

Output ONLY a JSON object keyed by dimension name:
{
  "dimension_name": {
    "weight": 3,
    "criteria": [
      {"text": "...", "score_anchor": "..."}
    ]
  }
}
Include every dimension exactly once.`)

	return b.String()
}
