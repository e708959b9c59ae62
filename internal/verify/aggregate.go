package verify

import "github.com/arbiterhq/arbiter/internal/model"

// Summarize folds per-claim verdicts into the report-level factuality
// summary. Contradicted claims are always flagged; unverifiable claims are
// flagged as insufficiently grounded only once their count exceeds the
// threshold. A report with no verdicts gets a nil score, not a zero.
func Summarize(verdicts []model.ClaimVerdict, unverifiableThreshold int) model.FactSummary {
	var summary model.FactSummary

	var unverifiable []model.FlaggedClaim
	for _, v := range verdicts {
		switch v.Verdict {
		case model.VerdictSupported:
			summary.Supported++
		case model.VerdictContradicted:
			summary.Contradicted++
			summary.Flagged = append(summary.Flagged, model.FlaggedClaim{
				Claim:  v.Claim,
				Reason: model.FlagContradicted,
			})
		default:
			summary.Unverifiable++
			unverifiable = append(unverifiable, model.FlaggedClaim{
				Claim:  v.Claim,
				Reason: model.FlagInsufficientlyGrounded,
			})
		}
	}

	if summary.Unverifiable > unverifiableThreshold {
		summary.Flagged = append(summary.Flagged, unverifiable...)
	}

	if total := summary.Total(); total > 0 {
		score := float64(summary.Supported) / float64(total)
		summary.Score = &score
	}

	return summary
}
