// Package answerability classifies whether a query can be answered from the
// retrieved evidence without fabricating facts. A single Evaluator capability
// is served by two implementations: a token-overlap heuristic, and an
// inference-backed judge that falls back to the heuristic when the model is
// unavailable. Callers never know or care which one ran.
package answerability

import (
	"context"

	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// Evaluator is the answerability capability. Implementations must never
// return an error: a failed or malformed judgment degrades to the heuristic
// tier, and no evidence degrades to an insufficient verdict.
type Evaluator interface {
	Evaluate(ctx context.Context, query, intent string, evidence []turn.EvidenceChunk) turn.Verdict
}

// Best returns the verdict with the stronger answerability state. The
// evaluator must bias toward the best evidence seen this turn, not the most
// recent call: a second-pass verdict computed over fewer facts never relaxes
// an earlier, stronger one.
func Best(a, b turn.Verdict) turn.Verdict {
	if b.State.Rank() > a.State.Rank() {
		return b
	}
	return a
}

// Finalize enforces the verdict's structural invariants: missing-information
// items exist only on insufficient verdicts, capped at five concrete items,
// and clarifications are capped at three.
func Finalize(v turn.Verdict, evidence []turn.EvidenceChunk) turn.Verdict {
	if v.State != turn.Insufficient {
		v.MissingInformation = nil
		v.Clarifications = nil
		return v
	}

	v.MissingInformation = filterGenericItems(v.MissingInformation)
	if len(v.MissingInformation) > 5 {
		v.MissingInformation = v.MissingInformation[:5]
	}
	if len(v.MissingInformation) == 0 {
		// An insufficient verdict must name what is missing.
		v.MissingInformation = []string{"source material covering this question"}
	}

	v.Clarifications = ClarifyingQuestions(evidence)
	return v
}
