package answerability

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ziadkadry99/twinpilot/internal/llm"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

const judgeSystemPrompt = `You judge whether a question can be answered from the provided evidence passages, without inventing facts.

Respond with valid JSON matching this schema:
{
  "state": "direct|derivable|insufficient",
  "confidence": 0.0-1.0,
  "missing_information": ["concrete item the evidence lacks"],
  "ambiguity": "low|medium|high",
  "reasoning": "one sentence"
}

Rules:
- "direct": the evidence states the answer.
- "derivable": the answer follows from combining or lightly interpreting the evidence.
- "insufficient": the evidence does not support an answer. Only then list missing_information, and make each item concrete (never "more context").`

// JudgeEvaluator asks the inference service for a structured three-way
// judgment and falls back to the heuristic tier on any call failure or
// malformed response.
type JudgeEvaluator struct {
	provider llm.Provider
	fallback *HeuristicEvaluator
}

// NewJudgeEvaluator creates an inference-backed evaluator over the given
// provider, degrading to fallback when the provider cannot be used.
func NewJudgeEvaluator(provider llm.Provider, fallback *HeuristicEvaluator) *JudgeEvaluator {
	return &JudgeEvaluator{provider: provider, fallback: fallback}
}

type judgeResponse struct {
	State              string   `json:"state"`
	Confidence         float64  `json:"confidence"`
	MissingInformation []string `json:"missing_information"`
	Ambiguity          string   `json:"ambiguity"`
	Reasoning          string   `json:"reasoning"`
}

func (j *JudgeEvaluator) Evaluate(ctx context.Context, query, intent string, evidence []turn.EvidenceChunk) turn.Verdict {
	if j.provider == nil || len(evidence) == 0 {
		// Nothing to judge; the heuristic handles the no-evidence case.
		return j.fallback.Evaluate(ctx, query, intent, evidence)
	}

	var resp judgeResponse
	err := llm.CompleteJSON(ctx, j.provider, judgeSystemPrompt, buildJudgePrompt(query, evidence), 0.1, 1024, &resp)
	if err != nil {
		log.Printf("answerability: judge call failed, using heuristic: %v", err)
		return j.fallback.Evaluate(ctx, query, intent, evidence)
	}

	state, ok := parseState(resp.State)
	if !ok {
		log.Printf("answerability: judge returned unknown state %q, using heuristic", resp.State)
		return j.fallback.Evaluate(ctx, query, intent, evidence)
	}

	return turn.Verdict{
		State:              state,
		Confidence:         clamp(resp.Confidence, 0, 1),
		MissingInformation: resp.MissingInformation,
		Ambiguity:          parseAmbiguity(resp.Ambiguity),
		Reasoning:          resp.Reasoning,
	}
}

func buildJudgePrompt(query string, evidence []turn.EvidenceChunk) string {
	var b strings.Builder
	b.WriteString("## Evidence\n")
	for i, chunk := range evidence {
		fmt.Fprintf(&b, "[%d] (source: %s", i+1, chunk.SourceID)
		if chunk.Section != "" {
			fmt.Fprintf(&b, ", section: %s", chunk.Section)
		}
		fmt.Fprintf(&b, ")\n%s\n\n", chunk.Text)
	}
	fmt.Fprintf(&b, "## Question\n%s\n", query)
	return b.String()
}

func parseState(s string) (turn.Answerability, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct":
		return turn.Direct, true
	case "derivable":
		return turn.Derivable, true
	case "insufficient":
		return turn.Insufficient, true
	}
	return "", false
}

func parseAmbiguity(s string) turn.AmbiguityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return turn.AmbiguityLow
	case "high":
		return turn.AmbiguityHigh
	default:
		return turn.AmbiguityMedium
	}
}
