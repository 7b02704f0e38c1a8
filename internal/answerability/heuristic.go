package answerability

import (
	"context"
	"strings"

	"github.com/ziadkadry99/twinpilot/internal/config"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// stopwords are excluded from overlap scoring.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "do": true, "does": true, "did": true,
	"what": true, "which": true, "who": true, "when": true, "where": true,
	"how": true, "why": true, "of": true, "in": true, "on": true, "for": true,
	"to": true, "and": true, "or": true, "with": true, "about": true,
	"you": true, "your": true, "i": true, "me": true, "my": true, "it": true,
	"this": true, "that": true, "they": true, "their": true, "at": true,
	"have": true, "has": true, "had": true, "can": true, "could": true,
	"would": true, "should": true, "tell": true, "any": true,
}

// topChunksScored is how many of the best-ranked chunks the heuristic
// considers; lower-ranked chunks matching the query is a weak signal.
const topChunksScored = 3

// HeuristicEvaluator scores query/evidence token overlap. It is the fallback
// tier and the only tier when no inference service is configured.
type HeuristicEvaluator struct {
	cfg config.EvaluatorConfig
}

// NewHeuristicEvaluator creates a heuristic evaluator with the given
// overlap thresholds.
func NewHeuristicEvaluator(cfg config.EvaluatorConfig) *HeuristicEvaluator {
	return &HeuristicEvaluator{cfg: cfg}
}

func (h *HeuristicEvaluator) Evaluate(_ context.Context, query, _ string, evidence []turn.EvidenceChunk) turn.Verdict {
	if len(evidence) == 0 {
		return turn.Verdict{
			State:              turn.Insufficient,
			Confidence:         0.9,
			Ambiguity:          turn.AmbiguityHigh,
			MissingInformation: missingFromQuery(query, nil),
			Reasoning:          "no evidence retrieved",
		}
	}

	best := 0.0
	limit := min(topChunksScored, len(evidence))
	queryTokens := contentTokens(query)
	for _, chunk := range evidence[:limit] {
		if overlap := overlapRatio(queryTokens, chunk.Text); overlap > best {
			best = overlap
		}
	}

	switch {
	case best >= h.cfg.DirectOverlap:
		return turn.Verdict{
			State:      turn.Direct,
			Confidence: clamp(best, 0, 0.95),
			Ambiguity:  turn.AmbiguityLow,
			Reasoning:  "strong query/evidence overlap",
		}
	case best >= h.cfg.DerivableOverlap:
		return turn.Verdict{
			State:      turn.Derivable,
			Confidence: clamp(0.4+best/2, 0, 0.8),
			Ambiguity:  turn.AmbiguityMedium,
			Reasoning:  "partial query/evidence overlap",
		}
	default:
		return turn.Verdict{
			State:              turn.Insufficient,
			Confidence:         0.6,
			Ambiguity:          turn.AmbiguityHigh,
			MissingInformation: missingFromQuery(query, evidence),
			Reasoning:          "evidence present but does not address the query",
		}
	}
}

// missingFromQuery derives concrete missing-information items from the query
// terms that no evidence chunk mentions.
func missingFromQuery(query string, evidence []turn.EvidenceChunk) []string {
	var corpus strings.Builder
	for _, chunk := range evidence {
		corpus.WriteString(strings.ToLower(chunk.Text))
		corpus.WriteString(" ")
	}
	haystack := corpus.String()

	var items []string
	for _, token := range contentTokens(query) {
		if haystack != "" && strings.Contains(haystack, token) {
			continue
		}
		items = append(items, "material about "+token)
		if len(items) == 5 {
			break
		}
	}
	if len(items) == 0 {
		items = []string{"source material covering this question"}
	}
	return items
}

func contentTokens(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:()[]\"'")
		if f == "" || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func overlapRatio(queryTokens []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, tok := range queryTokens {
		if strings.Contains(lower, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
