package composer

import (
	"sort"
	"strings"

	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// Sentence markers that name a conclusion rather than background. Sentences
// opening with one get a scoring bonus so the fallback surfaces the payload
// of a chunk, not its preamble.
var labelMarkers = []string{
	"recommendation:",
	"decision:",
	"takeaway:",
	"conclusion:",
	"in short:",
}

const (
	chunkRankBonus = 0.15 // per position above the last chunk
	labelBonus     = 0.25
)

type scoredSentence struct {
	text     string
	sourceID string
	score    float64
}

// ExtractivePlan builds an answer plan without the model: it scores every
// evidence sentence by query-token overlap, the rank of its parent chunk, and
// a bonus for conclusion-style labels, then keeps the top three.
func ExtractivePlan(query string, evidence []turn.EvidenceChunk) turn.Plan {
	if len(evidence) == 0 {
		return turn.Plan{Confidence: 0.05, Reasoning: "no evidence to extract from"}
	}

	queryTokens := tokenSet(query)
	var candidates []scoredSentence
	for rank, chunk := range evidence {
		rankBonus := chunkRankBonus * float64(len(evidence)-rank) / float64(len(evidence))
		for _, sentence := range splitSentences(chunk.Text) {
			s := scoredSentence{
				text:     sentence,
				sourceID: chunk.SourceID,
				score:    overlapScore(queryTokens, sentence) + rankBonus,
			}
			if hasLabelMarker(sentence) {
				s.score += labelBonus
			}
			candidates = append(candidates, s)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	points := make([]string, 0, maxAnswerPoints)
	citations := make([]string, 0, maxCitations)
	seenText := map[string]bool{}
	seenSource := map[string]bool{}
	for _, c := range candidates {
		key := strings.ToLower(c.text)
		if seenText[key] {
			continue
		}
		seenText[key] = true
		points = append(points, c.text)
		if !seenSource[c.sourceID] && len(citations) < maxCitations {
			seenSource[c.sourceID] = true
			citations = append(citations, c.sourceID)
		}
		if len(points) == maxAnswerPoints {
			break
		}
	}

	return turn.Plan{
		AnswerPoints: points,
		Citations:    citations,
		Confidence:   0.3,
		Reasoning:    "extractive fallback over retrieved passages",
	}
}

func hasLabelMarker(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, m := range labelMarkers {
		if strings.HasPrefix(lower, m) {
			return true
		}
	}
	return false
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(b.String()); len(s) > 2 {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); len(s) > 2 {
		out = append(out, s)
	}
	return out
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,!?:;\"'()")
		if len(tok) > 2 {
			set[tok] = true
		}
	}
	return set
}

func overlapScore(queryTokens map[string]bool, sentence string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	hits := 0
	for tok := range tokenSet(sentence) {
		if queryTokens[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}
