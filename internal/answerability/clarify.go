package answerability

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// genericClarifications are used when there is no evidence to anchor a
// question to.
var genericClarifications = []string{
	"Which part of my background or work is this about?",
	"Is there a specific project, time period, or decision you mean?",
	"Can you give an example of the kind of answer you're after?",
}

// genericItems are meta missing-information phrasings that get filtered out
// so the list carries only concrete gaps.
var genericItems = map[string]bool{
	"more context":       true,
	"context":            true,
	"more information":   true,
	"information":        true,
	"more details":       true,
	"details":            true,
	"clarification":      true,
	"additional context": true,
}

func filterGenericItems(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if genericItems[normalizeItem(item)] {
			continue
		}
		out = append(out, item)
	}
	return out
}

func normalizeItem(s string) string {
	return strings.TrimSpace(strings.Trim(strings.ToLower(s), ".,!?"))
}

// ClarifyingQuestions produces at most three targeted questions for an
// insufficient verdict, anchored to section headers recovered from whatever
// evidence did come back. With no evidence at all the generic fallbacks are
// returned.
func ClarifyingQuestions(evidence []turn.EvidenceChunk) []string {
	sections := make([]string, 0, 3)
	seen := map[string]bool{}
	for _, chunk := range evidence {
		if chunk.Section == "" || seen[chunk.Section] {
			continue
		}
		seen[chunk.Section] = true
		sections = append(sections, chunk.Section)
		if len(sections) == 3 {
			break
		}
	}

	if len(sections) == 0 {
		return append([]string(nil), genericClarifications...)
	}

	questions := make([]string, 0, 3)
	for _, s := range sections {
		questions = append(questions, fmt.Sprintf("Are you asking about %q, or something outside it?", s))
	}
	return questions
}
