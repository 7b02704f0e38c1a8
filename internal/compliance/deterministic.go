// Package compliance audits drafted answers against the active persona rule
// set. A deterministic rule scan always runs; model-backed structure and
// voice judges run conditionally; a failing draft gets exactly one
// clause-targeted rewrite before the intent's fail-safe text is substituted.
package compliance

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/twinpilot/internal/persona"
)

// Violation names one broken rule plus a directive the rewrite call can act
// on.
type Violation struct {
	ClauseID  string
	Directive string
}

type deterministicResult struct {
	Violations []Violation
	Score      float64
}

func (r deterministicResult) Passed() bool { return len(r.Violations) == 0 }

// runDeterministic scans the text against every rule that can be checked
// without a model call: banned phrases, required structure for the intent,
// and length bands. Never calls the provider.
func runDeterministic(text, intent string, rules *persona.RuleSet) deterministicResult {
	var violations []Violation
	lower := strings.ToLower(text)

	for _, bp := range rules.BannedPhrases {
		if strings.Contains(lower, strings.ToLower(bp.Phrase)) {
			violations = append(violations, Violation{
				ClauseID:  bp.ClauseID,
				Directive: fmt.Sprintf("remove the phrase %q", bp.Phrase),
			})
		}
	}

	if rule, ok := rules.StructureFor(intent); ok {
		if rule.RequireBullets && !hasBullets(text) {
			violations = append(violations, Violation{
				ClauseID:  rule.ClauseID,
				Directive: "format the answer as bullet points, one per line starting with '- '",
			})
		}
		if rule.RequireCitation && !hasCitation(text) {
			violations = append(violations, Violation{
				ClauseID:  rule.ClauseID,
				Directive: "cite at least one source in [brackets]",
			})
		}
	}

	if band, ok := rules.LengthBandFor(intent); ok {
		words := len(strings.Fields(text))
		if band.MinWords > 0 && words < band.MinWords {
			violations = append(violations, Violation{
				ClauseID:  band.ClauseID,
				Directive: fmt.Sprintf("expand the answer to at least %d words", band.MinWords),
			})
		}
		if band.MaxWords > 0 && words > band.MaxWords {
			violations = append(violations, Violation{
				ClauseID:  band.ClauseID,
				Directive: fmt.Sprintf("shorten the answer to at most %d words", band.MaxWords),
			})
		}
	}

	return deterministicResult{
		Violations: violations,
		Score:      deterministicScore(len(violations)),
	}
}

// deterministicScore maps a violation count onto [0, 1]. One violation is
// already a hard fail for blending purposes.
func deterministicScore(violations int) float64 {
	switch violations {
	case 0:
		return 1.0
	case 1:
		return 0.5
	default:
		return 0.0
	}
}

func hasBullets(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			return true
		}
	}
	return false
}

func hasCitation(text string) bool {
	open := strings.IndexByte(text, '[')
	if open < 0 {
		return false
	}
	end := strings.IndexByte(text[open:], ']')
	return end > 1
}
