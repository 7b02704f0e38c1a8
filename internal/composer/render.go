package composer

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/twinpilot/internal/persona"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// Render turns a plan into draft text shaped for the intent's structure rule:
// bullet lines when the rule requires them, prose otherwise, with a bracketed
// source list appended when citations are required and present.
func Render(plan turn.Plan, intent string, rules *persona.RuleSet) string {
	if len(plan.AnswerPoints) == 0 {
		return ""
	}

	var rule persona.StructureRule
	if rules != nil {
		rule, _ = rules.StructureFor(intent)
	}

	var b strings.Builder
	if rule.RequireBullets {
		for _, p := range plan.AnswerPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	} else {
		b.WriteString(strings.Join(plan.AnswerPoints, " "))
	}

	if len(plan.Citations) > 0 {
		if rule.RequireBullets {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Sources: [%s]", strings.Join(plan.Citations, "] ["))
	}

	return strings.TrimSpace(b.String())
}

// RenderClarification shapes an insufficient verdict into a reply that names
// what is missing and asks the follow-up questions.
func RenderClarification(v turn.Verdict) string {
	var b strings.Builder
	b.WriteString("I don't have enough on record to answer that properly.")
	if len(v.MissingInformation) > 0 {
		b.WriteString(" I'd need: ")
		b.WriteString(strings.Join(v.MissingInformation, "; "))
		b.WriteString(".")
	}
	for _, q := range v.Clarifications {
		b.WriteString("\n- ")
		b.WriteString(q)
	}
	return b.String()
}
