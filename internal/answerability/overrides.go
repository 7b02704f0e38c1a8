package answerability

import (
	"github.com/ziadkadry99/twinpilot/internal/persona"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// override is one deterministic upgrade rule. Overrides may only lift an
// insufficient verdict to derivable; they never downgrade, and they never
// manufacture a direct verdict.
type override struct {
	name      string
	reasoning string
	applies   func(intent string, evidence []turn.EvidenceChunk) bool
}

// overrides are evaluated in this fixed order; when several match, the first
// match's reasoning wins. The order is part of the contract: identity beats
// summarization beats evaluative.
var overrides = []override{
	{
		name:      "identity",
		reasoning: "self-description questions are answerable from any grounding material",
		applies: func(intent string, evidence []turn.EvidenceChunk) bool {
			return intent == persona.IntentIdentity && len(evidence) > 0
		},
	},
	{
		name:      "summarization",
		reasoning: "summarization is derivable once several chunks exist",
		applies: func(intent string, evidence []turn.EvidenceChunk) bool {
			return intent == persona.IntentSummary && len(evidence) >= 3
		},
	},
	{
		name:      "evaluative",
		reasoning: "comparative judgment is derivable from sectioned evidence",
		applies: func(intent string, evidence []turn.EvidenceChunk) bool {
			if intent != persona.IntentEvaluative {
				return false
			}
			// Requires specific evidence markers: at least two chunks
			// carrying section locators.
			sectioned := 0
			for _, c := range evidence {
				if c.Section != "" {
					sectioned++
				}
			}
			return sectioned >= 2
		},
	},
}

// ApplyOverrides runs the deterministic upgrade rules over a verdict. The
// returned verdict's state is always >= the input's under the ordering
// insufficient < derivable < direct.
func ApplyOverrides(v turn.Verdict, intent string, evidence []turn.EvidenceChunk) turn.Verdict {
	if v.State != turn.Insufficient {
		return v
	}
	for _, o := range overrides {
		if o.applies(intent, evidence) {
			v.State = turn.Derivable
			v.Reasoning = o.reasoning
			v.MissingInformation = nil
			if v.Confidence < 0.35 {
				v.Confidence = 0.35
			}
			return v
		}
	}
	return v
}
