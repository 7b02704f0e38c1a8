// Package router classifies an incoming turn before any retrieval or model
// work happens. Smalltalk and bare acknowledgments are resolved in-process
// from lexical patterns and never cost a network call; everything else is
// routed as evidence-seeking with a best-effort intent label.
package router

import (
	"regexp"
	"strings"

	"github.com/ziadkadry99/twinpilot/internal/persona"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

var (
	greetingPattern  = regexp.MustCompile(`^(hi|hey|hello|howdy|yo|good (morning|afternoon|evening))\b`)
	thanksPattern    = regexp.MustCompile(`^(thanks|thank you|thx|ty|cheers|appreciate (it|that))\b`)
	ackPattern       = regexp.MustCompile(`^(ok(ay)?|got it|cool|great|nice|sounds good|makes sense|perfect|sure|yep|yeah|no problem|bye|goodbye|see you|later)[.!]*$`)
	identityPattern  = regexp.MustCompile(`\b(who are you|tell me about yourself|what do you do|your (background|story|bio)|introduce yourself|what('s| is) your (name|deal))\b`)
	summaryPattern   = regexp.MustCompile(`\b(summari[sz]e|overview|recap|tl;?dr|give me the highlights|sum up)\b`)
	sensitivePattern = regexp.MustCompile(`\b(salary|compensation|politics|political|religion|medical|diagnos|lawsuit|legal advice|fire(d)? (him|her|them)|confidential)\b`)
)

// evaluativeMarkers are lexical signals of comparative or fit-judgment
// queries, which also drive variant retrieval downstream.
var evaluativeMarkers = []string{
	" vs ", " vs. ", "versus", "compare", "comparison", "better than",
	"pros and cons", "trade-off", "tradeoff", "red flags", "good fit",
	"would this twin", "should i choose", "which one", "strengths and weaknesses",
}

// cannedReplies are the immediate smalltalk responses, keyed by sub-kind.
var cannedReplies = map[string]string{
	"greeting": "Hey! Good to hear from you. What's on your mind?",
	"thanks":   "Any time. Glad it helped.",
	"ack":      "Sounds good.",
}

// Route classifies the utterance and decides whether evidence is required.
func Route(t turn.Turn) turn.RoutingDecision {
	text := normalize(t.Utterance)

	if kind, ok := matchSmalltalk(text); ok {
		return turn.RoutingDecision{
			RequiresEvidence: false,
			Mode:             turn.ModeSmalltalk,
			Intent:           persona.IntentSmalltalk,
			Reason:           "lexical smalltalk match: " + kind,
			CannedReply:      cannedReplies[kind],
		}
	}

	intent, reason := classifyIntent(text)
	return turn.RoutingDecision{
		RequiresEvidence: true,
		Mode:             turn.ModeQA,
		Intent:           intent,
		Reason:           reason,
	}
}

// IsEvaluative reports whether the utterance carries comparative/evaluative
// lexical markers. The retrieval orchestrator uses this to decide whether to
// fan out query variants.
func IsEvaluative(utterance string) bool {
	text := " " + normalize(utterance) + " "
	for _, marker := range evaluativeMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func matchSmalltalk(text string) (string, bool) {
	// Long messages are never smalltalk even if they open with a greeting.
	if len(strings.Fields(text)) > 6 {
		return "", false
	}
	switch {
	case thanksPattern.MatchString(text):
		return "thanks", true
	case greetingPattern.MatchString(text):
		return "greeting", true
	case ackPattern.MatchString(text):
		return "ack", true
	}
	return "", false
}

func classifyIntent(text string) (string, string) {
	switch {
	case sensitivePattern.MatchString(text):
		return persona.IntentSensitive, "sensitive-topic marker"
	case identityPattern.MatchString(text):
		return persona.IntentIdentity, "identity-question pattern"
	case summaryPattern.MatchString(text):
		return persona.IntentSummary, "summarization request pattern"
	case IsEvaluative(text):
		return persona.IntentEvaluative, "evaluative/comparative markers"
	default:
		return persona.IntentFactual, "default evidence-seeking"
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
