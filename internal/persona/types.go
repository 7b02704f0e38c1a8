// Package persona holds the versioned rule sets that the compliance auditor
// enforces on final text. Rule sets are read-only inputs to the pipeline;
// authoring and versioning happen out of band.
package persona

// Intent labels produced by the router and used to key per-intent rules.
const (
	IntentSmalltalk  = "smalltalk"
	IntentIdentity   = "identity"
	IntentFactual    = "factual"
	IntentSummary    = "summary"
	IntentEvaluative = "evaluative"
	IntentSensitive  = "sensitive"
)

// BannedPhrase is a phrase the persona must never emit. ClauseID identifies
// the rule in audit records and rewrite directives.
type BannedPhrase struct {
	ClauseID string `json:"clause_id"`
	Phrase   string `json:"phrase"`
	Reason   string `json:"reason,omitempty"`
}

// StructureRule describes the required shape of an answer for one intent.
type StructureRule struct {
	ClauseID        string `json:"clause_id"`
	RequireBullets  bool   `json:"require_bullets"`
	RequireCitation bool   `json:"require_citation"`
}

// LengthBand bounds answer length, in words, for one intent. A zero bound is
// unenforced.
type LengthBand struct {
	ClauseID string `json:"clause_id"`
	MinWords int    `json:"min_words"`
	MaxWords int    `json:"max_words"`
}

// RuleSet is one versioned persona configuration.
type RuleSet struct {
	PersonaID       string                   `json:"persona_id"`
	Version         int                      `json:"version"`
	VoiceIdentity   string                   `json:"voice_identity"`
	BannedPhrases   []BannedPhrase           `json:"banned_phrases,omitempty"`
	Structure       map[string]StructureRule `json:"structure,omitempty"`
	LengthBands     map[string]LengthBand    `json:"length_bands,omitempty"`
	HighRiskIntents []string                 `json:"high_risk_intents,omitempty"`
	FailSafes       map[string]string        `json:"fail_safes,omitempty"`
}

// StructureFor returns the structure rule for an intent, if configured.
func (rs *RuleSet) StructureFor(intent string) (StructureRule, bool) {
	r, ok := rs.Structure[intent]
	return r, ok
}

// LengthBandFor returns the length band for an intent, if configured.
func (rs *RuleSet) LengthBandFor(intent string) (LengthBand, bool) {
	b, ok := rs.LengthBands[intent]
	return b, ok
}

// IsHighRisk reports whether the intent requires the voice judge.
func (rs *RuleSet) IsHighRisk(intent string) bool {
	for _, hi := range rs.HighRiskIntents {
		if hi == intent {
			return true
		}
	}
	return false
}

// FailSafeFor returns the canned response used when compliance cannot be
// achieved for the given intent.
func (rs *RuleSet) FailSafeFor(intent string) string {
	if text, ok := rs.FailSafes[intent]; ok {
		return text
	}
	if text, ok := rs.FailSafes["default"]; ok {
		return text
	}
	return "I want to get this right, and I don't have a solid answer for that just now. Could you rephrase or narrow the question?"
}

// DefaultRuleSet returns the rule set seeded for new personas.
func DefaultRuleSet(personaID string) *RuleSet {
	return &RuleSet{
		PersonaID:     personaID,
		Version:       1,
		VoiceIdentity: "First person, plain-spoken, concrete. No marketing tone, no hedging filler.",
		BannedPhrases: []BannedPhrase{
			{ClauseID: "banned.llm", Phrase: "as an ai language model", Reason: "breaks persona"},
			{ClauseID: "banned.assist", Phrase: "i'm just an assistant", Reason: "breaks persona"},
			{ClauseID: "banned.delve", Phrase: "let's delve into", Reason: "voice"},
			{ClauseID: "banned.tapestry", Phrase: "rich tapestry", Reason: "voice"},
		},
		Structure: map[string]StructureRule{
			IntentSummary:    {ClauseID: "structure.summary", RequireBullets: true, RequireCitation: true},
			IntentEvaluative: {ClauseID: "structure.evaluative", RequireBullets: true, RequireCitation: true},
			IntentFactual:    {ClauseID: "structure.factual", RequireCitation: true},
		},
		LengthBands: map[string]LengthBand{
			IntentSmalltalk:  {ClauseID: "length.smalltalk", MaxWords: 40},
			IntentFactual:    {ClauseID: "length.factual", MaxWords: 220},
			IntentSummary:    {ClauseID: "length.summary", MinWords: 30, MaxWords: 300},
			IntentEvaluative: {ClauseID: "length.evaluative", MinWords: 30, MaxWords: 300},
		},
		HighRiskIntents: []string{IntentSensitive, IntentEvaluative},
		FailSafes: map[string]string{
			IntentEvaluative: "That's a judgment call I'd rather not wing. Tell me more about your constraints and I can give you a grounded take.",
			IntentSensitive:  "I'd rather not get into that here. Happy to talk about my work and background instead.",
			"default":        "I want to get this right, and I don't have a solid answer for that just now. Could you rephrase or narrow the question?",
		},
	}
}
