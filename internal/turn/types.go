// Package turn defines the per-stage records threaded through the answer
// pipeline. Each stage produces its own record and never mutates a record
// owned by an earlier stage; ComplianceResult is the one exception, revised
// in place across the audit's rewrite passes before being frozen.
package turn

import "time"

// DialogueMode classifies the conversational register of a turn.
type DialogueMode string

const (
	ModeSmalltalk DialogueMode = "smalltalk"
	ModeQA        DialogueMode = "qa"
)

// ContextTag distinguishes who is talking to the twin.
type ContextTag string

const (
	ContextOwner  ContextTag = "owner"
	ContextPublic ContextTag = "public"
)

// Message is a single prior exchange in the conversation window.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Turn is one user utterance plus its conversation context. Immutable once
// received.
type Turn struct {
	ID        string     `json:"id"`
	Utterance string     `json:"utterance"`
	History   []Message  `json:"history,omitempty"`
	PersonaID string     `json:"persona_id"`
	Context   ContextTag `json:"context"`
}

// RoutingDecision is produced once per turn by the router and carried
// forward unchanged.
type RoutingDecision struct {
	RequiresEvidence bool         `json:"requires_evidence"`
	Mode             DialogueMode `json:"dialogue_mode"`
	Intent           string       `json:"intent"`
	Reason           string       `json:"reason"`
	// CannedReply is set only for smalltalk turns, which never reach
	// retrieval or the model.
	CannedReply string `json:"canned_reply,omitempty"`
}

// EvidenceChunk is one retrieved passage of grounding material.
type EvidenceChunk struct {
	SourceID string  `json:"source_id"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Section  string  `json:"section,omitempty"`
	Page     int     `json:"page,omitempty"`
}

// Answerability classifies whether the evidence supports a grounded answer.
// The ordering insufficient < derivable < direct is load-bearing: overrides
// and later verdicts may only move up it.
type Answerability string

const (
	Insufficient Answerability = "insufficient"
	Derivable    Answerability = "derivable"
	Direct       Answerability = "direct"
)

// Rank returns the position of a in the answerability ordering.
func (a Answerability) Rank() int {
	switch a {
	case Direct:
		return 2
	case Derivable:
		return 1
	default:
		return 0
	}
}

// AmbiguityLevel grades how underspecified the query is.
type AmbiguityLevel string

const (
	AmbiguityLow    AmbiguityLevel = "low"
	AmbiguityMedium AmbiguityLevel = "medium"
	AmbiguityHigh   AmbiguityLevel = "high"
)

// Verdict is the answerability evaluator's output. MissingInformation is
// non-empty iff State == Insufficient.
type Verdict struct {
	State              Answerability  `json:"state"`
	Confidence         float64        `json:"confidence"`
	MissingInformation []string       `json:"missing_information,omitempty"`
	Ambiguity          AmbiguityLevel `json:"ambiguity"`
	Reasoning          string         `json:"reasoning,omitempty"`
	Clarifications     []string       `json:"clarifications,omitempty"`
}

// Plan is the composer's output. Citations are a subset of the source IDs
// retrieved for this turn; the calibrator overwrites Confidence and touches
// nothing else.
type Plan struct {
	AnswerPoints []string `json:"answer_points"`
	Citations    []string `json:"citations"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning,omitempty"`
}

// ComplianceResult records the audit's passes over the drafted answer. It is
// frozen after at most two revisions (draft, rewritten, fail-safe) and
// persisted as-is.
type ComplianceResult struct {
	FinalText         string   `json:"final_text"`
	DraftText         string   `json:"draft_text"`
	DeterministicPass bool     `json:"deterministic_passed"`
	StructureScore    float64  `json:"structure_score"`
	VoiceScore        float64  `json:"voice_score"`
	BlendedDraftScore float64  `json:"blended_draft_score"`
	BlendedFinalScore float64  `json:"blended_final_score"`
	RewriteApplied    bool     `json:"rewrite_applied"`
	FailSafeUsed      bool     `json:"fail_safe_used"`
	ViolatedClauses   []string `json:"violated_clause_ids,omitempty"`
	RewriteDirectives []string `json:"rewrite_directives,omitempty"`
}

// Result is the single synthesized outcome handed to the chat-serving layer.
type Result struct {
	TurnID         string            `json:"turn_id"`
	FinalText      string            `json:"final_text"`
	Citations      []string          `json:"citations,omitempty"`
	Confidence     float64           `json:"confidence_score"`
	Routing        RoutingDecision   `json:"routing"`
	Answerability  *Verdict          `json:"answerability,omitempty"`
	Clarifications []string          `json:"clarifications,omitempty"`
	Compliance     *ComplianceResult `json:"compliance,omitempty"`
	Elapsed        time.Duration     `json:"-"`
}
