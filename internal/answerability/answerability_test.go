package answerability

import (
	"context"
	"errors"
	"testing"

	"github.com/ziadkadry99/twinpilot/internal/config"
	"github.com/ziadkadry99/twinpilot/internal/llm"
	"github.com/ziadkadry99/twinpilot/internal/persona"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

func heuristic() *HeuristicEvaluator {
	return NewHeuristicEvaluator(config.DefaultConfig().Evaluator)
}

func chunk(source, text, section string) turn.EvidenceChunk {
	return turn.EvidenceChunk{SourceID: source, Text: text, Score: 0.8, Section: section}
}

func TestHeuristicNoEvidence(t *testing.T) {
	v := heuristic().Evaluate(context.Background(), "what database did billing use", persona.IntentFactual, nil)

	if v.State != turn.Insufficient {
		t.Errorf("State = %q, want insufficient", v.State)
	}
	if len(v.MissingInformation) == 0 {
		t.Error("insufficient verdict must carry missing information")
	}
}

func TestHeuristicStrongOverlap(t *testing.T) {
	evidence := []turn.EvidenceChunk{
		chunk("doc-a", "The billing service used a sharded postgres database with read replicas", "Architecture"),
	}
	v := heuristic().Evaluate(context.Background(), "what database did the billing service use", persona.IntentFactual, evidence)

	if v.State != turn.Direct {
		t.Errorf("State = %q, want direct", v.State)
	}
	if len(v.MissingInformation) != 0 {
		t.Error("direct verdict must not carry missing information")
	}
}

func TestHeuristicWeakOverlap(t *testing.T) {
	evidence := []turn.EvidenceChunk{
		chunk("doc-a", "Notes from a conference talk about the database migration effort", ""),
	}
	v := heuristic().Evaluate(context.Background(), "what salary bands applied to the platform team", persona.IntentFactual, evidence)

	if v.State == turn.Direct {
		t.Errorf("weak overlap must not be direct")
	}
}

func TestMissingInfoIffInsufficient(t *testing.T) {
	eval := heuristic()
	queries := []string{
		"what database did the billing service use",
		"unrelated query about quantum knitting",
	}
	evidenceSets := [][]turn.EvidenceChunk{
		nil,
		{chunk("doc-a", "The billing service used a sharded postgres database", "")},
	}

	for _, q := range queries {
		for _, ev := range evidenceSets {
			v := Finalize(eval.Evaluate(context.Background(), q, persona.IntentFactual, ev), ev)
			gotMissing := len(v.MissingInformation) > 0
			wantMissing := v.State == turn.Insufficient
			if gotMissing != wantMissing {
				t.Errorf("query %q: missing_information (%v) must match state %q", q, v.MissingInformation, v.State)
			}
		}
	}
}

// scriptedProvider returns a fixed response or error.
type scriptedProvider struct {
	content string
	err     error
}

func (s *scriptedProvider) Name() string { return "scripted" }
func (s *scriptedProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

func TestJudgeParsesStructuredVerdict(t *testing.T) {
	provider := &scriptedProvider{content: `{"state":"derivable","confidence":0.7,"ambiguity":"medium","reasoning":"combines two passages"}`}
	eval := NewJudgeEvaluator(provider, heuristic())

	evidence := []turn.EvidenceChunk{chunk("doc-a", "some text", "")}
	v := eval.Evaluate(context.Background(), "q", persona.IntentFactual, evidence)

	if v.State != turn.Derivable || v.Confidence != 0.7 {
		t.Errorf("verdict = %+v, want derivable/0.7", v)
	}
}

func TestJudgeFallsBackOnError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("timeout")}
	eval := NewJudgeEvaluator(provider, heuristic())

	evidence := []turn.EvidenceChunk{
		chunk("doc-a", "The billing service used a sharded postgres database with read replicas", ""),
	}
	v := eval.Evaluate(context.Background(), "what database did the billing service use", persona.IntentFactual, evidence)

	if v.State != turn.Direct {
		t.Errorf("fallback heuristic should run, got %q", v.State)
	}
}

func TestJudgeFallsBackOnMalformedResponse(t *testing.T) {
	provider := &scriptedProvider{content: "sorry, no JSON today"}
	eval := NewJudgeEvaluator(provider, heuristic())

	evidence := []turn.EvidenceChunk{chunk("doc-a", "text", "")}
	v := eval.Evaluate(context.Background(), "query with no overlap here", persona.IntentFactual, evidence)

	if v.State != turn.Insufficient && v.State != turn.Derivable {
		t.Errorf("fallback verdict = %q", v.State)
	}
}

func TestJudgeFallsBackOnUnknownState(t *testing.T) {
	provider := &scriptedProvider{content: `{"state":"maybe","confidence":0.9}`}
	eval := NewJudgeEvaluator(provider, heuristic())

	evidence := []turn.EvidenceChunk{chunk("doc-a", "text", "")}
	v := eval.Evaluate(context.Background(), "anything", persona.IntentFactual, evidence)
	if v.State == "maybe" {
		t.Error("unknown state must not leak through")
	}
}

func TestOverridesUpgradeOnly(t *testing.T) {
	evidence := []turn.EvidenceChunk{
		chunk("doc-a", "a", "Background"),
		chunk("doc-b", "b", "Speaking"),
		chunk("doc-c", "c", ""),
	}

	tests := []struct {
		name   string
		in     turn.Answerability
		intent string
		want   turn.Answerability
	}{
		{"identity upgrades insufficient", turn.Insufficient, persona.IntentIdentity, turn.Derivable},
		{"summary with 3 chunks upgrades", turn.Insufficient, persona.IntentSummary, turn.Derivable},
		{"evaluative with sections upgrades", turn.Insufficient, persona.IntentEvaluative, turn.Derivable},
		{"factual stays insufficient", turn.Insufficient, persona.IntentFactual, turn.Insufficient},
		{"never downgrades direct", turn.Direct, persona.IntentIdentity, turn.Direct},
		{"never downgrades derivable", turn.Derivable, persona.IntentSummary, turn.Derivable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := turn.Verdict{State: tt.in, MissingInformation: []string{"x"}}
			out := ApplyOverrides(in, tt.intent, evidence)
			if out.State != tt.want {
				t.Errorf("State = %q, want %q", out.State, tt.want)
			}
			if out.State.Rank() < in.State.Rank() {
				t.Error("override downgraded the verdict")
			}
		})
	}
}

func TestOverridePriorityStable(t *testing.T) {
	// A query that is both identity and summary shaped: identity's
	// reasoning must win.
	evidence := []turn.EvidenceChunk{
		chunk("doc-a", "a", "Background"),
		chunk("doc-b", "b", "Speaking"),
		chunk("doc-c", "c", "Projects"),
	}
	in := turn.Verdict{State: turn.Insufficient}
	out := ApplyOverrides(in, persona.IntentIdentity, evidence)
	if out.Reasoning != overrides[0].reasoning {
		t.Errorf("Reasoning = %q, want identity override's", out.Reasoning)
	}
}

func TestBestPrefersStrongerVerdict(t *testing.T) {
	weak := turn.Verdict{State: turn.Insufficient}
	strong := turn.Verdict{State: turn.Derivable}

	if got := Best(strong, weak); got.State != turn.Derivable {
		t.Error("Best must not relax a stronger earlier verdict")
	}
	if got := Best(weak, strong); got.State != turn.Derivable {
		t.Error("Best must adopt a stronger later verdict")
	}
}

func TestClarifyingQuestionsFromSections(t *testing.T) {
	evidence := []turn.EvidenceChunk{
		chunk("doc-a", "a", "Background"),
		chunk("doc-b", "b", "Background"),
		chunk("doc-c", "c", "Speaking"),
		chunk("doc-d", "d", "Projects"),
		chunk("doc-e", "e", "Extra"),
	}
	questions := ClarifyingQuestions(evidence)
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(questions))
	}
	for _, q := range questions {
		if q == "" {
			t.Error("empty clarification")
		}
	}
}

func TestClarifyingQuestionsGenericFallback(t *testing.T) {
	questions := ClarifyingQuestions(nil)
	if len(questions) == 0 || len(questions) > 3 {
		t.Fatalf("got %d generic questions", len(questions))
	}
}

func TestFinalizeFiltersGenericItems(t *testing.T) {
	v := turn.Verdict{
		State:              turn.Insufficient,
		MissingInformation: []string{"more context", "the billing service's database", "Details."},
	}
	out := Finalize(v, nil)
	if len(out.MissingInformation) != 1 || out.MissingInformation[0] != "the billing service's database" {
		t.Errorf("MissingInformation = %v", out.MissingInformation)
	}
}
