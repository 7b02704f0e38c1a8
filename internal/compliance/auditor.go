package compliance

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ziadkadry99/twinpilot/internal/config"
	"github.com/ziadkadry99/twinpilot/internal/llm"
	"github.com/ziadkadry99/twinpilot/internal/persona"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// skipStructureJudgeAt is the deterministic violation count at which the
// structure judge is skipped: the draft is already certain to be rewritten,
// so the model call buys nothing.
const skipStructureJudgeAt = 2

const rewriteSystem = `You rewrite an answer to fix specific rule violations while preserving its factual content and citations. Output ONLY the rewritten answer text, nothing else.`

// Auditor runs the compliance pass: deterministic check, conditional judges,
// at most one rewrite, then the intent's fail-safe.
type Auditor struct {
	provider llm.Provider
	cfg      config.AuditConfig
}

func NewAuditor(provider llm.Provider, cfg config.AuditConfig) *Auditor {
	return &Auditor{provider: provider, cfg: cfg}
}

// passResult is one full check pass (deterministic + whichever judges ran)
// over one candidate text.
type passResult struct {
	deterministic deterministicResult
	structure     judgeResult
	voice         judgeResult
	voiceRan      bool
	blended       float64
}

func (p passResult) violations() []Violation {
	out := append([]Violation(nil), p.deterministic.Violations...)
	for _, c := range p.structure.ViolatedClauses {
		out = append(out, Violation{ClauseID: c})
	}
	for _, c := range p.voice.ViolatedClauses {
		out = append(out, Violation{ClauseID: c})
	}
	return out
}

// Audit checks the draft against the rule set and returns the final,
// compliant text along with the full audit trail. At most two model-backed
// attempts happen per turn: the draft's check and one rewrite's re-check;
// after that the fail-safe text is substituted unconditionally.
func (a *Auditor) Audit(ctx context.Context, draft, intent string, rules *persona.RuleSet) turn.ComplianceResult {
	first := a.check(ctx, draft, intent, rules, false)

	result := turn.ComplianceResult{
		DraftText:         draft,
		FinalText:         draft,
		DeterministicPass: first.deterministic.Passed(),
		StructureScore:    first.structure.Score,
		VoiceScore:        first.voice.Score,
		BlendedDraftScore: first.blended,
		BlendedFinalScore: first.blended,
	}

	if a.accepted(first) {
		return result
	}

	violations := first.violations()
	result.ViolatedClauses = clauseIDs(violations)
	result.RewriteDirectives = directives(violations)

	rewritten, err := a.rewrite(ctx, draft, violations)
	if err != nil || strings.TrimSpace(rewritten) == "" {
		if err != nil {
			log.Printf("compliance: rewrite call failed: %v", err)
		}
		return a.failSafe(result, intent, rules)
	}

	result.RewriteApplied = true
	second := a.check(ctx, rewritten, intent, rules, true)
	result.BlendedFinalScore = second.blended

	if a.accepted(second) {
		result.FinalText = rewritten
		return result
	}

	// One rewrite is the budget. Still failing means fixed text.
	result.ViolatedClauses = clauseIDs(second.violations())
	return a.failSafe(result, intent, rules)
}

// AuditClarification checks a clarification reply. Clarifications are not
// answers: structure and length rules do not apply and no judge or rewrite
// runs, but the banned-phrase scan still does, and a violation substitutes
// the fail-safe outright.
func (a *Auditor) AuditClarification(_ context.Context, text, intent string, rules *persona.RuleSet) turn.ComplianceResult {
	var violations []Violation
	lower := strings.ToLower(text)
	for _, bp := range rules.BannedPhrases {
		if strings.Contains(lower, strings.ToLower(bp.Phrase)) {
			violations = append(violations, Violation{ClauseID: bp.ClauseID})
		}
	}

	score := deterministicScore(len(violations))
	result := turn.ComplianceResult{
		DraftText:         text,
		FinalText:         text,
		DeterministicPass: len(violations) == 0,
		BlendedDraftScore: score,
		BlendedFinalScore: score,
	}
	if len(violations) > 0 {
		result.ViolatedClauses = clauseIDs(violations)
		return a.failSafe(result, intent, rules)
	}
	return result
}

// check runs the deterministic scan and whichever judges the state machine
// calls for. The voice judge runs for high-risk intents or on a re-check
// after failure; when both judges run they run concurrently.
func (a *Auditor) check(ctx context.Context, text, intent string, rules *persona.RuleSet, afterFailure bool) passResult {
	det := runDeterministic(text, intent, rules)

	needStructure := len(det.Violations) < skipStructureJudgeAt
	needVoice := rules.IsHighRisk(intent) || afterFailure || !det.Passed()

	var pass passResult
	pass.deterministic = det
	pass.structure = judgeResult{Score: det.Score}
	pass.voice = judgeResult{Score: det.Score}

	switch {
	case needStructure && needVoice:
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			pass.structure = runStructureJudge(ctx, a.provider, text, intent, rules, det.Score)
		}()
		go func() {
			defer wg.Done()
			pass.voice = runVoiceJudge(ctx, a.provider, text, rules, det.Score)
		}()
		wg.Wait()
		pass.voiceRan = true
	case needStructure:
		pass.structure = runStructureJudge(ctx, a.provider, text, intent, rules, det.Score)
	case needVoice:
		pass.voice = runVoiceJudge(ctx, a.provider, text, rules, det.Score)
		pass.voiceRan = true
	}

	pass.blended = a.cfg.DeterministicWeight*det.Score +
		a.cfg.StructureWeight*pass.structure.Score +
		a.cfg.VoiceWeight*pass.voice.Score
	return pass
}

func (a *Auditor) accepted(p passResult) bool {
	if !p.deterministic.Passed() {
		return false
	}
	if len(p.structure.ViolatedClauses) > 0 || len(p.voice.ViolatedClauses) > 0 {
		return false
	}
	return p.blended >= a.cfg.ScoreThreshold
}

// rewrite performs the single clause-targeted revision, feeding the violated
// clause IDs and directives back into the model.
func (a *Auditor) rewrite(ctx context.Context, draft string, violations []Violation) (string, error) {
	if a.provider == nil {
		return "", fmt.Errorf("no provider for rewrite")
	}

	var b strings.Builder
	b.WriteString("## Violations to fix\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- [%s]", v.ClauseID)
		if v.Directive != "" {
			fmt.Fprintf(&b, " %s", v.Directive)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n## Answer to rewrite\n%s\n", draft)

	return llm.CompleteText(ctx, a.provider, rewriteSystem, b.String(), 0.2, 1024)
}

func (a *Auditor) failSafe(result turn.ComplianceResult, intent string, rules *persona.RuleSet) turn.ComplianceResult {
	result.FailSafeUsed = true
	result.FinalText = rules.FailSafeFor(intent)
	return result
}

func clauseIDs(violations []Violation) []string {
	out := make([]string, 0, len(violations))
	seen := map[string]bool{}
	for _, v := range violations {
		if v.ClauseID == "" || seen[v.ClauseID] {
			continue
		}
		seen[v.ClauseID] = true
		out = append(out, v.ClauseID)
	}
	return out
}

func directives(violations []Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		if v.Directive != "" {
			out = append(out, v.Directive)
		}
	}
	return out
}
