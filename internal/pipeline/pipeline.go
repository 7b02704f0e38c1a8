// Package pipeline runs one conversational turn end to end: routing,
// retrieval, answerability, composition, calibration, and the compliance
// audit. The only durable writes are the audit record and the conversation
// log, both made once after the turn completes; a cancelled context aborts
// with no partial writes.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ziadkadry99/twinpilot/internal/answerability"
	"github.com/ziadkadry99/twinpilot/internal/calibrate"
	"github.com/ziadkadry99/twinpilot/internal/compliance"
	"github.com/ziadkadry99/twinpilot/internal/composer"
	"github.com/ziadkadry99/twinpilot/internal/config"
	"github.com/ziadkadry99/twinpilot/internal/persona"
	"github.com/ziadkadry99/twinpilot/internal/retrieval"
	"github.com/ziadkadry99/twinpilot/internal/router"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

const smalltalkConfidence = 0.9

// historyWindow is how many prior messages of the conversation reach the
// composer; older turns are dropped before any prompt is built.
const historyWindow = 6

// Pipeline wires the stages together. Construct once, share across turns;
// all per-turn state lives in the stage records.
type Pipeline struct {
	cfg        config.Config
	retriever  *retrieval.Orchestrator
	retry      retrieval.RetryPolicy
	evaluator  answerability.Evaluator
	composer   *composer.Composer
	calibrator *calibrate.Calibrator
	auditor    *compliance.Auditor
	personas   *persona.Store
	audits     *compliance.Store
	convLog    *ConversationStore
}

// Options collects the pipeline's collaborators.
type Options struct {
	Config     config.Config
	Retriever  *retrieval.Orchestrator
	Evaluator  answerability.Evaluator
	Composer   *composer.Composer
	Calibrator *calibrate.Calibrator
	Auditor    *compliance.Auditor
	Personas   *persona.Store
	Audits     *compliance.Store
	ConvLog    *ConversationStore
}

func New(opts Options) *Pipeline {
	return &Pipeline{
		cfg:        opts.Config,
		retriever:  opts.Retriever,
		retry:      retrieval.DefaultRetryPolicy(opts.Config.Retrieval.FloorChunks),
		evaluator:  opts.Evaluator,
		composer:   opts.Composer,
		calibrator: opts.Calibrator,
		auditor:    opts.Auditor,
		personas:   opts.Personas,
		audits:     opts.Audits,
		convLog:    opts.ConvLog,
	}
}

// Run processes one turn and returns the synthesized result. Upstream
// failures are absorbed by the stages' own fallbacks; Run errors only on
// context cancellation or when the turn is unusable.
func (p *Pipeline) Run(ctx context.Context, t turn.Turn) (*turn.Result, error) {
	start := time.Now()

	if t.Utterance == "" {
		return nil, fmt.Errorf("pipeline: empty utterance")
	}

	routing := router.Route(t)
	if !routing.RequiresEvidence {
		result := &turn.Result{
			TurnID:     t.ID,
			FinalText:  routing.CannedReply,
			Confidence: smalltalkConfidence,
			Routing:    routing,
			Elapsed:    time.Since(start),
		}
		p.persist(ctx, t, result, nil)
		return result, nil
	}

	rules, err := p.personas.Active(ctx, t.PersonaID)
	if err != nil {
		log.Printf("pipeline: loading persona %q: %v", t.PersonaID, err)
	}
	if rules == nil {
		// Missing persona configuration is the one short-circuit: answer
		// best-effort with no compliance pass rather than not at all.
		return p.runPassThrough(ctx, start, t, routing)
	}

	evidence, verdict := p.gatherEvidence(ctx, t, routing)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var plan turn.Plan
	var audit turn.ComplianceResult
	if verdict.State == turn.Insufficient {
		draft := composer.RenderClarification(verdict)
		audit = p.auditor.AuditClarification(ctx, draft, routing.Intent, rules)
	} else {
		plan = p.composer.Compose(ctx, t.Utterance, routing.Intent, boundHistory(t.History), evidence, rules)
		draft := composer.Render(plan, routing.Intent, rules)
		audit = p.auditor.Audit(ctx, draft, routing.Intent, rules)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	confidence := p.calibrator.Score(plan, verdict, evidence)

	result := &turn.Result{
		TurnID:        t.ID,
		FinalText:     audit.FinalText,
		Citations:     plan.Citations,
		Confidence:    confidence,
		Routing:       routing,
		Answerability: &verdict,
		Compliance:    &audit,
		Elapsed:       time.Since(start),
	}
	if verdict.State == turn.Insufficient {
		result.Citations = nil
		result.Clarifications = verdict.Clarifications
	}
	if audit.FailSafeUsed {
		// The fail-safe text cites nothing.
		result.Citations = nil
	}

	p.persist(ctx, t, result, &audit)
	return result, nil
}

// gatherEvidence runs the first retrieval pass, evaluates it, and fires the
// single bounded expanded-query retry when the policy's trigger holds. The
// stronger of the two verdicts wins.
func (p *Pipeline) gatherEvidence(ctx context.Context, t turn.Turn, routing turn.RoutingDecision) ([]turn.EvidenceChunk, turn.Verdict) {
	if !p.retriever.HasGrounding(ctx, t.PersonaID) {
		verdict := p.finalizeVerdict(ctx, t, routing, nil)
		return nil, verdict
	}

	query := retrieval.ResolveQuery(t.Utterance, p.cfg.PersonaSubject)
	evaluative := routing.Intent == persona.IntentEvaluative

	evidence := p.retriever.Retrieve(ctx, query, t.PersonaID, evaluative)
	verdict := p.finalizeVerdict(ctx, t, routing, evidence)

	attempts := 0
	if p.retry.ShouldRetry(attempts, len(evidence), verdict.State) {
		attempts++
		expanded := p.retriever.RetrieveExpanded(ctx, query, t.PersonaID)
		evidence = retrieval.Merge(evidence, expanded, p.cfg.Retrieval.MaxChunks)
		verdict = answerability.Best(verdict, p.finalizeVerdict(ctx, t, routing, evidence))
	}

	return evidence, verdict
}

// boundHistory keeps the most recent messages of the conversation window so
// an unboundedly long history never inflates a prompt.
func boundHistory(history []turn.Message) []turn.Message {
	if len(history) <= historyWindow {
		return history
	}
	return history[len(history)-historyWindow:]
}

func (p *Pipeline) finalizeVerdict(ctx context.Context, t turn.Turn, routing turn.RoutingDecision, evidence []turn.EvidenceChunk) turn.Verdict {
	verdict := p.evaluator.Evaluate(ctx, t.Utterance, routing.Intent, evidence)
	verdict = answerability.ApplyOverrides(verdict, routing.Intent, evidence)
	return answerability.Finalize(verdict, evidence)
}

// runPassThrough produces a best-effort answer when no persona rule set
// exists: retrieval and composition still run, the compliance audit does not.
func (p *Pipeline) runPassThrough(ctx context.Context, start time.Time, t turn.Turn, routing turn.RoutingDecision) (*turn.Result, error) {
	evidence, verdict := p.gatherEvidence(ctx, t, routing)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var plan turn.Plan
	var text string
	if verdict.State == turn.Insufficient {
		text = composer.RenderClarification(verdict)
	} else {
		plan = p.composer.Compose(ctx, t.Utterance, routing.Intent, boundHistory(t.History), evidence, nil)
		text = composer.Render(plan, routing.Intent, nil)
	}

	result := &turn.Result{
		TurnID:        t.ID,
		FinalText:     text,
		Citations:     plan.Citations,
		Confidence:    p.calibrator.Score(plan, verdict, evidence),
		Routing:       routing,
		Answerability: &verdict,
		Elapsed:       time.Since(start),
	}
	p.persist(ctx, t, result, nil)
	return result, nil
}

// persist makes the turn's durable writes. Both are post-completion and
// best-effort: a storage failure is logged, never surfaced to the caller.
func (p *Pipeline) persist(ctx context.Context, t turn.Turn, result *turn.Result, audit *turn.ComplianceResult) {
	if ctx.Err() != nil {
		return
	}

	if audit != nil && p.audits != nil {
		if _, err := p.audits.SaveRecord(t.ID, t.PersonaID, result.Routing.Intent, *audit); err != nil {
			log.Printf("pipeline: saving audit record for turn %s: %v", t.ID, err)
		}
	}
	if p.convLog != nil {
		if err := p.convLog.LogTurn(t.ID, t.PersonaID, t.Utterance, result.FinalText, result.Routing.Intent, result.Confidence); err != nil {
			log.Printf("pipeline: logging conversation for turn %s: %v", t.ID, err)
		}
	}
}
