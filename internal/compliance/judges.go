package compliance

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ziadkadry99/twinpilot/internal/llm"
	"github.com/ziadkadry99/twinpilot/internal/persona"
)

const structureJudgeSystem = `You grade whether an answer follows its required structure and policy. Respond with a JSON object:
{
  "score": 0.0-1.0,
  "violated_clauses": ["clause-id"],
  "directives": ["specific instruction to fix each problem"]
}
Score 1.0 means the structure is exactly right. Judge format and policy only, not factual accuracy.`

const voiceJudgeSystem = `You grade whether an answer stays in a specific person's voice. Respond with a JSON object:
{
  "score": 0.0-1.0,
  "violated_clauses": ["clause-id"],
  "directives": ["specific instruction to fix each problem"]
}
Score 1.0 means the text reads exactly like the described person. Penalize assistant-speak, hedging filler, and tone breaks.`

type judgeResult struct {
	Score           float64  `json:"score"`
	ViolatedClauses []string `json:"violated_clauses"`
	Directives      []string `json:"directives"`
}

// runStructureJudge asks the model to grade structural/policy fit. On call
// failure it degrades to the deterministic score so a provider outage never
// zeroes a clean draft.
func runStructureJudge(ctx context.Context, provider llm.Provider, text, intent string, rules *persona.RuleSet, fallbackScore float64) judgeResult {
	prompt := buildStructurePrompt(text, intent, rules)
	return runJudge(ctx, provider, "structure", structureJudgeSystem, prompt, fallbackScore)
}

// runVoiceJudge asks the model to grade persona-voice fit.
func runVoiceJudge(ctx context.Context, provider llm.Provider, text string, rules *persona.RuleSet, fallbackScore float64) judgeResult {
	prompt := buildVoicePrompt(text, rules)
	return runJudge(ctx, provider, "voice", voiceJudgeSystem, prompt, fallbackScore)
}

func runJudge(ctx context.Context, provider llm.Provider, name, system, prompt string, fallbackScore float64) judgeResult {
	if provider == nil {
		return judgeResult{Score: fallbackScore}
	}

	var res judgeResult
	if err := llm.CompleteJSON(ctx, provider, system, prompt, 0.0, 512, &res); err != nil {
		log.Printf("compliance: %s judge failed, scoring from deterministic result: %v", name, err)
		return judgeResult{Score: fallbackScore}
	}

	if res.Score < 0 {
		res.Score = 0
	} else if res.Score > 1 {
		res.Score = 1
	}
	return res
}

func buildStructurePrompt(text, intent string, rules *persona.RuleSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Intent\n%s\n\n## Rules\n", intent)
	if rule, ok := rules.StructureFor(intent); ok {
		if rule.RequireBullets {
			fmt.Fprintf(&b, "- %s: answer must be bullet points\n", rule.ClauseID)
		}
		if rule.RequireCitation {
			fmt.Fprintf(&b, "- %s: answer must cite a source in [brackets]\n", rule.ClauseID)
		}
	}
	if band, ok := rules.LengthBandFor(intent); ok {
		fmt.Fprintf(&b, "- %s: length between %d and %d words\n", band.ClauseID, band.MinWords, band.MaxWords)
	}
	fmt.Fprintf(&b, "\n## Answer\n%s\n", text)
	return b.String()
}

func buildVoicePrompt(text string, rules *persona.RuleSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Voice\n%s\n\n", rules.VoiceIdentity)
	if len(rules.BannedPhrases) > 0 {
		b.WriteString("## Never say\n")
		for _, bp := range rules.BannedPhrases {
			fmt.Fprintf(&b, "- %s (%s)\n", bp.Phrase, bp.ClauseID)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "## Answer\n%s\n", text)
	return b.String()
}
