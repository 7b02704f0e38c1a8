// Package composer turns a query plus its evidence into an answer plan: at
// most three answer points and at most three citations, where every citation
// is a source ID actually retrieved this turn. When the model call fails or
// returns nothing usable, a deterministic extractive fallback takes over, so
// Compose never errors.
package composer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ziadkadry99/twinpilot/internal/llm"
	"github.com/ziadkadry99/twinpilot/internal/persona"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

const (
	maxAnswerPoints = 3
	maxCitations    = 3
)

const composerSystemPrompt = `You answer questions as a specific person, speaking in their voice, using ONLY the evidence passages provided. Respond with a JSON object:
{
  "answer_points": ["point 1", "point 2"],
  "citations": ["source-id-1"],
  "confidence": 0.0-1.0,
  "reasoning": "one sentence"
}
Rules:
- At most 3 answer points, each a single self-contained sentence or two.
- Citations must be source IDs copied exactly from the evidence headers. Never invent one.
- If the evidence only partially covers the question, say what it does cover and nothing more.`

// Composer plans grounded answers via the inference provider.
type Composer struct {
	provider llm.Provider
}

func New(provider llm.Provider) *Composer {
	return &Composer{provider: provider}
}

type planResponse struct {
	AnswerPoints []string `json:"answer_points"`
	Citations    []string `json:"citations"`
	Confidence   float64  `json:"confidence"`
	Reasoning    string   `json:"reasoning"`
}

// Compose produces an answer plan for the turn. history is the bounded
// conversation window and only shapes the prompt; evidence alone decides
// what may be cited. The returned plan always satisfies:
// len(AnswerPoints) <= 3, len(Citations) <= 3, and every citation is a
// source ID present in evidence.
func (c *Composer) Compose(ctx context.Context, query, intent string, history []turn.Message, evidence []turn.EvidenceChunk, rules *persona.RuleSet) turn.Plan {
	allowed := allowList(evidence)

	if c.provider == nil || len(evidence) == 0 {
		return ExtractivePlan(query, evidence)
	}

	var resp planResponse
	err := llm.CompleteJSON(ctx, c.provider, composerSystemPrompt, buildComposePrompt(query, intent, history, evidence, rules), 0.3, 1024, &resp)
	if err != nil {
		log.Printf("composer: plan call failed, using extractive fallback: %v", err)
		return ExtractivePlan(query, evidence)
	}

	plan := sanitize(resp, allowed)
	if len(plan.AnswerPoints) == 0 {
		log.Printf("composer: model returned no usable answer points, using extractive fallback")
		return ExtractivePlan(query, evidence)
	}
	return plan
}

func buildComposePrompt(query, intent string, history []turn.Message, evidence []turn.EvidenceChunk, rules *persona.RuleSet) string {
	var b strings.Builder
	if rules != nil && rules.VoiceIdentity != "" {
		fmt.Fprintf(&b, "## Voice\n%s\n\n", rules.VoiceIdentity)
	}
	if len(history) > 0 {
		b.WriteString("## Conversation so far\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString("## Evidence\n")
	for i, chunk := range evidence {
		fmt.Fprintf(&b, "[%d] source: %s", i+1, chunk.SourceID)
		if chunk.Section != "" {
			fmt.Fprintf(&b, " | section: %s", chunk.Section)
		}
		fmt.Fprintf(&b, "\n%s\n\n", chunk.Text)
	}
	fmt.Fprintf(&b, "## Intent\n%s\n\n## Question\n%s\n", intent, query)
	return b.String()
}

// sanitize enforces the plan bounds. Citations outside the allow-list are
// dropped, never replaced: under-citing beats fabricating a source.
func sanitize(resp planResponse, allowed map[string]bool) turn.Plan {
	points := make([]string, 0, maxAnswerPoints)
	for _, p := range resp.AnswerPoints {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		points = append(points, p)
		if len(points) == maxAnswerPoints {
			break
		}
	}

	citations := make([]string, 0, maxCitations)
	seen := map[string]bool{}
	for _, c := range resp.Citations {
		c = strings.TrimSpace(c)
		if !allowed[c] || seen[c] {
			continue
		}
		seen[c] = true
		citations = append(citations, c)
		if len(citations) == maxCitations {
			break
		}
	}

	conf := resp.Confidence
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}

	return turn.Plan{
		AnswerPoints: points,
		Citations:    citations,
		Confidence:   conf,
		Reasoning:    strings.TrimSpace(resp.Reasoning),
	}
}

func allowList(evidence []turn.EvidenceChunk) map[string]bool {
	allowed := make(map[string]bool, len(evidence))
	for _, c := range evidence {
		allowed[c.SourceID] = true
	}
	return allowed
}
