package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/twinpilot/internal/knowledge"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// TurnRunner runs one conversational turn end to end.
type TurnRunner interface {
	Run(ctx context.Context, t turn.Turn) (*turn.Result, error)
}

// handleAskTwin runs the full answer pipeline for a question.
func (s *Server) handleAskTwin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	result, err := s.runner.Run(ctx, turn.Turn{
		ID:        uuid.New().String(),
		Utterance: question,
		PersonaID: s.personaID,
		Context:   turn.ContextPublic,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("turn failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatResult(result)), nil
}

// handleSearchKnowledge searches the grounding store without synthesis.
func (s *Server) handleSearchKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 8)
	if limit <= 0 {
		limit = 8
	}

	results, err := s.store.Search(ctx, query, s.personaID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No passages found. The twin's material may not be indexed yet. Run `twinpilot index` to index it."), nil
	}

	return mcp.NewToolResultText(formatSearchResults(results)), nil
}

func formatResult(result *turn.Result) string {
	var b strings.Builder
	b.WriteString(result.FinalText)
	if len(result.Citations) > 0 {
		fmt.Fprintf(&b, "\n\nSources: %s", strings.Join(result.Citations, ", "))
	}
	fmt.Fprintf(&b, "\nConfidence: %.2f", result.Confidence)
	if result.Answerability != nil {
		fmt.Fprintf(&b, "\nAnswerability: %s", result.Answerability.State)
	}
	return b.String()
}

func formatSearchResults(results []knowledge.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d passages:\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "## %d. %s (%.2f)\n", i+1, r.Passage.SourceID, r.Similarity)
		if r.Passage.Section != "" {
			fmt.Fprintf(&b, "Section: %s\n", r.Passage.Section)
		}
		fmt.Fprintf(&b, "%s\n\n", r.Passage.Text)
	}
	return strings.TrimSpace(b.String())
}
