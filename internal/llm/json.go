package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CompleteText sends a plain prompt and returns the trimmed text response.
func CompleteText(ctx context.Context, p Provider, system, prompt string, temperature float64, maxTokens int) (string, error) {
	resp, err := p.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// CompleteJSON sends a prompt in JSON mode and unmarshals the response into
// out. Models sometimes wrap the object in markdown fences or prose, so the
// raw content is narrowed to its outermost braces before parsing. A response
// with no parseable object returns ErrMalformedResponse; callers are expected
// to fall back to a conservative default rather than surface the error.
func CompleteJSON(ctx context.Context, p Provider, system, prompt string, temperature float64, maxTokens int, out any) error {
	resp, err := p.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return err
	}
	return UnmarshalLenient(resp.Content, out)
}

// ErrMalformedResponse reports that a model response contained no usable JSON.
var ErrMalformedResponse = fmt.Errorf("llm: malformed structured response")

// UnmarshalLenient extracts the outermost JSON object from content and
// unmarshals it into out.
func UnmarshalLenient(content string, out any) error {
	jsonStr := content
	if idx := strings.Index(jsonStr, "{"); idx >= 0 {
		jsonStr = jsonStr[idx:]
	} else {
		return fmt.Errorf("%w: no object found", ErrMalformedResponse)
	}
	if idx := strings.LastIndex(jsonStr, "}"); idx >= 0 {
		jsonStr = jsonStr[:idx+1]
	}

	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
