package llm

import "context"

// Provider is the single seam between the pipeline stages and whatever
// model backs them. A stage holds a Provider, not a vendor client.
type Provider interface {
	// Complete runs one chat completion and returns the model's reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name identifies the backing provider, e.g. "openai" or "ollama".
	Name() string
}
