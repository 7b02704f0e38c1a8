package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// --- Tests ---

func TestCompleteTextTrims(t *testing.T) {
	mock := NewMockProvider("test")
	mock.Response.Content = "  hello there \n"

	got, err := CompleteText(context.Background(), mock, "sys", "prompt", 0.2, 100)
	if err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	if got != "hello there" {
		t.Errorf("got %q, want trimmed text", got)
	}
	if mock.Calls[0].JSONMode {
		t.Error("CompleteText should not set JSONMode")
	}
}

func TestCompleteJSONParsesObject(t *testing.T) {
	mock := NewMockProvider("test")
	mock.Response.Content = `{"state": "direct", "confidence": 0.9}`

	var out struct {
		State      string  `json:"state"`
		Confidence float64 `json:"confidence"`
	}
	if err := CompleteJSON(context.Background(), mock, "sys", "prompt", 0, 100, &out); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if out.State != "direct" || out.Confidence != 0.9 {
		t.Errorf("parsed %+v", out)
	}
	if !mock.Calls[0].JSONMode {
		t.Error("CompleteJSON should set JSONMode")
	}
}

func TestCompleteJSONFencedObject(t *testing.T) {
	mock := NewMockProvider("test")
	mock.Response.Content = "Here you go:\n```json\n{\"state\": \"derivable\"}\n```"

	var out struct {
		State string `json:"state"`
	}
	if err := CompleteJSON(context.Background(), mock, "sys", "prompt", 0, 100, &out); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if out.State != "derivable" {
		t.Errorf("State = %q, want derivable", out.State)
	}
}

func TestCompleteJSONMalformed(t *testing.T) {
	mock := NewMockProvider("test")
	mock.Response.Content = "I cannot answer in JSON, sorry."

	var out map[string]any
	err := CompleteJSON(context.Background(), mock, "sys", "prompt", 0, 100, &out)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestCompleteJSONProviderError(t *testing.T) {
	mock := NewMockProvider("test")
	mock.Err = errors.New("boom")

	var out map[string]any
	err := CompleteJSON(context.Background(), mock, "sys", "prompt", 0, 100, &out)
	if err == nil || errors.Is(err, ErrMalformedResponse) {
		t.Errorf("provider errors should pass through, got %v", err)
	}
}

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	mock := NewMockProvider("test")
	limited := NewRateLimitedProvider(mock, 10)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := limited.Complete(ctx, CompletionRequest{}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if mock.CallCount() != 5 {
		t.Errorf("CallCount = %d, want 5", mock.CallCount())
	}
}

func TestRateLimiterHonorsCancellation(t *testing.T) {
	mock := NewMockProvider("test")
	limited := NewRateLimitedProvider(mock, 1)

	// Exhaust the single token.
	if _, err := limited.Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := limited.Complete(ctx, CompletionRequest{}); err == nil {
		t.Error("expected context deadline error for second call")
	}
}

func TestFactoryUnknownProvider(t *testing.T) {
	if _, err := NewProvider("watson", "model"); err == nil {
		t.Error("expected error for unknown provider type")
	}
}
