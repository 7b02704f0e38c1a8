package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ziadkadry99/twinpilot/internal/compliance"
	"github.com/ziadkadry99/twinpilot/internal/db"
	"github.com/ziadkadry99/twinpilot/internal/persona"
	"github.com/ziadkadry99/twinpilot/internal/pipeline"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// stubRunner returns a fixed result for any turn.
type stubRunner struct {
	result *turn.Result
	err    error
	turns  []turn.Turn
}

func (s *stubRunner) Run(_ context.Context, t turn.Turn) (*turn.Result, error) {
	s.turns = append(s.turns, t)
	if s.err != nil {
		return nil, s.err
	}
	res := *s.result
	res.TurnID = t.ID
	return &res, nil
}

func setupServer(t *testing.T, runner *stubRunner) (*Server, *db.DB) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	srv := New(
		Config{Port: 0, PersonaID: "p1"},
		runner,
		compliance.NewStore(database),
		pipeline.NewConversationStore(database),
	)
	return srv, database
}

func okResult() *turn.Result {
	return &turn.Result{
		FinalText:  "Billing ran on postgres. [doc-a]",
		Citations:  []string{"doc-a"},
		Confidence: 0.8,
		Routing:    turn.RoutingDecision{RequiresEvidence: true, Mode: turn.ModeQA, Intent: persona.IntentFactual},
	}
}

func TestHealthCheck(t *testing.T) {
	srv, _ := setupServer(t, &stubRunner{result: okResult()})

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestAskEndpoint(t *testing.T) {
	runner := &stubRunner{result: okResult()}
	srv, _ := setupServer(t, runner)

	payload := `{"utterance": "what database did billing use?"}`
	req := httptest.NewRequest("POST", "/api/ask", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result turn.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.FinalText == "" || len(result.Citations) != 1 {
		t.Errorf("result = %+v", result)
	}

	if len(runner.turns) != 1 {
		t.Fatalf("runner ran %d turns, want 1", len(runner.turns))
	}
	got := runner.turns[0]
	if got.PersonaID != "p1" {
		t.Errorf("PersonaID = %q, want the configured default", got.PersonaID)
	}
	if got.Context != turn.ContextPublic {
		t.Errorf("Context = %q, want public by default", got.Context)
	}
	if got.ID == "" {
		t.Error("turn ID must be assigned")
	}
}

func TestAskEndpointRejectsEmptyUtterance(t *testing.T) {
	srv, _ := setupServer(t, &stubRunner{result: okResult()})

	req := httptest.NewRequest("POST", "/api/ask", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAskEndpointRunnerFailure(t *testing.T) {
	srv, _ := setupServer(t, &stubRunner{err: fmt.Errorf("boom")})

	req := httptest.NewRequest("POST", "/api/ask", bytes.NewBufferString(`{"utterance": "hi there everyone today"}`))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestAuditEndpoints(t *testing.T) {
	srv, database := setupServer(t, &stubRunner{result: okResult()})

	store := compliance.NewStore(database)
	if _, err := store.SaveRecord("turn-1", "p1", persona.IntentFactual, turn.ComplianceResult{
		FinalText:         "final",
		DeterministicPass: true,
	}); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/audits?persona_id=p1", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var list struct {
		Audits []compliance.Record `json:"audits"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Audits) != 1 {
		t.Fatalf("audits = %d, want 1", len(list.Audits))
	}

	req = httptest.NewRequest("GET", "/api/audits/turn-1", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/audits/nope", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing: expected 404, got %d", w.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, database := setupServer(t, &stubRunner{result: okResult()})

	convLog := pipeline.NewConversationStore(database)
	if err := convLog.LogTurn("turn-1", "p1", "question", "answer", persona.IntentFactual, 0.8); err != nil {
		t.Fatalf("LogTurn: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/history?persona_id=p1", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		History []pipeline.LogEntry `json:"history"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.History) != 2 {
		t.Errorf("history entries = %d, want 2", len(body.History))
	}
}

func TestCORSHeaders(t *testing.T) {
	runner := &stubRunner{result: okResult()}
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer database.Close()

	srv := New(Config{Port: 0, AllowAll: true}, runner, compliance.NewStore(database), pipeline.NewConversationStore(database))

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}
