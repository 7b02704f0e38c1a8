package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/twinpilot/internal/answerability"
	"github.com/ziadkadry99/twinpilot/internal/calibrate"
	"github.com/ziadkadry99/twinpilot/internal/compliance"
	"github.com/ziadkadry99/twinpilot/internal/composer"
	"github.com/ziadkadry99/twinpilot/internal/config"
	"github.com/ziadkadry99/twinpilot/internal/db"
	"github.com/ziadkadry99/twinpilot/internal/knowledge"
	"github.com/ziadkadry99/twinpilot/internal/llm"
	"github.com/ziadkadry99/twinpilot/internal/persona"
	"github.com/ziadkadry99/twinpilot/internal/retrieval"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// fakeKnowledge serves scripted results for any query; perQuery entries
// override the default set for an exact query, and queries records every
// search issued.
type fakeKnowledge struct {
	mu       sync.Mutex
	results  []knowledge.SearchResult
	perQuery map[string][]knowledge.SearchResult
	queries  []string
}

func (f *fakeKnowledge) AddPassages(context.Context, []knowledge.Passage) error { return nil }
func (f *fakeKnowledge) Search(_ context.Context, query, _ string, topK int) ([]knowledge.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	results := f.results
	if scripted, ok := f.perQuery[query]; ok {
		results = scripted
	}
	if topK < len(results) {
		return results[:topK], nil
	}
	return results, nil
}
func (f *fakeKnowledge) HasMaterial(context.Context, string) (bool, error) {
	return len(f.results) > 0, nil
}
func (f *fakeKnowledge) Persist(context.Context, string) error { return nil }
func (f *fakeKnowledge) Load(context.Context, string) error    { return nil }
func (f *fakeKnowledge) Count() int                            { return len(f.results) }

func (f *fakeKnowledge) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeKnowledge) searched(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if q == query {
			n++
		}
	}
	return n
}

// echoProvider answers every JSON-mode call with a fixed compliant plan or
// judge verdict and every text call with a fixed rewrite. It records the
// user prompt of every request it serves; plan overrides the default
// compose response.
type echoProvider struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	plan    string
}

func (e *echoProvider) Name() string { return "echo" }
func (e *echoProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	system := ""
	user := ""
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = m.Content
		case llm.RoleUser:
			user = m.Content
		}
	}

	e.mu.Lock()
	e.calls++
	e.prompts = append(e.prompts, user)
	e.mu.Unlock()
	switch {
	case strings.Contains(system, "grade"):
		return &llm.CompletionResponse{Content: `{"score": 1.0, "violated_clauses": [], "directives": []}`}, nil
	case strings.Contains(system, "answerability"):
		return &llm.CompletionResponse{Content: `{"state":"direct","confidence":0.8,"ambiguity":"low"}`}, nil
	default:
		if e.plan != "" {
			return &llm.CompletionResponse{Content: e.plan}, nil
		}
		return &llm.CompletionResponse{Content: `{
			"answer_points": ["I ran billing on postgres, sharded by tenant."],
			"citations": ["doc-a"],
			"confidence": 0.8
		}`}, nil
	}
}

func (e *echoProvider) userPrompts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.prompts...)
}

func passages(ids ...string) []knowledge.SearchResult {
	out := make([]knowledge.SearchResult, len(ids))
	for i, id := range ids {
		out[i] = knowledge.SearchResult{
			Passage: knowledge.Passage{
				ID:       id + "-p",
				SourceID: id,
				Text:     "the billing service database ran on postgres sharded by tenant",
				Section:  "Architecture",
			},
			Similarity: 0.9,
		}
	}
	return out
}

func newTestPipeline(t *testing.T, store knowledge.Store, provider llm.Provider) (*Pipeline, *db.DB) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	personas := persona.NewStore(database)
	if _, err := personas.EnsureDefault(context.Background(), "p1"); err != nil {
		t.Fatalf("seeding persona: %v", err)
	}

	heuristic := answerability.NewHeuristicEvaluator(cfg.Evaluator)
	p := New(Options{
		Config:     *cfg,
		Retriever:  retrieval.NewOrchestrator(store, cfg.Retrieval, nil),
		Evaluator:  heuristic,
		Composer:   composer.New(provider),
		Calibrator: calibrate.New(cfg.Calibrator),
		Auditor:    compliance.NewAuditor(provider, cfg.Audit),
		Personas:   personas,
		Audits:     compliance.NewStore(database),
		ConvLog:    NewConversationStore(database),
	})
	return p, database
}

func qaTurn(utterance string) turn.Turn {
	return turn.Turn{ID: "turn-1", Utterance: utterance, PersonaID: "p1", Context: turn.ContextOwner}
}

func TestSmalltalkBypassesRetrieval(t *testing.T) {
	store := &fakeKnowledge{results: passages("doc-a")}
	p, _ := newTestPipeline(t, store, &echoProvider{})

	result, err := p.Run(context.Background(), qaTurn("thanks"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Routing.RequiresEvidence {
		t.Error("smalltalk must not require evidence")
	}
	if store.searchCount() != 0 {
		t.Errorf("searches = %d, want retrieval bypassed", store.searchCount())
	}
	if result.FinalText == "" || len(result.Citations) != 0 {
		t.Errorf("result = %+v, want canned text and no citations", result)
	}
	if result.Confidence < 0.85 {
		t.Errorf("Confidence = %v, want about 0.9", result.Confidence)
	}
}

func TestFactualQueryAnsweredWithCitations(t *testing.T) {
	store := &fakeKnowledge{results: passages("doc-a", "doc-b", "doc-c", "doc-d")}
	p, _ := newTestPipeline(t, store, &echoProvider{})

	result, err := p.Run(context.Background(), qaTurn("what database did the billing service use?"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Answerability == nil || result.Answerability.State != turn.Direct {
		t.Fatalf("Answerability = %+v, want direct", result.Answerability)
	}
	if len(result.Citations) == 0 || len(result.Citations) > 3 {
		t.Errorf("Citations = %v", result.Citations)
	}
	allowed := map[string]bool{"doc-a": true, "doc-b": true, "doc-c": true, "doc-d": true}
	for _, c := range result.Citations {
		if !allowed[c] {
			t.Errorf("citation %q outside the retrieved sources", c)
		}
	}
	if result.Confidence <= 0.5 {
		t.Errorf("Confidence = %v, want > 0.5", result.Confidence)
	}
	if result.Compliance == nil || result.Compliance.FailSafeUsed {
		t.Errorf("Compliance = %+v", result.Compliance)
	}
}

func TestNoEvidenceReturnsClarifications(t *testing.T) {
	store := &fakeKnowledge{}
	p, _ := newTestPipeline(t, store, &echoProvider{})

	result, err := p.Run(context.Background(), qaTurn("what database did the billing service use?"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Answerability.State != turn.Insufficient {
		t.Fatalf("State = %q, want insufficient", result.Answerability.State)
	}
	if len(result.Clarifications) == 0 || len(result.Clarifications) > 3 {
		t.Errorf("Clarifications = %v", result.Clarifications)
	}
	if len(result.Citations) != 0 {
		t.Errorf("Citations = %v, want none", result.Citations)
	}
	if result.Confidence > 0.30 {
		t.Errorf("Confidence = %v, want <= 0.30", result.Confidence)
	}
}

func TestSecondPassFiresAtMostOnce(t *testing.T) {
	// One thin, off-topic chunk: below the floor and insufficient, so the
	// expanded pass must fire, and exactly once.
	store := &fakeKnowledge{results: passages("doc-a")[:1]}
	store.results[0].Passage.Text = "unrelated notes"

	p, _ := newTestPipeline(t, store, &echoProvider{})
	if _, err := p.Run(context.Background(), qaTurn("what were the migration outcomes for billing?")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := store.searchCount(); got != 2 {
		t.Errorf("searches = %d, want primary plus one expanded pass", got)
	}
}

func TestComparativeQueryUpgradesThroughSecondPass(t *testing.T) {
	utterance := "how did he weigh containers vs serverless for the platform?"
	expanded := retrieval.ExpandQuery(retrieval.ResolveQuery(utterance, ""))

	// The primary query and its variants only find one thin, unsectioned
	// chunk: below the floor and insufficient, so the expanded pass fires.
	thin := passages("doc-x")[:1]
	thin[0].Passage.Text = "unrelated notes on office seating"
	thin[0].Passage.Section = ""

	strong := passages("doc-a", "doc-b", "doc-c")
	for i := range strong {
		strong[i].Passage.Text = "he weighed container workloads against serverless for the internal tooling rebuild"
	}

	store := &fakeKnowledge{
		results:  thin,
		perQuery: map[string][]knowledge.SearchResult{expanded: strong},
	}
	provider := &echoProvider{plan: `{
		"answer_points": [
			"I leaned toward containers because the team already ran a container platform and the operational muscle was there.",
			"Serverless made sense for the spiky ingest jobs, so I kept those functions small and stateless.",
			"For everything long-running I stayed with containers and accepted the scaling overhead."
		],
		"citations": ["doc-a", "doc-b"],
		"confidence": 0.7
	}`}
	p, _ := newTestPipeline(t, store, provider)

	result, err := p.Run(context.Background(), qaTurn(utterance))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Routing.Intent != persona.IntentEvaluative {
		t.Fatalf("Intent = %q, want evaluative", result.Routing.Intent)
	}
	if got := store.searchCount(); got != 4 {
		t.Errorf("searches = %d, want primary, two variants, one expanded pass", got)
	}
	if got := store.searched(expanded); got != 1 {
		t.Errorf("expanded query ran %d times, want exactly once", got)
	}
	if result.Answerability.State != turn.Derivable {
		t.Fatalf("State = %q, want derivable after the second pass", result.Answerability.State)
	}
	if len(result.Citations) == 0 {
		t.Fatal("comparative answer should cite its evidence")
	}
	allowed := map[string]bool{"doc-x": true, "doc-a": true, "doc-b": true, "doc-c": true}
	for _, c := range result.Citations {
		if !allowed[c] {
			t.Errorf("citation %q outside the retrieved sources", c)
		}
	}
	if result.Compliance == nil || result.Compliance.FailSafeUsed {
		t.Errorf("Compliance = %+v, want an accepted evaluative answer", result.Compliance)
	}
}

func TestConversationHistoryBoundedInPrompt(t *testing.T) {
	store := &fakeKnowledge{results: passages("doc-a", "doc-b", "doc-c", "doc-d")}
	provider := &echoProvider{}
	p, _ := newTestPipeline(t, store, provider)

	tn := qaTurn("what database did the billing service use?")
	for i := 1; i <= 10; i++ {
		tn.History = append(tn.History, turn.Message{Role: "user", Content: fmt.Sprintf("window-check-%d", i)})
	}

	if _, err := p.Run(context.Background(), tn); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var composePrompt string
	for _, prompt := range provider.userPrompts() {
		if strings.Contains(prompt, "Conversation so far") {
			composePrompt = prompt
		}
	}
	if composePrompt == "" {
		t.Fatal("no prompt carried the conversation window")
	}
	if !strings.Contains(composePrompt, "window-check-10") || !strings.Contains(composePrompt, "window-check-5") {
		t.Errorf("recent history missing from the compose prompt:\n%s", composePrompt)
	}
	if strings.Contains(composePrompt, "window-check-4") {
		t.Error("history older than the window reached the compose prompt")
	}
}

func TestMissingPersonaPassThrough(t *testing.T) {
	store := &fakeKnowledge{results: passages("doc-a", "doc-b", "doc-c")}
	p, database := newTestPipeline(t, store, &echoProvider{})

	tn := qaTurn("what database did the billing service use?")
	tn.PersonaID = "nobody"

	result, err := p.Run(context.Background(), tn)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.FinalText == "" {
		t.Error("pass-through must still produce a best-effort answer")
	}
	if result.Compliance != nil {
		t.Error("pass-through must skip the compliance audit")
	}

	rec, err := compliance.NewStore(database).GetByTurn(tn.ID)
	if err != nil {
		t.Fatalf("GetByTurn: %v", err)
	}
	if rec != nil {
		t.Error("no audit record should be written without a persona")
	}
}

func TestDurableWritesHappenOnce(t *testing.T) {
	store := &fakeKnowledge{results: passages("doc-a", "doc-b", "doc-c", "doc-d")}
	p, database := newTestPipeline(t, store, &echoProvider{})

	result, err := p.Run(context.Background(), qaTurn("what database did the billing service use?"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, err := compliance.NewStore(database).GetByTurn("turn-1")
	if err != nil {
		t.Fatalf("GetByTurn: %v", err)
	}
	if rec == nil {
		t.Fatal("audit record missing")
	}
	if rec.FinalText != result.FinalText {
		t.Errorf("audit final text = %q, result = %q", rec.FinalText, result.FinalText)
	}

	entries, err := NewConversationStore(database).History("p1", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("log entries = %d, want user + assistant", len(entries))
	}
	if entries[0].Role != "user" || entries[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", entries[0].Role, entries[1].Role)
	}
}

func TestCancelledContextWritesNothing(t *testing.T) {
	store := &fakeKnowledge{results: passages("doc-a", "doc-b", "doc-c", "doc-d")}
	p, database := newTestPipeline(t, store, &echoProvider{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Run(ctx, qaTurn("what database did the billing service use?")); err == nil {
		t.Fatal("cancelled context should abort the run")
	}

	rec, err := compliance.NewStore(database).GetByTurn("turn-1")
	if err != nil {
		t.Fatalf("GetByTurn: %v", err)
	}
	if rec != nil {
		t.Error("aborted turn must not write an audit record")
	}

	entries, err := NewConversationStore(database).History("p1", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("log entries = %d, want none", len(entries))
	}
}

func TestEmptyUtteranceRejected(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeKnowledge{}, &echoProvider{})
	if _, err := p.Run(context.Background(), qaTurn("")); err == nil {
		t.Fatal("empty utterance must error")
	}
}

func TestElapsedRecorded(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeKnowledge{}, &echoProvider{})
	result, err := p.Run(context.Background(), qaTurn("thanks"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Elapsed < 0 || result.Elapsed > time.Minute {
		t.Errorf("Elapsed = %v", result.Elapsed)
	}
}
