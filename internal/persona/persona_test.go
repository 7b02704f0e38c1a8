package persona

import (
	"context"
	"testing"

	"github.com/ziadkadry99/twinpilot/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestActiveMissingPersona(t *testing.T) {
	store := setupTestStore(t)

	rs, err := store.Active(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if rs != nil {
		t.Errorf("expected nil for unconfigured persona, got %+v", rs)
	}
}

func TestSaveAndActive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rs := DefaultRuleSet("harper")
	if err := store.Save(ctx, rs); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rs.Version != 1 {
		t.Errorf("Version = %d, want 1", rs.Version)
	}

	got, err := store.Active(ctx, "harper")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got == nil {
		t.Fatal("Active returned nil")
	}
	if got.VoiceIdentity != rs.VoiceIdentity {
		t.Errorf("VoiceIdentity = %q", got.VoiceIdentity)
	}
	if len(got.BannedPhrases) != len(rs.BannedPhrases) {
		t.Errorf("BannedPhrases count = %d, want %d", len(got.BannedPhrases), len(rs.BannedPhrases))
	}
}

func TestSaveVersionsAndActivates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := DefaultRuleSet("harper")
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save v1: %v", err)
	}

	second := DefaultRuleSet("harper")
	second.VoiceIdentity = "revised voice"
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save v2: %v", err)
	}
	if second.Version != 2 {
		t.Errorf("Version = %d, want 2", second.Version)
	}

	got, err := store.Active(ctx, "harper")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got.Version != 2 || got.VoiceIdentity != "revised voice" {
		t.Errorf("Active = v%d %q, want v2 revised", got.Version, got.VoiceIdentity)
	}
}

func TestEnsureDefaultSeedsOnce(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.EnsureDefault(ctx, "harper")
	if err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}
	if first.Version != 1 {
		t.Errorf("seeded Version = %d, want 1", first.Version)
	}

	again, err := store.EnsureDefault(ctx, "harper")
	if err != nil {
		t.Fatalf("EnsureDefault second call: %v", err)
	}
	if again.Version != 1 {
		t.Errorf("second call should not reseed, got version %d", again.Version)
	}
}

func TestRuleSetHelpers(t *testing.T) {
	rs := DefaultRuleSet("p")

	if _, ok := rs.StructureFor(IntentSummary); !ok {
		t.Error("expected structure rule for summary intent")
	}
	if _, ok := rs.StructureFor(IntentSmalltalk); ok {
		t.Error("unexpected structure rule for smalltalk")
	}

	if !rs.IsHighRisk(IntentEvaluative) {
		t.Error("evaluative should be high risk")
	}
	if rs.IsHighRisk(IntentFactual) {
		t.Error("factual should not be high risk")
	}

	if rs.FailSafeFor(IntentEvaluative) == rs.FailSafeFor("unknown-intent") {
		t.Error("evaluative fail-safe should differ from the default")
	}
	if rs.FailSafeFor("unknown-intent") == "" {
		t.Error("default fail-safe must never be empty")
	}
}
