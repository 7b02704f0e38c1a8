package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/twinpilot/internal/answerability"
	"github.com/ziadkadry99/twinpilot/internal/calibrate"
	"github.com/ziadkadry99/twinpilot/internal/compliance"
	"github.com/ziadkadry99/twinpilot/internal/composer"
	"github.com/ziadkadry99/twinpilot/internal/config"
	"github.com/ziadkadry99/twinpilot/internal/db"
	"github.com/ziadkadry99/twinpilot/internal/embeddings"
	"github.com/ziadkadry99/twinpilot/internal/knowledge"
	"github.com/ziadkadry99/twinpilot/internal/llm"
	"github.com/ziadkadry99/twinpilot/internal/persona"
	"github.com/ziadkadry99/twinpilot/internal/pipeline"
	"github.com/ziadkadry99/twinpilot/internal/retrieval"
)

// loadConfig loads and validates the config, with a friendly pointer to the
// setup wizard on failure.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `twinpilot init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, cfg.EmbeddingModel), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, 768, ""), nil
	default:
		// Anthropic has no embeddings API; fall back to OpenAI.
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required (used for embeddings when provider is %s)", provider)
		}
		return embeddings.NewOpenAIEmbedder(apiKey, cfg.EmbeddingModel), nil
	}
}

// createProviderFromConfig creates the rate-limited LLM provider.
func createProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.RateLimitRPM > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RateLimitRPM)
	}
	return provider, nil
}

// groundingDir is where the persisted grounding store lives.
func groundingDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "grounding")
}

// openDatabase opens the SQLite database under the data directory.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	return db.Open(filepath.Join(cfg.DataDir, "twinpilot.db"))
}

// openKnowledgeStore creates the vector store and loads any persisted
// grounding material. A missing store is not an error: the twin just has no
// grounding yet.
func openKnowledgeStore(ctx context.Context, cfg *config.Config) (knowledge.Store, error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	store, err := knowledge.NewChromemStore(embedder)
	if err != nil {
		return nil, fmt.Errorf("creating grounding store: %w", err)
	}

	dir := groundingDir(cfg)
	if err := store.Load(ctx, dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load grounding material from %s: %v\n", dir, err)
		fmt.Fprintf(os.Stderr, "Answers will lack evidence. Run `twinpilot index` first.\n")
	}

	return store, nil
}

// buildPipeline wires the full turn pipeline from config.
func buildPipeline(ctx context.Context, cfg *config.Config, database *db.DB, store knowledge.Store) (*pipeline.Pipeline, error) {
	provider, err := createProviderFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	personas := persona.NewStore(database)
	if _, err := personas.EnsureDefault(ctx, cfg.PersonaID); err != nil {
		return nil, fmt.Errorf("seeding persona rules: %w", err)
	}

	cache := retrieval.NewGroundingCache(store, cfg.Retrieval.CacheSize, cfg.Retrieval.CacheTTL())
	heuristic := answerability.NewHeuristicEvaluator(cfg.Evaluator)

	return pipeline.New(pipeline.Options{
		Config:     *cfg,
		Retriever:  retrieval.NewOrchestrator(store, cfg.Retrieval, cache),
		Evaluator:  answerability.NewJudgeEvaluator(provider, heuristic),
		Composer:   composer.New(provider),
		Calibrator: calibrate.New(cfg.Calibrator),
		Auditor:    compliance.NewAuditor(provider, cfg.Audit),
		Personas:   personas,
		Audits:     compliance.NewStore(database),
		ConvLog:    pipeline.NewConversationStore(database),
	}), nil
}
