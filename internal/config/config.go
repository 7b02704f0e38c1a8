package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (TWINPILOT_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: TWINPILOT_PROVIDER -> provider,
	// TWINPILOT_RETRIEVAL_TOP_K -> retrieval.top_k, etc.
	if err := k.Load(env.Provider("TWINPILOT_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "TWINPILOT_"))
		return strings.Replace(s, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderAnthropic: true,
	ProviderOpenAI:    true,
	ProviderOllama:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of anthropic, openai, ollama", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.EmbeddingProvider != "" && !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q", c.EmbeddingProvider)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.PersonaID == "" {
		return fmt.Errorf("persona_id is required")
	}

	if c.Retrieval.MaxChunks < 1 {
		return fmt.Errorf("retrieval.max_chunks must be at least 1")
	}
	if c.Retrieval.FloorChunks < 0 || c.Retrieval.FloorChunks > c.Retrieval.MaxChunks {
		return fmt.Errorf("retrieval.floor_chunks must be between 0 and max_chunks")
	}

	if c.Evaluator.DirectOverlap <= c.Evaluator.DerivableOverlap {
		return fmt.Errorf("evaluator.direct_overlap must exceed derivable_overlap")
	}

	wsum := c.Calibrator.ModelWeight + c.Calibrator.RetrievalWeight + c.Calibrator.CoverageWeight
	if wsum < 0.99 || wsum > 1.01 {
		return fmt.Errorf("calibrator weights must sum to 1.0, got %.2f", wsum)
	}

	if c.Audit.ScoreThreshold <= 0 || c.Audit.ScoreThreshold > 1 {
		return fmt.Errorf("audit.score_threshold must be in (0, 1]")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
