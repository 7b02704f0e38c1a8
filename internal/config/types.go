package config

import "time"

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderOllama    ProviderType = "ollama"
)

// Config is the top-level twinpilot configuration, corresponding to
// .twinpilot.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir           string       `yaml:"data_dir" koanf:"data_dir"`
	PersonaID         string       `yaml:"persona_id" koanf:"persona_id"`
	PersonaSubject    string       `yaml:"persona_subject" koanf:"persona_subject"`
	RateLimitRPM      int          `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`

	Retrieval  RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	Evaluator  EvaluatorConfig  `yaml:"evaluator" koanf:"evaluator"`
	Calibrator CalibratorConfig `yaml:"calibrator" koanf:"calibrator"`
	Audit      AuditConfig      `yaml:"audit" koanf:"audit"`
}

// RetrievalConfig tunes the retrieval orchestrator.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k" koanf:"top_k"`
	MaxChunks      int     `yaml:"max_chunks" koanf:"max_chunks"`
	FloorChunks    int     `yaml:"floor_chunks" koanf:"floor_chunks"`
	PrimaryWeight  float64 `yaml:"primary_weight" koanf:"primary_weight"`
	VariantWeight  float64 `yaml:"variant_weight" koanf:"variant_weight"`
	CallTimeoutSec int     `yaml:"call_timeout_sec" koanf:"call_timeout_sec"`
	CacheTTLSec    int     `yaml:"cache_ttl_sec" koanf:"cache_ttl_sec"`
	CacheSize      int     `yaml:"cache_size" koanf:"cache_size"`
}

// CacheTTL returns the grounding-cache TTL as a duration.
func (c RetrievalConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// EvaluatorConfig tunes the answerability evaluator's heuristic tier.
type EvaluatorConfig struct {
	DirectOverlap    float64 `yaml:"direct_overlap" koanf:"direct_overlap"`
	DerivableOverlap float64 `yaml:"derivable_overlap" koanf:"derivable_overlap"`
}

// CalibratorConfig holds the confidence blend weights and nudges.
type CalibratorConfig struct {
	ModelWeight     float64 `yaml:"model_weight" koanf:"model_weight"`
	RetrievalWeight float64 `yaml:"retrieval_weight" koanf:"retrieval_weight"`
	CoverageWeight  float64 `yaml:"coverage_weight" koanf:"coverage_weight"`
	DirectBonus     float64 `yaml:"direct_bonus" koanf:"direct_bonus"`
	DerivableBonus  float64 `yaml:"derivable_bonus" koanf:"derivable_bonus"`
	InsufficientCap float64 `yaml:"insufficient_cap" koanf:"insufficient_cap"`
}

// AuditConfig tunes the compliance auditor.
type AuditConfig struct {
	ScoreThreshold      float64 `yaml:"score_threshold" koanf:"score_threshold"`
	DeterministicWeight float64 `yaml:"deterministic_weight" koanf:"deterministic_weight"`
	StructureWeight     float64 `yaml:"structure_weight" koanf:"structure_weight"`
	VoiceWeight         float64 `yaml:"voice_weight" koanf:"voice_weight"`
}
