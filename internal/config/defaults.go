package config

// DefaultConfig returns a Config with the pipeline's stock tuning. The
// numeric defaults here are the calibrated values; change them in the YAML
// file, not in code.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           ".twinpilot",
		PersonaID:         "default",
		RateLimitRPM:      60,
		Retrieval: RetrievalConfig{
			TopK:           8,
			MaxChunks:      12,
			FloorChunks:    3,
			PrimaryWeight:  1.0,
			VariantWeight:  0.7,
			CallTimeoutSec: 10,
			CacheTTLSec:    30,
			CacheSize:      256,
		},
		Evaluator: EvaluatorConfig{
			DirectOverlap:    0.6,
			DerivableOverlap: 0.2,
		},
		Calibrator: CalibratorConfig{
			ModelWeight:     0.35,
			RetrievalWeight: 0.40,
			CoverageWeight:  0.25,
			DirectBonus:     0.08,
			DerivableBonus:  0.03,
			InsufficientCap: 0.30,
		},
		Audit: AuditConfig{
			ScoreThreshold:      0.75,
			DeterministicWeight: 0.30,
			StructureWeight:     0.45,
			VoiceWeight:         0.25,
		},
	}
}
