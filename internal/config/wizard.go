package config

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// modelPresets maps a provider to its default generation and embedding
// models.
var modelPresets = map[ProviderType]struct {
	Model          string
	EmbeddingModel string
}{
	ProviderAnthropic: {Model: "claude-sonnet-4-20250514", EmbeddingModel: "text-embedding-3-small"},
	ProviderOpenAI:    {Model: "gpt-4o", EmbeddingModel: "text-embedding-3-small"},
	ProviderOllama:    {Model: "llama3.1", EmbeddingModel: "nomic-embed-text"},
}

// embeddingProviderFor picks a provider with native embeddings; Anthropic
// has none, so its embedding calls go through OpenAI.
func embeddingProviderFor(provider ProviderType) ProviderType {
	if provider == ProviderAnthropic {
		return ProviderOpenAI
	}
	return provider
}

// RunWizard runs an interactive configuration wizard, saves the resulting
// config to path, and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to twinpilot! Let's set up your twin.")
	fmt.Println()

	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"anthropic", "openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)
	preset := modelPresets[provider]

	modelPrompt := promptui.Prompt{
		Label:   "Model",
		Default: preset.Model,
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	personaPrompt := promptui.Prompt{
		Label:   "Persona ID (a short handle for this twin)",
		Default: "default",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("persona ID cannot be empty")
			}
			return nil
		},
	}
	personaID, err := personaPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("persona ID: %w", err)
	}

	subjectPrompt := promptui.Prompt{
		Label:   "Persona subject (the twin's name, used to resolve \"you\" in queries; blank to skip)",
		Default: "",
	}
	subject, err := subjectPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("persona subject: %w", err)
	}

	dataDirPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: ".twinpilot",
	}
	dataDir, err := dataDirPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = model
	cfg.EmbeddingProvider = embeddingProviderFor(provider)
	cfg.EmbeddingModel = preset.EmbeddingModel
	cfg.PersonaID = strings.TrimSpace(personaID)
	cfg.PersonaSubject = strings.TrimSpace(subject)
	cfg.DataDir = dataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Printf("\nWrote %s. Next: `twinpilot index <files>` to ground your twin, then `twinpilot ask`.\n", path)
	return cfg, nil
}
