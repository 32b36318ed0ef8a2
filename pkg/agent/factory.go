package agent

import (
	"fmt"

	"autogippity/pkg/agent/internal/llmimpl/anthropic"
	"autogippity/pkg/agent/internal/llmimpl/google"
	"autogippity/pkg/agent/internal/llmimpl/ollama"
	"autogippity/pkg/agent/internal/llmimpl/openai"
	"autogippity/pkg/agent/llm"
	"autogippity/pkg/config"
	"autogippity/pkg/logx"
)

// LLMClientFactory creates model gateways from configuration.
type LLMClientFactory struct {
	config *config.Config
}

// NewLLMClientFactory creates a new LLM client factory with the given configuration.
func NewLLMClientFactory(cfg *config.Config) *LLMClientFactory {
	if cfg == nil {
		cfg = config.Default()
	}
	return &LLMClientFactory{config: cfg}
}

// Provider returns the configured provider, inferring it from the model name when unset.
func (f *LLMClientFactory) Provider() (string, error) {
	if f.config.Model.Provider != "" {
		return f.config.Model.Provider, nil
	}
	provider, err := config.GetModelProvider(f.config.Model.Name)
	if err != nil {
		return "", fmt.Errorf("failed to determine provider: %w", err)
	}
	return provider, nil
}

// CreateClient creates the gateway for the configured model. The credential is
// read from the secrets file or environment; a missing one returns an error
// wrapping config.ErrMissingCredential before any network activity.
func (f *LLMClientFactory) CreateClient() (llm.LLMClient, error) {
	provider, err := f.Provider()
	if err != nil {
		return nil, err
	}

	key, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("cannot create %s client: %w", provider, err)
	}

	m := f.config.Model
	var client llm.LLMClient
	switch provider {
	case config.ProviderOpenAI:
		client = openai.NewClientWithModel(key, m.Name, m.BaseURL, m.Timeout)
	case config.ProviderAnthropic:
		client = anthropic.NewClaudeClientWithModel(key, m.Name, m.BaseURL, m.Timeout)
	case config.ProviderGoogle:
		client = google.NewGeminiClientWithModel(key, m.Name, m.BaseURL, m.Timeout)
	case config.ProviderOllama:
		host := key
		if m.BaseURL != "" {
			host = m.BaseURL
		}
		client = ollama.NewOllamaClientWithModel(host, m.Name, m.Timeout)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	logx.Infof("model gateway: %s (%s)", client.GetModelName(), provider)
	return client, nil
}
