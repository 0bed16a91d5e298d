package chatmodel

import (
	"context"
	"os"

	"browseragent/internal/browseragent/bgerr"
)

// Provider names the wire format/backend a ChatModel talks to.
type Provider string

const (
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenAI     Provider = "openai"
	ProviderGemini     Provider = "gemini"
	ProviderXAI        Provider = "xai"
	ProviderZAI        Provider = "zai"
	ProviderOpenRouter Provider = "openrouter"
)

// envPriority mirrors the teacher's auto-detection order in
// internal/perception/client.go: the first populated key wins.
var envPriority = []struct {
	envVar   string
	provider Provider
}{
	{"ANTHROPIC_API_KEY", ProviderAnthropic},
	{"OPENAI_API_KEY", ProviderOpenAI},
	{"GEMINI_API_KEY", ProviderGemini},
	{"XAI_API_KEY", ProviderXAI},
	{"ZAI_API_KEY", ProviderZAI},
	{"OPENROUTER_API_KEY", ProviderOpenRouter},
}

// DetectProvider inspects the environment in the teacher's fixed priority
// order and returns the first provider with a populated API key.
func DetectProvider() (Provider, string, bool) {
	for _, candidate := range envPriority {
		if key := os.Getenv(candidate.envVar); key != "" {
			return candidate.provider, key, true
		}
	}
	return "", "", false
}

// NewClientFromEnv auto-detects a provider from the environment and
// constructs the matching ChatModel.
func NewClientFromEnv(ctx context.Context) (ChatModel, error) {
	provider, apiKey, ok := DetectProvider()
	if !ok {
		return nil, bgerr.New(bgerr.ModelAuth, "no model provider API key found in environment", nil)
	}
	return NewClient(ctx, provider, apiKey, "")
}

// NewClient constructs a ChatModel for the given provider and API key. An
// empty model string selects that provider's default model.
func NewClient(ctx context.Context, provider Provider, apiKey, model string) (ChatModel, error) {
	switch provider {
	case ProviderAnthropic:
		cfg := DefaultAnthropicConfig()
		cfg.APIKey = apiKey
		if model != "" {
			cfg.Model = model
		}
		return NewAnthropicClient(cfg), nil

	case ProviderOpenAI:
		cfg := DefaultOpenAIConfig()
		cfg.APIKey = apiKey
		if model != "" {
			cfg.Model = model
		}
		return NewOpenAIClient(cfg), nil

	case ProviderXAI:
		cfg := DefaultXAIConfig()
		cfg.APIKey = apiKey
		if model != "" {
			cfg.Model = model
		}
		return NewOpenAIClient(cfg), nil

	case ProviderOpenRouter:
		cfg := DefaultOpenRouterConfig()
		cfg.APIKey = apiKey
		if model != "" {
			cfg.Model = model
		}
		return NewOpenAIClient(cfg), nil

	case ProviderZAI:
		cfg := OpenAIConfig{BaseURL: "https://api.z.ai/api/paas/v4", Model: "glm-4.6", APIKey: apiKey}
		if model != "" {
			cfg.Model = model
		}
		return NewOpenAIClient(cfg), nil

	case ProviderGemini:
		cfg := DefaultGeminiConfig()
		cfg.APIKey = apiKey
		if model != "" {
			cfg.Model = model
		}
		return NewGeminiClient(ctx, cfg)

	default:
		return nil, bgerr.New(bgerr.InvalidInput, "unknown model provider: "+string(provider), nil)
	}
}
