package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/voice-diary-lab/internal/config"
)

// FromConfig constructs the configured chat client. The provider's HTTP
// client carries the per-turn timeout so a stalled generation call cannot
// block the conversation indefinitely. When a fallback provider is
// configured, transient failures retry once against it.
func FromConfig(ctx context.Context, cfg config.Config) (Client, error) {
	primary, err := build(ctx, cfg, cfg.LLMProvider)
	if err != nil {
		return nil, err
	}
	if cfg.LLMFallbackProvider == "" || cfg.LLMFallbackProvider == cfg.LLMProvider {
		return primary, nil
	}
	secondary, err := build(ctx, cfg, cfg.LLMFallbackProvider)
	if err != nil {
		return nil, fmt.Errorf("fallback provider: %w", err)
	}
	return WithFallback(primary, secondary), nil
}

func build(ctx context.Context, cfg config.Config, provider string) (Client, error) {
	httpClient := &http.Client{Timeout: time.Duration(cfg.LLMTimeoutMS) * time.Millisecond}

	switch provider {
	case "openai":
		return NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, httpClient), nil
	case "anthropic":
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel, httpClient), nil
	case "openrouter":
		return NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName, httpClient), nil
	case "gemini":
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", provider)
	}
}
