package llm

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/agente-metalurgico/server/internal/agent/model"
	logx "github.com/agente-metalurgico/server/pkg/logger"
)

// NewChatModel builds the completion oracle for the configured provider.
// Construction never calls the provider, so a bad credential only surfaces on first use.
// Without a credential it returns a nil model and the assistant runs in no_llm mode.
func NewChatModel(ctx context.Context, cfg model.LLMConfig) (einomodel.BaseChatModel, error) {
	switch cfg.Provider {
	case model.ProviderOpenAI, model.ProviderGemini, "":
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if !model.CredentialPresent(cfg.APIKey()) {
		logx.Warn().Str("provider", cfg.Provider).Msg("No LLM credential configured, answers run in no_llm mode")
		return nil, nil
	}

	switch cfg.Provider {
	case model.ProviderOpenAI, "":
		return NewOpenAIChatModel(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.Model,
		}), nil
	case model.ProviderGemini:
		return NewGeminiChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
