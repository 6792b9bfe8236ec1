package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type EmbeddingConfig struct {
	Provider string `envconfig:"EMBEDDING_PROVIDER" default:"ollama"`
	Model    string `envconfig:"EMBEDDING_MODEL" default:"nomic-embed-text"`
	BaseURL  string `envconfig:"EMBEDDING_BASE_URL"`
}

// NewEmbeddingFunc picks the embedding backend. Keys are only needed by hosted providers.
func NewEmbeddingFunc(ctx context.Context, cfg EmbeddingConfig, openAIKey, geminiKey string) (chromem.EmbeddingFunc, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		// chromem expects the base URL including the /api path
		return chromem.NewEmbeddingFuncOllama(cfg.Model, cfg.BaseURL), nil
	case ProviderOpenAI:
		clientCfg := openai.DefaultConfig(openAIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		return NewOpenAIEmbeddingFunc(openai.NewClientWithConfig(clientCfg), cfg.Model), nil
	case ProviderGemini:
		clientCfg := &genai.ClientConfig{APIKey: geminiKey, Backend: genai.BackendGeminiAPI}
		if cfg.BaseURL != "" {
			clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
		}
		client, err := genai.NewClient(ctx, clientCfg)
		if err != nil {
			return nil, fmt.Errorf("error creating Gemini client: %w", err)
		}
		return NewGeminiEmbeddingFunc(client, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// NewOpenAIEmbeddingFunc embeds text with the OpenAI embeddings endpoint.
func NewOpenAIEmbeddingFunc(client *openai.Client, model string) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(model),
			Input: []string{text},
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, errors.New("no embedding data returned from API")
		}
		src := resp.Data[0].Embedding
		v := make([]float32, len(src))
		for i := range src {
			v[i] = float32(src[i])
		}
		return v, nil
	}
}

// NewGeminiEmbeddingFunc embeds text with the Gemini embedding models.
func NewGeminiEmbeddingFunc(client *genai.Client, model string) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.Models.EmbedContent(ctx, model,
			[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
		if err != nil {
			return nil, fmt.Errorf("gemini embeddings: %w", err)
		}
		if len(resp.Embeddings) == 0 {
			return nil, errors.New("empty embedding response")
		}
		return resp.Embeddings[0].Values, nil
	}
}
