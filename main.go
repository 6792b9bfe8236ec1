package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/agente-metalurgico/server/internal/agent/graph"
	"github.com/agente-metalurgico/server/internal/agent/llm"
	"github.com/agente-metalurgico/server/internal/agent/model"
	"github.com/agente-metalurgico/server/internal/agent/rag"
	"github.com/agente-metalurgico/server/internal/agent/repo"
	"github.com/agente-metalurgico/server/internal/core"
	"github.com/agente-metalurgico/server/internal/server"
	"github.com/agente-metalurgico/server/internal/vectorstore"
	logx "github.com/agente-metalurgico/server/pkg/logger"
	pkgredis "github.com/agente-metalurgico/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the server,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Server      server.Config
	VectorStore vectorstore.Config
	Embedding   vectorstore.EmbeddingConfig
	Redis       pkgredis.Config `envconfig:"REDIS"`

	// Agent configs
	LLM          model.LLMConfig
	Retrieval    model.RetrievalConfig
	Conversation model.ConversationConfig
}

func main() {
	// Load .env file
	envErr := godotenv.Load(".env")

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}

	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})
	if envErr != nil {
		logx.Debug().Err(envErr).Msg("No .env file loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := vectorstore.OpenWithEmbedding(ctx, cfg.VectorStore, cfg.Embedding, cfg.LLM.OpenAIAPIKey, cfg.LLM.GeminiAPIKey)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open vector store")
	}

	chatModel, err := llm.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		logx.Fatal().Err(err).Str("provider", cfg.LLM.Provider).Msg("Failed to initialise chat model")
	}

	history, closeHistory, err := newConversationRepository(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Str("backend", cfg.Conversation.Backend).Msg("Failed to initialise conversation history")
	}
	defer closeHistory()

	runner, err := graph.BuildAnswerGraph(ctx, graph.Config{
		Oracle:           store,
		ChatModel:        chatModel,
		LLM:              cfg.LLM,
		Retrieval:        cfg.Retrieval,
		Conversation:     cfg.Conversation,
		ConversationRepo: history,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build answer graph")
	}

	credential := model.CredentialPresent(cfg.LLM.APIKey())
	logx.Info().
		Str("environment", cfg.Environment.String()).
		Str("provider", cfg.LLM.Provider).
		Str("model", cfg.LLM.Model).
		Bool("credential_present", credential).
		Int("documents", store.Count()).
		Msg("Assistant ready")

	srv := server.New(cfg.Server, runner, rag.NewAssembler(store, cfg.Retrieval.Threshold()), store, server.Defaults{
		TopK:              cfg.Retrieval.TopK,
		MaxCharsPerDoc:    cfg.Retrieval.MaxCharsPerDoc,
		CredentialPresent: credential,
	})
	if err := srv.Start(ctx); err != nil {
		logx.Fatal().Err(err).Msg("HTTP server failed")
	}
	logx.Info().Msg("Server stopped")
}

// newConversationRepository selects the history backend; the returned func releases it.
func newConversationRepository(ctx context.Context, cfg AppConfig) (model.ConversationRepository, func(), error) {
	switch cfg.Conversation.Backend {
	case "redis":
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, func() {}, err
		}
		logx.Info().Msg("Connected to Redis successfully")
		return repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTL), func() { _ = rdb.Close() }, nil
	default:
		return repo.NewMemoryConversationRepository(), func() {}, nil
	}
}
