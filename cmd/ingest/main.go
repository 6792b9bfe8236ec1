// Command ingest loads a directory of text documents into the vector store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/agente-metalurgico/server/internal/agent/model"
	"github.com/agente-metalurgico/server/internal/core"
	"github.com/agente-metalurgico/server/internal/ingest"
	"github.com/agente-metalurgico/server/internal/vectorstore"
	logx "github.com/agente-metalurgico/server/pkg/logger"
)

type config struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL" default:"info"`
	VectorStore vectorstore.Config
	Embedding   vectorstore.EmbeddingConfig
	LLM         model.LLMConfig
}

func main() {
	dir := flag.String("dir", ingest.DefaultDir, "directory with .txt/.html documents")
	flag.Parse()

	_ = godotenv.Load(".env")

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})

	ctx := context.Background()
	store, err := vectorstore.OpenWithEmbedding(ctx, cfg.VectorStore, cfg.Embedding, cfg.LLM.OpenAIAPIKey, cfg.LLM.GeminiAPIKey)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to open vector store")
	}

	report, err := ingest.Run(ctx, store, *dir)
	if report != nil {
		fmt.Printf("DB path: %s\n", cfg.VectorStore.Path)
		fmt.Printf("Collections before: %v\n", report.CollectionsBefore)
		fmt.Printf("Count before: %d\n", report.CountBefore)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Ingested %d files from %s\n", report.Files, report.Dir)
	fmt.Printf("Collections after: %v\n", report.CollectionsAfter)
	fmt.Printf("Count after: %d\n", report.CountAfter)
}
