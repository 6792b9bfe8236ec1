// Command probe runs a fixed set of domain questions against the vector store
// and prints the nearest documents for each one.
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/agente-metalurgico/server/internal/agent/model"
	"github.com/agente-metalurgico/server/internal/agent/rag"
	"github.com/agente-metalurgico/server/internal/core"
	"github.com/agente-metalurgico/server/internal/vectorstore"
	logx "github.com/agente-metalurgico/server/pkg/logger"
)

var defaultQueries = []string{
	"¿Qué variables afectan la potencia del molino SAG?",
	"¿Cómo influye el pH en la flotación de cobre?",
	"¿Qué significa un aumento de torque en un espesador?",
}

type config struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL" default:"warn"`
	VectorStore vectorstore.Config
	Embedding   vectorstore.EmbeddingConfig
	LLM         model.LLMConfig
	Retrieval   model.RetrievalConfig
}

func main() {
	topK := flag.Int("k", 3, "documents per query")
	preview := flag.Int("preview", 220, "characters of text shown per hit")
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
	fmt.Printf("Docs en %s: %d\n", cfg.VectorStore.Collection, store.Count())

	queries := defaultQueries
	if flag.NArg() > 0 {
		queries = []string{strings.Join(flag.Args(), " ")}
	}

	assembler := rag.NewAssembler(store, cfg.Retrieval.Threshold())
	for _, q := range queries {
		fmt.Println("\n======================")
		fmt.Println("QUERY:", q)

		hits, err := assembler.Retrieve(ctx, q, *topK)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if len(hits) == 0 {
			fmt.Println("No results found")
			continue
		}
		for i, h := range hits {
			fmt.Printf("\n--- HIT %d ---\n", i+1)
			fmt.Println("id:", h.ID)
			fmt.Printf("distance: %.4f\n", h.Distance)
			fmt.Println("source:", h.Source)
			fmt.Println("preview:", strings.ReplaceAll(model.Truncate(h.Text, *preview), "\n", " "))
		}
	}
}
