package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/agente-metalurgico/server/internal/agent/model"
	logx "github.com/agente-metalurgico/server/pkg/logger"
)

const DefaultCollection = "kb_concentradora"

type Config struct {
	Path       string `envconfig:"VECTOR_DB_PATH" default:"vector_db"`
	Collection string `envconfig:"VECTOR_COLLECTION" default:"kb_concentradora"`
	Compress   bool   `envconfig:"VECTOR_COMPRESS" default:"false"`
}

// Store is the similarity oracle backed by a chromem-go collection (cosine).
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// Document is one unit of ingested text.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Open creates or loads the persistent store at cfg.Path.
func Open(cfg Config, embed chromem.EmbeddingFunc) (*Store, error) {
	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	s, err := newStore(db, cfg.Collection, embed)
	if err != nil {
		return nil, err
	}
	logx.Info().Str("dir", cfg.Path).Str("collection", cfg.Collection).Int("count", s.Count()).Msg("Vector store loaded")
	return s, nil
}

// OpenWithEmbedding resolves the embedding backend and opens the persistent store.
func OpenWithEmbedding(ctx context.Context, cfg Config, emb EmbeddingConfig, openAIKey, geminiKey string) (*Store, error) {
	embed, err := NewEmbeddingFunc(ctx, emb, openAIKey, geminiKey)
	if err != nil {
		return nil, err
	}
	return Open(cfg, embed)
}

// NewInMemory returns a non-persistent store, used by tests and tools.
func NewInMemory(collection string, embed chromem.EmbeddingFunc) (*Store, error) {
	return newStore(chromem.NewDB(), collection, embed)
}

func newStore(db *chromem.DB, collection string, embed chromem.EmbeddingFunc) (*Store, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	col, err := db.GetOrCreateCollection(collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("get/create collection: %w", err)
	}
	return &Store{db: db, collection: col}, nil
}

// Query returns up to k documents by ascending cosine distance (1 - similarity).
// An empty collection or a blank query yields no candidates.
func (s *Store) Query(ctx context.Context, text string, k int) ([]model.Candidate, error) {
	count := s.collection.Count()
	if count == 0 || k <= 0 || strings.TrimSpace(text) == "" {
		return []model.Candidate{}, nil
	}
	if k > count {
		k = count
	}

	docs, err := s.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}

	out := make([]model.Candidate, 0, len(docs))
	for _, d := range docs {
		distance := 1 - float64(d.Similarity)
		if distance < 0 {
			distance = 0
		}
		out = append(out, model.Candidate{
			ID:       d.ID,
			Text:     d.Content,
			Metadata: d.Metadata,
			Distance: distance,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// Upsert writes documents, replacing any existing document with the same id.
func (s *Store) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, chromem.Document{
			ID:       d.ID,
			Content:  d.Text,
			Metadata: d.Metadata,
		})
	}
	if err := s.collection.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	return s.collection.Count()
}

// Collections lists the collection names of the underlying database.
func (s *Store) Collections() []string {
	names := make([]string, 0)
	for name := range s.db.ListCollections() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ model.SimilarityOracle = (*Store)(nil)
