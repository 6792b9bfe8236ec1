package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

var vocabulary = []string{"ph", "flotación", "espesador", "molino", "torque", "cal"}

// keywordEmbed maps text onto keyword counts plus a constant bias so no vector is zero.
func keywordEmbed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, len(vocabulary)+1)
	v[len(vocabulary)] = 0.1
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, "¿?.,:;")
		for i, k := range vocabulary {
			if w == k {
				v[i]++
			}
		}
	}
	return v, nil
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewInMemory("", keywordEmbed)
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	err = s.Upsert(context.Background(), []Document{
		{ID: "flotacion", Text: "El ph óptimo en flotación es 10.5 con cal", Metadata: map[string]string{"source": "flotacion.txt"}},
		{ID: "espesador", Text: "El espesador controla el torque del rastrillo", Metadata: map[string]string{"source": "espesador.txt"}},
		{ID: "molienda", Text: "El molino SAG opera con bolas", Metadata: map[string]string{"source": "molienda.txt"}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return s
}

func TestQueryEmptyCollection(t *testing.T) {
	s, err := NewInMemory("vacia", keywordEmbed)
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	got, err := s.Query(context.Background(), "¿Qué es un espesador?", 3)
	if err != nil {
		t.Fatalf("Query on empty collection: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}
}

func TestQueryOrdersByDistance(t *testing.T) {
	s := seededStore(t)

	got, err := s.Query(context.Background(), "¿Cuál es el ph de flotación?", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("candidates = %d, want 3 (k clamped to count)", len(got))
	}
	if got[0].ID != "flotacion" || got[0].Metadata["source"] != "flotacion.txt" {
		t.Errorf("nearest = %+v", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i].Distance < got[i-1].Distance {
			t.Errorf("not ascending at %d: %v < %v", i, got[i].Distance, got[i-1].Distance)
		}
	}
	for _, c := range got {
		if c.Distance < 0 {
			t.Errorf("negative distance %v", c.Distance)
		}
	}
}

func TestQueryRespectsK(t *testing.T) {
	s := seededStore(t)
	got, err := s.Query(context.Background(), "torque del espesador", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "espesador" {
		t.Errorf("got %+v", got)
	}
	if got, _ := s.Query(context.Background(), "   ", 3); len(got) != 0 {
		t.Errorf("blank query returned %d candidates", len(got))
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	s := seededStore(t)
	err := s.Upsert(context.Background(), []Document{
		{ID: "molienda", Text: "El molino de bolas usa cal", Metadata: map[string]string{"source": "molienda.txt"}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if s.Count() != 3 {
		t.Errorf("count = %d, want 3", s.Count())
	}
	if names := s.Collections(); len(names) != 1 || names[0] != DefaultCollection {
		t.Errorf("collections = %v", names)
	}
}

func TestPersistentStoreReloads(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: dir, Collection: "kb_test"}

	s, err := Open(cfg, keywordEmbed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Upsert(context.Background(), []Document{{ID: "a", Text: "ph", Metadata: map[string]string{"source": "a.txt"}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reopened, err := Open(cfg, keywordEmbed)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Count() != 1 {
		t.Errorf("count after reopen = %d, want 1", reopened.Count())
	}
}

func TestOpenAIEmbeddingFunc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "text-embedding-3-small" || len(req.Input) != 1 {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.6,0.8]}],
			"usage":{"prompt_tokens":3,"total_tokens":3}}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL
	embed := NewOpenAIEmbeddingFunc(openai.NewClientWithConfig(cfg), "text-embedding-3-small")

	v, err := embed(context.Background(), "espesador")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(v) != 2 || v[0] < 0.59 || v[1] > 0.81 {
		t.Errorf("vector = %v", v)
	}
}

func TestNewEmbeddingFuncUnknownProvider(t *testing.T) {
	if _, err := NewEmbeddingFunc(context.Background(), EmbeddingConfig{Provider: "cohere"}, "", ""); err == nil {
		t.Error("expected error for unknown provider")
	}
	embed, err := NewEmbeddingFunc(context.Background(), EmbeddingConfig{Provider: ProviderOllama, Model: "nomic-embed-text"}, "", "")
	if err != nil || embed == nil {
		t.Errorf("ollama embedding func: %v", err)
	}
}
