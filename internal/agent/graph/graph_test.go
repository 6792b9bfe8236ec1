package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/agente-metalurgico/server/internal/agent/graph/nodes"
	"github.com/agente-metalurgico/server/internal/agent/graph/prompts"
	"github.com/agente-metalurgico/server/internal/agent/model"
	"github.com/agente-metalurgico/server/internal/agent/repo"
	errx "github.com/agente-metalurgico/server/internal/core/error"
)

type fakeOracle struct {
	candidates []model.Candidate
	err        error

	mu      sync.Mutex
	queries []string
	ks      []int
}

func (f *fakeOracle) Query(_ context.Context, text string, k int) ([]model.Candidate, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.ks = append(f.ks, k)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.candidates) > k {
		return f.candidates[:k], nil
	}
	return f.candidates, nil
}

type fakeChatModel struct {
	reply string
	usage *schema.TokenUsage
	err   error

	mu    sync.Mutex
	calls [][]*schema.Message
	opts  *einomodel.Options
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, input)
	f.opts = einomodel.GetCommonOptions(&einomodel.Options{}, opts...)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	msg := schema.AssistantMessage(f.reply, nil)
	if f.usage != nil {
		msg.ResponseMeta = &schema.ResponseMeta{Usage: f.usage}
	}
	return msg, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var flotacion = model.Candidate{
	ID:       "flotacion",
	Text:     "El pH óptimo es 10.5",
	Metadata: map[string]string{"source": "flotacion.txt"},
	Distance: 0.12,
}

type fixture struct {
	runner Runner
	oracle *fakeOracle
	chat   *fakeChatModel
	repo   *repo.MemoryConversationRepository
}

func newFixture(t *testing.T, oracle *fakeOracle, chat *fakeChatModel, apiKey string, includeHistory bool) fixture {
	t.Helper()
	r := repo.NewMemoryConversationRepository()
	runner, err := BuildAnswerGraph(context.Background(), Config{
		Oracle:    oracle,
		ChatModel: chat,
		LLM: model.LLMConfig{
			Provider:     model.ProviderOpenAI,
			OpenAIAPIKey: apiKey,
			Model:        "gpt-4o",
			Temperature:  0.1,
			MaxTokens:    1000,
		},
		Retrieval: model.RetrievalConfig{
			DistanceFilter:    true,
			DistanceThreshold: 0.5,
			PreviewChars:      220,
		},
		Conversation:     model.ConversationConfig{MaxPairs: 4, IncludeHistory: includeHistory},
		ConversationRepo: r,
	})
	if err != nil {
		t.Fatalf("BuildAnswerGraph: %v", err)
	}
	return fixture{runner: runner, oracle: oracle, chat: chat, repo: r}
}

func boolPtr(b bool) *bool { return &b }

func TestEmptyKnowledgeBaseNoLLM(t *testing.T) {
	f := newFixture(t, &fakeOracle{}, &fakeChatModel{}, "", false)

	reply, err := f.runner.Handle(context.Background(), model.QueryInput{
		ConversationID: "c1",
		Query:          "¿Qué es un espesador?",
	}, true)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	env := reply.Debug
	if env == nil {
		t.Fatal("debug envelope missing")
	}
	if env.Mode != model.ModeNoLLM {
		t.Errorf("mode = %s, want no_llm", env.Mode)
	}
	if len(env.Hits) != 0 || env.Context != "" {
		t.Errorf("hits=%d context=%q, want none", len(env.Hits), env.Context)
	}
	if !strings.Contains(env.Answer, nodes.NoHitsNotice) {
		t.Errorf("answer lacks no-hits notice:\n%s", env.Answer)
	}
	if env.Model != "" {
		t.Errorf("model must be absent in no_llm mode, got %q", env.Model)
	}
	if env.TopK != nodes.DefaultTopK || env.MaxCharsPerDoc != nodes.DefaultMaxCharsPerDoc {
		t.Errorf("defaults not applied: top_k=%d max_chars=%d", env.TopK, env.MaxCharsPerDoc)
	}
	if f.chat.callCount() != 0 {
		t.Error("chat model must not be called in no_llm mode")
	}
	if !strings.Contains(env.Prompt.User, "CONTEXTO (fragmentos recuperados):\n\n") {
		t.Errorf("empty context section missing from prompt:\n%s", env.Prompt.User)
	}
}

func TestSingleHitNoLLM(t *testing.T) {
	f := newFixture(t, &fakeOracle{candidates: []model.Candidate{flotacion}}, &fakeChatModel{}, "", false)

	reply, err := f.runner.Handle(context.Background(), model.QueryInput{
		ConversationID: "c1",
		Query:          "¿Cuál es el pH óptimo?",
		TopK:           3,
		MaxCharsPerDoc: 2000,
	}, true)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	env := reply.Debug

	citation := "[source: flotacion.txt | id=flotacion | distance=0.1200]"
	if strings.Count(env.Context, "[source: ") != 1 || !strings.Contains(env.Context, citation) {
		t.Errorf("context = %q", env.Context)
	}
	if !strings.Contains(env.Answer, citation) {
		t.Errorf("answer lacks citation line:\n%s", env.Answer)
	}
	if !strings.Contains(env.Answer, env.Prompt.System) || !strings.Contains(env.Answer, env.Prompt.User) {
		t.Error("answer must include the literal prompt text")
	}
	if env.Prompt.System != prompts.SystemPrompt() {
		t.Error("system prompt differs from the fixed instruction block")
	}
	if len(env.Hits) != 1 || env.Hits[0].Preview != "El pH óptimo es 10.5" || env.Hits[0].Source != "flotacion.txt" {
		t.Errorf("hits = %+v", env.Hits)
	}
}

func TestCredentialAbsentSelectsNoLLM(t *testing.T) {
	f := newFixture(t, &fakeOracle{candidates: []model.Candidate{flotacion}}, &fakeChatModel{reply: "x"}, "   ", false)

	for _, in := range []model.QueryInput{
		{ConversationID: "c", Query: "q", TopK: 1, MaxCharsPerDoc: 10},
		{ConversationID: "c", Query: "q", TopK: 10, MaxCharsPerDoc: 5000},
	} {
		out, err := f.runner.Invoke(context.Background(), in)
		if err != nil {
			t.Fatalf("Invoke: %v", err)
		}
		if out.Mode != model.ModeNoLLM {
			t.Errorf("mode = %s for %+v", out.Mode, in)
		}
	}
	if f.chat.callCount() != 0 {
		t.Error("chat model called without credential")
	}
}

func TestOverrideFalseWinsOverCredential(t *testing.T) {
	f := newFixture(t, &fakeOracle{}, &fakeChatModel{reply: "x"}, "sk-test", false)
	out, err := f.runner.Invoke(context.Background(), model.QueryInput{
		ConversationID: "c", Query: "q", ModeOverride: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Mode != model.ModeNoLLM || f.chat.callCount() != 0 {
		t.Errorf("override false ignored: mode=%s calls=%d", out.Mode, f.chat.callCount())
	}
}

func TestCompletionFailureReturnsApology(t *testing.T) {
	chat := &fakeChatModel{err: errors.New("401 invalid api key")}
	f := newFixture(t, &fakeOracle{candidates: []model.Candidate{flotacion}}, chat, "", false)

	reply, err := f.runner.Handle(context.Background(), model.QueryInput{
		ConversationID: "c1",
		Query:          "¿Cuál es el pH óptimo?",
		ModeOverride:   boolPtr(true),
	}, false)
	if err != nil {
		t.Fatalf("Handle must succeed when completion fails: %v", err)
	}
	if reply.Answer != nodes.ApologyMessage {
		t.Errorf("answer = %q, want apology", reply.Answer)
	}
	if reply.Debug != nil {
		t.Error("debug envelope returned without being requested")
	}
	if chat.callCount() != 1 {
		t.Errorf("chat model calls = %d, want 1 (no retries)", chat.callCount())
	}

	h, _ := f.repo.LoadHistory(context.Background(), "c1")
	if len(h.Messages) != 2 || h.Messages[1].Content != nodes.ApologyMessage {
		t.Errorf("history = %+v", h.Messages)
	}
}

func TestForcedLLMWithoutChatModelReturnsApology(t *testing.T) {
	runner, err := BuildAnswerGraph(context.Background(), Config{
		Oracle:           &fakeOracle{candidates: []model.Candidate{flotacion}},
		LLM:              model.LLMConfig{Provider: model.ProviderGemini, Model: "gemini-2.0-flash"},
		ConversationRepo: repo.NewMemoryConversationRepository(),
	})
	if err != nil {
		t.Fatalf("BuildAnswerGraph: %v", err)
	}

	reply, err := runner.Handle(context.Background(), model.QueryInput{ConversationID: "c1", Query: "q"}, true)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Debug.Mode != model.ModeNoLLM {
		t.Errorf("mode without credential = %s, want no_llm", reply.Debug.Mode)
	}

	reply, err = runner.Handle(context.Background(), model.QueryInput{
		ConversationID: "c1", Query: "q", ModeOverride: boolPtr(true),
	}, false)
	if err != nil {
		t.Fatalf("Handle with override: %v", err)
	}
	if reply.Answer != nodes.ApologyMessage {
		t.Errorf("answer = %q, want apology", reply.Answer)
	}
}

func TestLLMAnswer(t *testing.T) {
	chat := &fakeChatModel{
		reply: "El pH óptimo es 10.5 [source: flotacion.txt]\n{\"ph\": 10.5}",
		usage: &schema.TokenUsage{PromptTokens: 400, CompletionTokens: 40, TotalTokens: 440},
	}
	f := newFixture(t, &fakeOracle{candidates: []model.Candidate{flotacion}}, chat, "sk-test", false)

	reply, err := f.runner.Handle(context.Background(), model.QueryInput{
		ConversationID: "c1",
		Query:          "pregunta: ¿Cuál es el pH óptimo?",
	}, true)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	env := reply.Debug

	if env.Mode != model.ModeLLM || env.Model != "gpt-4o" {
		t.Errorf("mode=%s model=%q", env.Mode, env.Model)
	}
	if env.Question != "¿Cuál es el pH óptimo?" {
		t.Errorf("question prefix not stripped: %q", env.Question)
	}
	if f.oracle.queries[0] != "¿Cuál es el pH óptimo?" {
		t.Errorf("oracle queried with %q", f.oracle.queries[0])
	}
	if env.Usage == nil || env.Usage.TotalTokens != 440 || env.Usage.TotalCost <= 0 {
		t.Errorf("usage = %+v", env.Usage)
	}
	if env.Structured["ph"] != 10.5 {
		t.Errorf("structured = %v", env.Structured)
	}

	msgs := chat.calls[0]
	if len(msgs) != 2 || msgs[0].Role != schema.System || msgs[1].Role != schema.User {
		t.Fatalf("model received %d messages", len(msgs))
	}
	if msgs[1].Content != env.Prompt.User {
		t.Error("model user message differs from the rendered prompt")
	}
	if chat.opts.Temperature == nil || *chat.opts.Temperature != 0.1 {
		t.Errorf("temperature = %v", chat.opts.Temperature)
	}
	if chat.opts.MaxTokens == nil || *chat.opts.MaxTokens != 1000 {
		t.Errorf("max tokens = %v", chat.opts.MaxTokens)
	}
}

func TestHistoryIncludedWhenEnabled(t *testing.T) {
	chat := &fakeChatModel{reply: "respuesta"}
	f := newFixture(t, &fakeOracle{}, chat, "sk-test", true)
	ctx := context.Background()

	for _, q := range []string{"primera", "segunda"} {
		if _, err := f.runner.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: q}); err != nil {
			t.Fatalf("Invoke: %v", err)
		}
	}

	second := chat.calls[1]
	if len(second) != 4 {
		t.Fatalf("second call messages = %d, want system + 2 history + user", len(second))
	}
	if second[1].Content != "primera" || second[2].Content != "respuesta" {
		t.Errorf("history = %q / %q", second[1].Content, second[2].Content)
	}
}

func TestHistoryBoundedAcrossRequests(t *testing.T) {
	f := newFixture(t, &fakeOracle{}, &fakeChatModel{}, "", false)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := f.runner.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "q"}); err != nil {
			t.Fatalf("Invoke: %v", err)
		}
	}
	h, _ := f.repo.LoadHistory(ctx, "c1")
	if len(h.Messages) != 8 {
		t.Errorf("history length = %d, want 8", len(h.Messages))
	}
}

func TestHistoryAndClear(t *testing.T) {
	f := newFixture(t, &fakeOracle{}, &fakeChatModel{}, "", false)
	ctx := context.Background()

	if _, err := f.runner.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "pregunta: ¿Qué es un espesador?"}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	turns, err := f.runner.History(ctx, "c1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != schema.User || turns[0].Content != "¿Qué es un espesador?" || turns[1].Role != schema.Assistant {
		t.Fatalf("turns = %+v", turns)
	}

	if err := f.runner.ClearHistory(ctx, "c1"); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if turns, _ := f.runner.History(ctx, "c1"); len(turns) != 0 {
		t.Errorf("turns after clear = %d", len(turns))
	}
}

func TestRetrievalFailureSurfaces(t *testing.T) {
	f := newFixture(t, &fakeOracle{err: errors.New("store unavailable")}, &fakeChatModel{}, "sk-test", false)

	_, err := f.runner.Handle(context.Background(), model.QueryInput{ConversationID: "c1", Query: "q"}, false)
	if err == nil {
		t.Fatal("expected retrieval failure")
	}
	if errx.KindOf(err) != errx.KindRetrieval {
		t.Errorf("kind = %v, want retrieval", errx.KindOf(err))
	}
	if f.chat.callCount() != 0 {
		t.Error("chat model must not be called after a retrieval failure")
	}
	h, _ := f.repo.LoadHistory(context.Background(), "c1")
	if len(h.Messages) != 0 {
		t.Error("failed request must not touch history")
	}
}

func TestBuildAnswerGraphValidation(t *testing.T) {
	if _, err := BuildAnswerGraph(context.Background(), Config{ConversationRepo: repo.NewMemoryConversationRepository()}); err == nil {
		t.Error("expected error without oracle")
	}
	if _, err := BuildAnswerGraph(context.Background(), Config{Oracle: &fakeOracle{}}); err == nil {
		t.Error("expected error without conversation repo")
	}
	if _, err := BuildGraph(context.Background(), nil); err == nil {
		t.Error("expected error for nil graph config")
	}
}
