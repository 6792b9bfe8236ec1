package graph

import (
	"context"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/agente-metalurgico/server/internal/agent/graph/conversations"
	"github.com/agente-metalurgico/server/internal/agent/graph/nodes"
	"github.com/agente-metalurgico/server/internal/agent/graph/observers"
	"github.com/agente-metalurgico/server/internal/agent/graph/prompts"
	"github.com/agente-metalurgico/server/internal/agent/model"
	"github.com/agente-metalurgico/server/internal/agent/rag"
	logx "github.com/agente-metalurgico/server/pkg/logger"
)

// Runner executes the compiled graph for one ask request.
type Runner interface {
	// Invoke runs the pipeline and returns the raw outcome.
	Invoke(ctx context.Context, in model.QueryInput) (*model.Outcome, error)
	// Handle runs the pipeline and packages the reply, with a debug envelope when asked.
	Handle(ctx context.Context, in model.QueryInput, wantDebug bool) (*Reply, error)
	// History returns the retained turns of a conversation, oldest first.
	History(ctx context.Context, conversationID string) ([]*schema.Message, error)
	// ClearHistory forgets a conversation.
	ClearHistory(ctx context.Context, conversationID string) error
}

// Reply is either a bare answer or a debug envelope.
type Reply struct {
	Answer string
	Debug  *model.DebugEnvelope
}

// Config holds everything needed to compose the answer graph end-to-end.
type Config struct {
	Oracle           model.SimilarityOracle
	ChatModel        einomodel.BaseChatModel
	LLM              model.LLMConfig
	Retrieval        model.RetrievalConfig
	Conversation     model.ConversationConfig
	ConversationRepo model.ConversationRepository
}

// GraphConfig holds all configuration needed to build the graph.
type GraphConfig struct {
	Assembler         *rag.Assembler
	MessagesManager   *conversations.MessagesManager
	AnswerModel       nodes.AnswerModelConfig
	CredentialPresent bool
	IncludeHistory    bool
}

// GraphBuilder handles the construction of the answer graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *model.Outcome]
}

type graphRunner struct {
	runnable     compose.Runnable[model.QueryInput, *model.Outcome]
	messages     *conversations.MessagesManager
	previewChars int
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.Outcome, error) {
	in.Query = nodes.NormalizeQuestion(in.Query)

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("graph returned no outcome")
	}
	return out, nil
}

func (r *graphRunner) Handle(ctx context.Context, in model.QueryInput, wantDebug bool) (*Reply, error) {
	start := time.Now()
	out, err := r.Invoke(ctx, in)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	logx.Info().
		Str("conversation_id", in.ConversationID).
		Str("mode", string(out.Mode)).
		Int("hits", hitCount(out)).
		Dur("elapsed", elapsed).
		Msg("Question answered")

	if !wantDebug {
		return &Reply{Answer: out.Answer}, nil
	}
	if in.TopK <= 0 {
		in.TopK = nodes.DefaultTopK
	}
	if in.MaxCharsPerDoc <= 0 {
		in.MaxCharsPerDoc = nodes.DefaultMaxCharsPerDoc
	}
	env := model.BuildEnvelope(in, out, elapsed, r.previewChars)
	return &Reply{Answer: out.Answer, Debug: &env}, nil
}

func (r *graphRunner) History(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	return r.messages.Recent(ctx, conversationID)
}

func (r *graphRunner) ClearHistory(ctx context.Context, conversationID string) error {
	if err := r.messages.Clear(ctx, conversationID); err != nil {
		return err
	}
	logx.Info().Str("conversation_id", conversationID).Msg("Conversation cleared")
	return nil
}

func hitCount(out *model.Outcome) int {
	if out.Retrieval == nil {
		return 0
	}
	return len(out.Retrieval.Hits)
}

// BuildAnswerGraph composes the assembler and messages manager, builds the graph, and returns a Runner.
func BuildAnswerGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("similarity oracle is nil")
	}

	mm, err := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		Assembler:       rag.NewAssembler(cfg.Oracle, cfg.Retrieval.Threshold()),
		MessagesManager: mm,
		AnswerModel: nodes.AnswerModelConfig{
			ChatModel:   cfg.ChatModel,
			ModelName:   cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
		CredentialPresent: model.CredentialPresent(cfg.LLM.APIKey()),
		IncludeHistory:    cfg.Conversation.IncludeHistory,
	})
	if err != nil {
		return nil, err
	}

	previewChars := cfg.Retrieval.PreviewChars
	if previewChars <= 0 {
		previewChars = 220
	}

	logx.Debug().Msg("Answer graph built successfully")
	return &graphRunner{runnable: runnable, messages: mm, previewChars: previewChars}, nil
}

// BuildGraph constructs and returns the compiled answer graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.Outcome], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Assembler == nil {
		return nil, fmt.Errorf("context assembler is nil")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *model.Outcome](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	mm := b.config.MessagesManager

	steps := []struct {
		name string
		add  func() error
	}{
		{nodes.NodeRetriever, func() error {
			return b.graph.AddLambdaNode(nodes.NodeRetriever,
				nodes.NewRetrieverNode(b.config.Assembler, mm, b.config.IncludeHistory),
				compose.WithStatePreHandler(nodes.NewRetrieverPreHandler(b.config.CredentialPresent)),
			)
		}},
		{nodes.NodePromptTemplate, func() error {
			return b.graph.AddChatTemplateNode(nodes.NodePromptTemplate,
				prompts.NewTemplate(),
				compose.WithStatePostHandler(nodes.NewPromptPostHandler()),
			)
		}},
		{nodes.NodeLLMAnswer, func() error {
			return b.graph.AddLambdaNode(nodes.NodeLLMAnswer,
				nodes.NewLLMAnswerNode(b.config.AnswerModel),
				compose.WithStatePostHandler(nodes.NewHistoryPostHandler(mm)),
			)
		}},
		{nodes.NodeDiagnosticAnswer, func() error {
			return b.graph.AddLambdaNode(nodes.NodeDiagnosticAnswer,
				nodes.NewDiagnosticAnswerNode(),
				compose.WithStatePostHandler(nodes.NewHistoryPostHandler(mm)),
			)
		}},
	}

	for _, s := range steps {
		if err := s.add(); err != nil {
			logx.Error().Err(err).Str("node", s.name).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", s.name, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeRetriever},
		{nodes.NodeRetriever, nodes.NodePromptTemplate},
		{nodes.NodeLLMAnswer, compose.END},
		{nodes.NodeDiagnosticAnswer, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	modeBranch := compose.NewGraphBranch(
		nodes.NewModeCondition(),
		map[string]bool{
			nodes.NodeLLMAnswer:        true,
			nodes.NodeDiagnosticAnswer: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodePromptTemplate, modeBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding mode branch")
		return fmt.Errorf("error adding mode branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.Outcome], error) {
	// the pipeline is acyclic; the bound only guards against wiring mistakes
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(10), compose.WithGraphName("AnswerGraph"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
