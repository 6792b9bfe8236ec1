package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/agente-metalurgico/server/internal/agent/graph/conversations"
	"github.com/agente-metalurgico/server/internal/agent/graph/parsers"
	"github.com/agente-metalurgico/server/internal/agent/graph/prompts"
	"github.com/agente-metalurgico/server/internal/agent/model"
	"github.com/agente-metalurgico/server/internal/agent/rag"
	errx "github.com/agente-metalurgico/server/internal/core/error"
	logx "github.com/agente-metalurgico/server/pkg/logger"
)

// AnswerModelConfig carries the completion settings for the LLM answer node.
type AnswerModelConfig struct {
	ChatModel   einomodel.BaseChatModel
	ModelName   string
	Temperature float32
	MaxTokens   int
}

// NewRetrieverPreHandler initialises the request state and selects the mode once per request.
func NewRetrieverPreHandler(credentialPresent bool) func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		in.TopK = normalizePositive(in.TopK, DefaultTopK)
		in.MaxCharsPerDoc = normalizePositive(in.MaxCharsPerDoc, DefaultMaxCharsPerDoc)

		s.ConversationID = in.ConversationID
		s.Question = in.Query
		s.TopK = in.TopK
		s.MaxCharsPerDoc = in.MaxCharsPerDoc
		s.Mode = model.SelectMode(in.ModeOverride, credentialPresent)

		logx.Debug().
			Str("conversation_id", s.ConversationID).
			Str("mode", string(s.Mode)).
			Int("top_k", s.TopK).
			Int("max_chars_per_doc", s.MaxCharsPerDoc).
			Msg("Request state initialised")
		return in, nil
	}
}

// NewRetrieverNode assembles the retrieval context and emits the prompt template variables.
// When includeHistory is set, recent turns are loaded for llm mode only.
func NewRetrieverNode(assembler *rag.Assembler, mm *conversations.MessagesManager, includeHistory bool) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (map[string]any, error) {
		result, err := assembler.Assemble(ctx, in.Query, in.TopK, in.MaxCharsPerDoc)
		if err != nil {
			logx.Error().
				Err(err).
				Str("conversation_id", in.ConversationID).
				Int("top_k", in.TopK).
				Msg("Context assembly failed")
			return nil, err
		}

		var mode model.Mode
		err = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.Retrieval = result
			mode = state.Mode
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		vars := prompts.Vars(in.Query, result.Context)
		if includeHistory && mode == model.ModeLLM && mm != nil {
			history, err := mm.Recent(ctx, in.ConversationID)
			if err != nil {
				// history is an enrichment; answer without it
				logx.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("Error loading conversation history")
			} else {
				vars[prompts.VarHistory] = history
			}
		}
		return vars, nil
	})
}

// NewPromptPostHandler records the rendered (system, user) pair in state.
func NewPromptPostHandler() func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		p, err := prompts.FromMessages(out)
		if err != nil {
			return nil, err
		}
		state.Prompt = p
		return out, nil
	}
}

// NewModeCondition routes to the answer producer matching the selected mode.
func NewModeCondition() func(context.Context, []*schema.Message) (string, error) {
	return func(ctx context.Context, _ []*schema.Message) (string, error) {
		var mode model.Mode
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			mode = state.Mode
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}
		if mode == model.ModeLLM {
			logx.Debug().Msg("Routing to LLM answer")
			return NodeLLMAnswer, nil
		}
		logx.Debug().Msg("Routing to diagnostic answer")
		return NodeDiagnosticAnswer, nil
	}
}

// NewLLMAnswerNode calls the completion oracle. Any failure is logged and the
// answer becomes ApologyMessage; the node itself never fails on the oracle.
func NewLLMAnswerNode(cfg AnswerModelConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, msgs []*schema.Message) (*model.Outcome, error) {
		out, err := outcomeFromState(ctx)
		if err != nil {
			return nil, err
		}
		out.Mode = model.ModeLLM
		out.Model = cfg.ModelName

		reply, err := generate(ctx, cfg, msgs)
		if err != nil {
			logx.Error().
				Err(errx.Completion(err)).
				Str("conversation_id", out.conversationID).
				Str("model", cfg.ModelName).
				Msg("Completion failed, answering with apology")
			out.Answer = ApologyMessage
			return out.Outcome, nil
		}

		out.Answer = reply.Content
		if reply.ResponseMeta != nil && reply.ResponseMeta.Usage != nil {
			out.Usage = reply.ResponseMeta.Usage
			logUsage(out.conversationID, cfg.ModelName, reply.ResponseMeta.Usage)
		}
		if s := parsers.ExtractStructured(reply.Content); s.Found {
			out.Structured = s.Fields
		}
		return out.Outcome, nil
	})
}

func generate(ctx context.Context, cfg AnswerModelConfig, msgs []*schema.Message) (*schema.Message, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat model is not configured")
	}
	typ, _ := components.GetType(cfg.ChatModel)
	ctx = callbacks.EnsureRunInfo(ctx, typ, components.ComponentOfChatModel)

	reply, err := cfg.ChatModel.Generate(ctx, msgs,
		einomodel.WithTemperature(cfg.Temperature),
		einomodel.WithMaxTokens(cfg.MaxTokens),
	)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, fmt.Errorf("chat model returned no message")
	}
	return reply, nil
}

// NewDiagnosticAnswerNode produces the no-LLM transcript without calling any oracle.
func NewDiagnosticAnswerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ []*schema.Message) (*model.Outcome, error) {
		out, err := outcomeFromState(ctx)
		if err != nil {
			return nil, err
		}
		out.Mode = model.ModeNoLLM

		var hits []model.DocumentHit
		if out.Retrieval != nil {
			hits = out.Retrieval.Hits
		}
		out.Answer = Diagnostic(out.question, hits, out.Prompt)
		return out.Outcome, nil
	})
}

// NewHistoryPostHandler appends the completed exchange to the conversation history.
// A storage failure is logged and does not fail the request.
func NewHistoryPostHandler(mm *conversations.MessagesManager) func(context.Context, *model.Outcome, *model.AppState) (*model.Outcome, error) {
	return func(ctx context.Context, out *model.Outcome, state *model.AppState) (*model.Outcome, error) {
		if mm == nil || out == nil {
			return out, nil
		}
		if err := mm.AppendTurn(ctx, state.ConversationID, state.Question, out.Answer); err != nil {
			logx.Error().
				Err(err).
				Str("conversation_id", state.ConversationID).
				Msg("Error saving conversation turn")
			return out, nil
		}
		logx.Debug().Str("conversation_id", state.ConversationID).Msg("Conversation turn saved")
		return out, nil
	}
}

type stateOutcome struct {
	*model.Outcome
	conversationID string
	question       string
}

func outcomeFromState(ctx context.Context) (stateOutcome, error) {
	var out stateOutcome
	err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
		out = stateOutcome{
			Outcome: &model.Outcome{
				Retrieval: state.Retrieval,
				Prompt:    state.Prompt,
			},
			conversationID: state.ConversationID,
			question:       state.Question,
		}
		return nil
	})
	if err != nil {
		return stateOutcome{}, fmt.Errorf("failed to access state: %w", err)
	}
	return out, nil
}

func logUsage(conversationID, modelName string, usage *schema.TokenUsage) {
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
	logx.Debug().
		Str("conversation_id", conversationID).
		Str("node", NodeLLMAnswer).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}
