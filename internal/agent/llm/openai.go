package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
)

const typeOpenAI = "OpenAI"

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIChatModel adapts the go-openai chat completion client to Eino's BaseChatModel.
type OpenAIChatModel struct {
	client *openai.Client
	model  string
}

func NewOpenAIChatModel(cfg OpenAIConfig) *OpenAIChatModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIChatModel{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (m *OpenAIChatModel) GetType() string { return typeOpenAI }

func (m *OpenAIChatModel) IsCallbacksEnabled() bool { return true }

// Generate sends one non-streaming chat completion request.
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (out *schema.Message, err error) {
	options := einomodel.GetCommonOptions(&einomodel.Options{Model: &m.model}, opts...)
	req := openai.ChatCompletionRequest{
		Model:    *options.Model,
		Messages: toOpenAIMessages(input),
	}
	conf := &einomodel.Config{Model: req.Model}
	if options.Temperature != nil {
		req.Temperature = *options.Temperature
		conf.Temperature = *options.Temperature
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
		conf.MaxTokens = *options.MaxTokens
	}

	ctx = callbacks.EnsureRunInfo(ctx, m.GetType(), components.ComponentOfChatModel)
	ctx = callbacks.OnStart(ctx, &einomodel.CallbackInput{Messages: input, Config: conf})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat completion: empty choices")
	}

	choice := resp.Choices[0]
	usage := &schema.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	out = schema.AssistantMessage(choice.Message.Content, nil)
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(choice.FinishReason),
		Usage:        usage,
	}

	callbacks.OnEnd(ctx, &einomodel.CallbackOutput{
		Message: out,
		Config:  conf,
		TokenUsage: &einomodel.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
	})
	return out, nil
}

// Stream is served by a single Generate call; answers here are short and never streamed to clients.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func toOpenAIMessages(in []*schema.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		if m == nil {
			continue
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

var _ einomodel.BaseChatModel = (*OpenAIChatModel)(nil)
