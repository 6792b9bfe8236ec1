package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/agente-metalurgico/server/internal/agent/model"
)

//go:embed template/system_prompt.txt
var systemPrompt string

//go:embed template/user_prompt.txt
var userPrompt string

// Template variable keys.
const (
	VarQuestion = "question"
	VarContext  = "context"
	VarHistory  = "history"
)

// SystemPrompt returns the fixed instruction block sent as the system message.
func SystemPrompt() string {
	return systemPrompt
}

// NewTemplate builds the chat template used by the graph. Recent history, when
// supplied under VarHistory, sits between the system and user messages.
func NewTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder(VarHistory, true),
		schema.UserMessage(userPrompt),
	)
}

// Vars returns the template variables for question and context.
func Vars(question, retrieved string) map[string]any {
	return map[string]any{
		VarQuestion: question,
		VarContext:  retrieved,
	}
}

// Render produces the (system, user) pair for question and the assembled context.
func Render(ctx context.Context, question, retrieved string) (model.RenderedPrompt, error) {
	msgs, err := NewTemplate().Format(ctx, Vars(question, retrieved))
	if err != nil {
		return model.RenderedPrompt{}, fmt.Errorf("prompt render: %w", err)
	}
	return FromMessages(msgs)
}

// FromMessages extracts the rendered pair from formatted template output,
// skipping any history placed between the system and user messages.
func FromMessages(msgs []*schema.Message) (model.RenderedPrompt, error) {
	if len(msgs) < 2 || msgs[0] == nil || msgs[len(msgs)-1] == nil {
		return model.RenderedPrompt{}, fmt.Errorf("prompt render: expected system and user messages, got %d", len(msgs))
	}
	first, last := msgs[0], msgs[len(msgs)-1]
	if first.Role != schema.System || last.Role != schema.User {
		return model.RenderedPrompt{}, fmt.Errorf("prompt render: unexpected roles %s/%s", first.Role, last.Role)
	}
	return model.RenderedPrompt{System: first.Content, User: last.Content}, nil
}
