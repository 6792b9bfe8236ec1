package conversations

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"

	"github.com/agente-metalurgico/server/internal/agent/model"
)

const DefaultMaxPairs = 4

// MessagesManager is the conversation history buffer. It owns the pair-wise
// append policy and the bound of N pairs; persistence is the repository's job.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxPairs         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) (*MessagesManager, error) {
	if conversationRepo == nil {
		return nil, errors.New("conversation repo is nil")
	}
	maxPairs := config.MaxPairs
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxPairs:         maxPairs,
	}, nil
}

// MaxPairs returns the number of (user, assistant) pairs retained per conversation.
func (cm *MessagesManager) MaxPairs() int {
	return cm.maxPairs
}

// AppendTurn records one completed exchange. The user and assistant turns are
// always stored together and the oldest pairs are evicted beyond the bound.
func (cm *MessagesManager) AppendTurn(ctx context.Context, conversationID, userText, assistantText string) error {
	return cm.conversationRepo.AppendPair(ctx, conversationID,
		schema.UserMessage(userText),
		schema.AssistantMessage(assistantText, nil),
		cm.maxPairs*2,
	)
}

// Recent returns the retained turns, oldest first. The slice is the caller's own copy.
func (cm *MessagesManager) Recent(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return trimTail(history.Messages, cm.maxPairs*2), nil
}

// Clear drops the history of one conversation.
func (cm *MessagesManager) Clear(ctx context.Context, conversationID string) error {
	return cm.conversationRepo.ClearHistory(ctx, conversationID)
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
