package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/agente-metalurgico/server/internal/agent/model"
)

type memoryConversation struct {
	mu       sync.Mutex
	messages []*schema.Message
}

// MemoryConversationRepository keeps histories in process memory. Each
// conversation has its own lock so different identifiers never contend.
// Identifiers are never evicted.
type MemoryConversationRepository struct {
	conversations sync.Map // conversation id -> *memoryConversation
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{}
}

func (r *MemoryConversationRepository) conversation(conversationID string) *memoryConversation {
	if c, ok := r.conversations.Load(conversationID); ok {
		return c.(*memoryConversation)
	}
	c, _ := r.conversations.LoadOrStore(conversationID, &memoryConversation{})
	return c.(*memoryConversation)
}

func (r *MemoryConversationRepository) AppendPair(_ context.Context, conversationID string, user, assistant *schema.Message, maxMessages int) error {
	c := r.conversation(conversationID)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, user, assistant)
	if maxMessages > 0 && len(c.messages) > maxMessages {
		kept := make([]*schema.Message, maxMessages)
		copy(kept, c.messages[len(c.messages)-maxMessages:])
		c.messages = kept
	}
	return nil
}

// LoadHistory returns a copy of the stored sequence.
func (r *MemoryConversationRepository) LoadHistory(_ context.Context, conversationID string) (*model.ConversationHistory, error) {
	h := &model.ConversationHistory{ConversationID: conversationID, Messages: []*schema.Message{}}
	v, ok := r.conversations.Load(conversationID)
	if !ok {
		return h, nil
	}
	c := v.(*memoryConversation)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		cp := *m
		h.Messages = append(h.Messages, &cp)
	}
	return h, nil
}

// ClearHistory empties the record in place so an append already holding it is kept.
func (r *MemoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	v, ok := r.conversations.Load(conversationID)
	if !ok {
		return nil
	}
	c := v.(*memoryConversation)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	return nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
