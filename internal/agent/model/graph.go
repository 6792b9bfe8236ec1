package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// It is registered via compose.WithGenLocalState and only touched inside
// state handlers or compose.ProcessState, which serialise access.
type AppState struct {
	ConversationID string
	Question       string
	TopK           int
	MaxCharsPerDoc int
	Mode           Mode
	Retrieval      *RetrievalResult
	Prompt         RenderedPrompt
}

// QueryInput represents one normalised ask request entering the graph.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	ModeOverride   *bool  `json:"mode_override,omitempty"`
	TopK           int    `json:"top_k"`
	MaxCharsPerDoc int    `json:"max_chars_per_doc"`
}

// Outcome is what the graph returns for a completed request.
type Outcome struct {
	Answer     string
	Mode       Mode
	Model      string
	Retrieval  *RetrievalResult
	Prompt     RenderedPrompt
	Usage      *schema.TokenUsage
	Structured map[string]any
}
