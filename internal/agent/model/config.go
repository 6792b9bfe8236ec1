package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	MaxPairs       int           `envconfig:"CONVERSATION_MAX_PAIRS" default:"4"`
	Backend        string        `envconfig:"CONVERSATION_BACKEND" default:"memory"`
	TTL            time.Duration `envconfig:"CONVERSATION_TTL" default:"0s"`
	IncludeHistory bool          `envconfig:"CONVERSATION_INCLUDE_HISTORY" default:"false"`
}

type LLMConfig struct {
	Provider      string  `envconfig:"LLM_PROVIDER" default:"openai"`
	OpenAIAPIKey  string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string  `envconfig:"OPENAI_BASE_URL"`
	GeminiAPIKey  string  `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string  `envconfig:"GEMINI_BASE_URL"`
	Model         string  `envconfig:"LLM_MODEL" default:"gpt-4o"`
	Temperature   float32 `envconfig:"LLM_TEMPERATURE" default:"0.1"`
	MaxTokens     int     `envconfig:"LLM_MAX_TOKENS" default:"1000"`
}

// APIKey returns the credential of the configured provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

type RetrievalConfig struct {
	TopK              int     `envconfig:"RAG_TOP_K" default:"3"`
	MaxCharsPerDoc    int     `envconfig:"RAG_MAX_CHARS_PER_DOC" default:"2000"`
	DistanceFilter    bool    `envconfig:"RAG_DISTANCE_FILTER" default:"true"`
	DistanceThreshold float64 `envconfig:"RAG_DISTANCE_THRESHOLD" default:"0.5"`
	PreviewChars      int     `envconfig:"RAG_PREVIEW_CHARS" default:"220"`
}

// Threshold returns the inclusive distance upper bound, or nil when filtering is off.
func (c RetrievalConfig) Threshold() *float64 {
	if !c.DistanceFilter {
		return nil
	}
	t := c.DistanceThreshold
	return &t
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)
