package model

import "time"

// HitSummary is the debug view of a hit with a bounded text preview.
type HitSummary struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Distance float64 `json:"distance"`
	Preview  string  `json:"preview"`
}

// DebugEnvelope is returned instead of the bare answer when debug is requested.
type DebugEnvelope struct {
	Mode           Mode           `json:"mode"`
	ConversationID string         `json:"conversation_id"`
	Question       string         `json:"question"`
	TopK           int            `json:"top_k"`
	MaxCharsPerDoc int            `json:"max_chars_per_doc"`
	Model          string         `json:"model,omitempty"`
	ElapsedMS      float64        `json:"elapsed_ms"`
	Hits           []HitSummary   `json:"hits"`
	Context        string         `json:"context"`
	Prompt         RenderedPrompt `json:"prompt"`
	Metrics        PromptMetrics  `json:"metrics"`
	Answer         string         `json:"answer"`
	Usage          *UsageReport   `json:"usage,omitempty"`
	Structured     map[string]any `json:"structured,omitempty"`
}

// BuildEnvelope packages an outcome for a debug response. The model
// identifier is only reported when the model was actually selected.
func BuildEnvelope(in QueryInput, out *Outcome, elapsed time.Duration, previewChars int) DebugEnvelope {
	env := DebugEnvelope{
		Mode:           out.Mode,
		ConversationID: in.ConversationID,
		Question:       in.Query,
		TopK:           in.TopK,
		MaxCharsPerDoc: in.MaxCharsPerDoc,
		ElapsedMS:      float64(elapsed.Microseconds()) / 1000.0,
		Hits:           []HitSummary{},
		Prompt:         out.Prompt,
		Metrics:        out.Prompt.Metrics(),
		Answer:         out.Answer,
		Structured:     out.Structured,
	}
	if out.Mode == ModeLLM {
		env.Model = out.Model
		env.Usage = NewUsageReport(out.Model, out.Usage)
	}
	if out.Retrieval != nil {
		env.Question = out.Retrieval.Question
		env.Context = out.Retrieval.Context
		for _, h := range out.Retrieval.Hits {
			env.Hits = append(env.Hits, HitSummary{
				ID:       h.ID,
				Source:   h.Source,
				Distance: h.Distance,
				Preview:  Truncate(h.Text, previewChars),
			})
		}
	}
	return env
}
