package model

import "unicode/utf8"

// RenderedPrompt is the (system, user) pair sent to the language model.
type RenderedPrompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

type PromptMetrics struct {
	SystemChars int `json:"system_chars"`
	UserChars   int `json:"user_chars"`
	TotalChars  int `json:"total_chars"`
}

// Metrics counts characters (code points) of each prompt section.
func (p RenderedPrompt) Metrics() PromptMetrics {
	s := utf8.RuneCountInString(p.System)
	u := utf8.RuneCountInString(p.User)
	return PromptMetrics{SystemChars: s, UserChars: u, TotalChars: s + u}
}
