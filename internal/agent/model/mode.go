package model

import "strings"

// Mode selects between calling the language model and the diagnostic transcript.
type Mode string

const (
	ModeLLM   Mode = "llm"
	ModeNoLLM Mode = "no_llm"
)

// SelectMode applies the explicit override when present, otherwise picks llm
// only when a credential is configured. It never probes the provider.
func SelectMode(override *bool, credentialPresent bool) Mode {
	if override != nil {
		if *override {
			return ModeLLM
		}
		return ModeNoLLM
	}
	if credentialPresent {
		return ModeLLM
	}
	return ModeNoLLM
}

// CredentialPresent reports whether key is usable (non-empty after trimming).
func CredentialPresent(key string) bool {
	return strings.TrimSpace(key) != ""
}
