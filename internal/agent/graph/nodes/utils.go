package nodes

import (
	"strings"
	"unicode"
)

// Node keys of the answer graph.
const (
	NodeRetriever        = "Retriever"
	NodePromptTemplate   = "PromptTemplate"
	NodeLLMAnswer        = "LLMAnswer"
	NodeDiagnosticAnswer = "DiagnosticAnswer"
)

const (
	DefaultTopK           = 3
	DefaultMaxCharsPerDoc = 2000

	// QuestionPrefix is the label legacy clients put in front of the question.
	QuestionPrefix = "pregunta:"

	// ApologyMessage replaces the answer whenever the completion oracle fails.
	ApologyMessage = "Lo siento, ocurrió un error al procesar tu solicitud."
)

// NormalizeQuestion strips a leading question label (any letter case, leading
// whitespace allowed) and trims what follows it. Text without the label is
// returned unchanged.
func NormalizeQuestion(q string) string {
	t := strings.TrimLeftFunc(q, unicode.IsSpace)
	if len(t) < len(QuestionPrefix) || !strings.EqualFold(t[:len(QuestionPrefix)], QuestionPrefix) {
		return q
	}
	return strings.TrimSpace(t[len(QuestionPrefix):])
}

// normalizePositive returns def when n is not a usable positive value.
func normalizePositive(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
