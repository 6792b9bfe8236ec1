package nodes

import (
	"fmt"
	"strings"

	"github.com/agente-metalurgico/server/internal/agent/model"
	"github.com/agente-metalurgico/server/internal/agent/rag"
)

const (
	DiagnosticBanner = "⚠️ **LLM no disponible (modo SIN LLM)**"
	NoHitsNotice     = "No se encontraron documentos relevantes para la pregunta (colección vacía o consulta sin coincidencias)."
)

// Diagnostic synthesises the no-LLM transcript: question, retrieved hits,
// prompt metrics and the verbatim prompt that would have been sent.
func Diagnostic(question string, hits []model.DocumentHit, p model.RenderedPrompt) string {
	m := p.Metrics()

	var b strings.Builder
	b.WriteString(DiagnosticBanner)
	b.WriteString(".\n\nAbajo se muestra el **prompt** que se enviaría al modelo (SYSTEM + USER), para revisar longitud y evidencia.\n\n")

	b.WriteString("**Pregunta:** ")
	b.WriteString(question)
	b.WriteString("\n\n**Fragmentos recuperados:**\n")
	if len(hits) == 0 {
		b.WriteString(NoHitsNotice)
		b.WriteString("\n")
	}
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rag.Annotation(h))
	}

	fmt.Fprintf(&b, "\n**Prompt chars** → SYSTEM: %d | USER: %d | TOTAL: %d\n\n", m.SystemChars, m.UserChars, m.TotalChars)
	b.WriteString("#### SYSTEM\n```text\n")
	b.WriteString(p.System)
	b.WriteString("\n```\n#### USER\n```text\n")
	b.WriteString(p.User)
	b.WriteString("\n```")
	return b.String()
}
