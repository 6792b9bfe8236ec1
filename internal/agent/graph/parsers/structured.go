package parsers

import (
	"encoding/json"
	"fmt"
	"regexp"

	errx "github.com/agente-metalurgico/server/internal/core/error"
	logx "github.com/agente-metalurgico/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024
	maxErrSnippet = 200
)

// objectPattern matches the first brace-delimited span, shortest first.
var objectPattern = regexp.MustCompile(`\{[\s\S]*?\}`)

// Structured is the outcome of scanning model output for an embedded JSON object.
// Found is false when no object exists or the candidate did not decode.
type Structured struct {
	Found  bool
	Fields map[string]any
}

// NotFound is the zero Structured.
var NotFound = Structured{}

// ExtractStructured looks for the first JSON object embedded in free-form text.
// A malformed candidate is logged and reported as NotFound; it never aborts the caller.
func ExtractStructured(content string) Structured {
	res, err := parseStructured(content)
	if err != nil {
		logx.Warn().
			Err(err).
			Str("kind", errx.KindOf(err).String()).
			Msg("Discarding structured data from model output")
		return NotFound
	}
	return res
}

func parseStructured(content string) (Structured, error) {
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}
	match := objectPattern.FindString(content)
	if match == "" {
		return NotFound, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(match), &fields); err != nil {
		return NotFound, errx.Malformed(fmt.Errorf("decode %q: %w", snippet(match), err))
	}
	if len(fields) == 0 {
		return NotFound, nil
	}
	return Structured{Found: true, Fields: fields}, nil
}

func snippet(s string) string {
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet] + "..."
}
