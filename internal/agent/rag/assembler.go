package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/agente-metalurgico/server/internal/agent/model"
	errx "github.com/agente-metalurgico/server/internal/core/error"
	logx "github.com/agente-metalurgico/server/pkg/logger"
)

// Separator joins the annotated blocks of a context string.
const Separator = "\n\n---\n\n"

// Assembler turns oracle candidates into a retrieval result with a bounded,
// source-annotated context string.
type Assembler struct {
	oracle    model.SimilarityOracle
	threshold *float64
}

// NewAssembler returns an Assembler. A nil threshold disables distance filtering.
func NewAssembler(oracle model.SimilarityOracle, threshold *float64) *Assembler {
	return &Assembler{oracle: oracle, threshold: threshold}
}

// Retrieve queries the oracle and resolves every surviving candidate into a hit.
// Hits keep the oracle order and their full text.
func (a *Assembler) Retrieve(ctx context.Context, question string, topK int) ([]model.DocumentHit, error) {
	if topK <= 0 {
		return nil, errx.InvalidRequest("top_k debe ser un entero positivo")
	}

	candidates, err := a.oracle.Query(ctx, question, topK)
	if err != nil {
		logx.Error().Err(err).Int("top_k", topK).Msg("Similarity query failed")
		return nil, errx.Retrieval(fmt.Errorf("similarity query: %w", err))
	}

	hits := make([]model.DocumentHit, 0, len(candidates))
	for _, c := range candidates {
		if a.threshold != nil && c.Distance > *a.threshold {
			continue
		}
		hits = append(hits, model.HitFromCandidate(c))
	}

	logx.Debug().
		Int("top_k", topK).
		Int("candidates", len(candidates)).
		Int("hits", len(hits)).
		Msg("Retrieval completed")
	return hits, nil
}

// Assemble retrieves hits for question, truncates each text to maxChars and
// builds the annotated context. No hits yield an empty context.
func (a *Assembler) Assemble(ctx context.Context, question string, topK, maxChars int) (*model.RetrievalResult, error) {
	if maxChars <= 0 {
		return nil, errx.InvalidRequest("max_chars_per_doc debe ser un entero positivo")
	}

	hits, err := a.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].Text = model.Truncate(hits[i].Text, maxChars)
	}

	return &model.RetrievalResult{
		Question: question,
		Hits:     hits,
		Context:  FormatContext(hits),
	}, nil
}

// Annotation renders the header line that precedes a hit's text in the context.
func Annotation(h model.DocumentHit) string {
	return fmt.Sprintf("[source: %s | id=%s | distance=%.4f]", h.Source, h.ID, h.Distance)
}

// FormatContext joins the annotated hits in order.
func FormatContext(hits []model.DocumentHit) string {
	if len(hits) == 0 {
		return ""
	}
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = Annotation(h) + "\n" + h.Text
	}
	return strings.Join(blocks, Separator)
}
