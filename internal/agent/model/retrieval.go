package model

import "context"

// UnknownSource is used when a stored document carries no source label.
const UnknownSource = "unknown"

// Candidate is a raw nearest-neighbour result from the similarity oracle.
type Candidate struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64
}

// SimilarityOracle returns up to k documents ordered by ascending distance.
// An empty collection yields an empty slice and no error.
type SimilarityOracle interface {
	Query(ctx context.Context, text string, k int) ([]Candidate, error)
}

// DocumentHit is a candidate resolved once at assembly time.
type DocumentHit struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Distance float64 `json:"distance"`
}

// HitFromCandidate resolves metadata into the fixed hit record.
func HitFromCandidate(c Candidate) DocumentHit {
	source := c.Metadata["source"]
	if source == "" {
		source = UnknownSource
	}
	return DocumentHit{
		ID:       c.ID,
		Text:     c.Text,
		Source:   source,
		Distance: c.Distance,
	}
}

// RetrievalResult is the per-request output of the context assembler.
type RetrievalResult struct {
	Question string        `json:"question"`
	Hits     []DocumentHit `json:"hits"`
	Context  string        `json:"context"`
}
