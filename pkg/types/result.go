package types

// Citation is a file-path and line-range reference backing part of an answer
type Citation struct {
	FilePath  string
	StartLine int
	EndLine   int
	Snippet   string
}

// Covers reports whether this citation already covers the given location
func (c Citation) Covers(filePath string, startLine, endLine int) bool {
	if c.FilePath != filePath {
		return false
	}
	return c.StartLine <= endLine && c.EndLine >= startLine
}

// SearchResult represents a single retrieved chunk with relevance information.
// Results are transient, produced per query, and never mutate index state.
type SearchResult struct {
	Chunk *Chunk

	// Score is the retrieval score (fused, possibly intent-boosted). Always >= 0.
	Score float64

	// Relevance is the score normalized into [0, 1] against the result set.
	Relevance float64

	Citations []Citation

	// Set when a reranker reordered this result. CombinedScore lies in [0, 1].
	Reranked      bool
	OriginalScore float64
	RerankScore   float64
}

// Validate checks scoring invariants on a result
func (sr *SearchResult) Validate() error {
	if sr.Chunk == nil {
		return ErrMissingChunk
	}

	if sr.Score < 0 {
		return ErrNegativeScore
	}

	if sr.Relevance < 0 || sr.Relevance > 1 {
		return ErrInvalidRelevance
	}

	if sr.Reranked && (sr.RerankScore < 0 || sr.RerankScore > 1) {
		return ErrInvalidRerankScore
	}

	return nil
}
