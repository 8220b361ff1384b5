package types

import "errors"

// Failure taxonomy. Per-item failures during batch operations are isolated
// so one failure never aborts the batch; orchestrator-level failures always
// degrade to a well-formed assistant message.
var (
	// Indexing: a chunk is unreadable or oversized - skipped and logged
	ErrChunkUnreadable = errors.New("chunk content is unreadable")
	ErrChunkOversized  = errors.New("chunk exceeds maximum size")

	// Cache: a corrupt persisted cache is treated as an empty cache
	ErrCacheCorrupt = errors.New("persisted cache is corrupt")

	// Retrieval: one expanded-query search failed - remaining expansions still run
	ErrRetrievalFailed = errors.New("retrieval query failed")

	// Generation: backend call failed or timed out - surfaced as an apology message
	ErrGenerationFailed = errors.New("generation backend failed")

	// Configuration: malformed filters or weights - defaults substituted
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Result validation errors
var (
	ErrMissingChunk       = errors.New("search result has no chunk")
	ErrNegativeScore      = errors.New("score must be non-negative")
	ErrInvalidRelevance   = errors.New("relevance must be between 0 and 1")
	ErrInvalidRerankScore = errors.New("rerank score must be between 0 and 1")
)
