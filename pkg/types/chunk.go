package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// SemanticType classifies what kind of source construct a chunk holds
type SemanticType string

const (
	SemanticFunction      SemanticType = "function"
	SemanticClass         SemanticType = "class"
	SemanticTypeDecl      SemanticType = "type"
	SemanticDocumentation SemanticType = "documentation"
	SemanticConfig        SemanticType = "config"
	SemanticCode          SemanticType = "code"
)

// MaxChunkBytes is the largest chunk content accepted for indexing.
// Oversized chunks are skipped during ingestion, never fatal to the batch.
const MaxChunkBytes = 64 * 1024

// ChunkMetadata carries structural annotations attached by the chunk producer
type ChunkMetadata struct {
	SemanticType SemanticType
	Tags         []string
	Visibility   string // "public" or "private"
	Exports      []string
	Imports      []string
}

// Chunk is a contiguous fragment of source content with location and metadata.
// Chunks are immutable once created and replaced wholesale on index rebuild.
type Chunk struct {
	ID          string // unique per (path, line range) within one ingestion generation
	Content     string
	FilePath    string // relative to the indexed root
	StartLine   int
	EndLine     int
	Language    string
	Metadata    ChunkMetadata
	ContentHash string // deterministic for identical normalized content
}

// HashContent computes the content hash used as the sole embedding cache key.
// Content is whitespace-normalized first so duplicate content across files
// shares one cache entry.
func HashContent(content string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(h[:])
}

// ComputeContentHash fills in the chunk's content hash
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = HashContent(c.Content)
}

// Validate checks the chunk is usable for indexing
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return errors.New("chunk ID cannot be empty")
	}

	if strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("%w: %s", ErrChunkUnreadable, c.ID)
	}

	if len(c.Content) > MaxChunkBytes {
		return fmt.Errorf("%w: %s (%d bytes)", ErrChunkOversized, c.ID, len(c.Content))
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	return nil
}

// LineRange formats the chunk's location as path:start-end
func (c *Chunk) LineRange() string {
	return fmt.Sprintf("%s:%d-%d", c.FilePath, c.StartLine, c.EndLine)
}
