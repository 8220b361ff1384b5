package answer

import (
	"context"
	"time"

	"github.com/codeask/codeask/pkg/types"
)

// Generation is one completed answer from a generation backend
type Generation struct {
	Content        string
	Citations      []types.Citation
	Confidence     float64 // 0 means the backend did not report one
	TokensUsed     int
	ProcessingTime time.Duration
}

// Generator produces an answer from a question and retrieved context lines
type Generator interface {
	Generate(ctx context.Context, question string, contextLines []string) (*Generation, error)
}

// StreamGenerator additionally emits the answer incrementally. Fragments
// are delivered to sink in order; the returned Generation carries the full
// assembled content and metadata.
type StreamGenerator interface {
	Generator
	GenerateStream(ctx context.Context, question string, contextLines []string, sink func(fragment string)) (*Generation, error)
}
