package answer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeask/codeask/internal/intent"
	"github.com/codeask/codeask/internal/searcher"
	"github.com/codeask/codeask/pkg/types"
)

// Orchestration defaults
const (
	DefaultMaxResults        = 6
	DefaultMinRetrievalScore = 0.1
	DefaultMinConfidence     = 0.3
	DefaultMaxHistoryTurns   = 3

	maxSuggestedFiles = 3
)

// Fixed degradation messages. The orchestrator never surfaces an error to
// the caller; it answers with one of these instead.
const (
	apologyMessage = "I apologize, but something went wrong while answering your question. Please try again."

	insufficientPrefix = "I could not find enough relevant code to answer that question confidently."

	lowConfidencePrefix = "I found some potentially relevant code, but I'm not confident it answers your question."
)

// Retriever is the retrieval surface the orchestrator depends on
type Retriever interface {
	Search(ctx context.Context, req searcher.SearchRequest) ([]types.SearchResult, error)
}

// Turn is one prior question/answer exchange supplied as history
type Turn struct {
	Question string
	Answer   string
}

// Message is the orchestrator's answer envelope
type Message struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Citations  []types.Citation  `json:"citations,omitempty"`
	Confidence float64           `json:"confidence"`
	Intent     types.QueryIntent `json:"intent"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Options configures the orchestrator gates. Zero values take defaults.
type Options struct {
	MaxResults        int
	MinRetrievalScore float64
	MinConfidence     float64
	MaxHistoryTurns   int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.MaxResults <= 0 {
		out.MaxResults = DefaultMaxResults
	}
	if out.MinRetrievalScore <= 0 {
		out.MinRetrievalScore = DefaultMinRetrievalScore
	}
	if out.MinConfidence <= 0 {
		out.MinConfidence = DefaultMinConfidence
	}
	if out.MaxHistoryTurns <= 0 {
		out.MaxHistoryTurns = DefaultMaxHistoryTurns
	}
	return out
}

// Orchestrator answers questions about the indexed codebase: classify the
// question, retrieve over expanded queries, gate on retrieval sufficiency,
// generate, gate on generation confidence, and attach citations.
//
// Ask and AskStream never return an error; every failure path degrades to a
// message the caller can show as-is.
type Orchestrator struct {
	classifier *intent.Classifier
	retriever  Retriever
	generator  Generator
	opts       Options
}

// New creates an orchestrator. A nil generator is allowed; asking then
// degrades to the insufficient-backend path at generation time.
func New(retriever Retriever, generator Generator, opts Options) *Orchestrator {
	return &Orchestrator{
		classifier: intent.NewClassifier(),
		retriever:  retriever,
		generator:  generator,
		opts:       opts.withDefaults(),
	}
}

// Ask answers the question against the indexed corpus
func (o *Orchestrator) Ask(ctx context.Context, question string, history []Turn) (msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("answer: recovered from panic: %v", r)
			msg = o.newMessage(apologyMessage, nil, 0, types.QueryIntent{})
		}
	}()

	qi := o.classifier.Classify(question)
	results := o.retrieve(ctx, question, qi)

	if insufficient(results, o.opts.MinRetrievalScore) {
		return o.newMessage(insufficientMessage(results), nil, 0, qi)
	}

	gen, err := o.generate(ctx, question, results, history)
	if err != nil {
		log.Printf("answer: generation failed: %v", err)
		return o.newMessage(apologyMessage, nil, 0, qi)
	}

	// confidence 0 means unreported and passes the gate
	if gen.Confidence > 0 && gen.Confidence < o.opts.MinConfidence {
		return o.newMessage(lowConfidenceMessage(results), nil, gen.Confidence, qi)
	}

	citations := mergeCitations(gen.Citations, results)
	return o.newMessage(gen.Content, citations, gen.Confidence, qi)
}

// AskStream answers like Ask while forwarding content fragments to sink in
// generation order. Degradation messages are delivered through sink as a
// single fragment, so a streaming caller always receives the final content.
func (o *Orchestrator) AskStream(ctx context.Context, question string, history []Turn, sink func(fragment string)) (msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("answer: recovered from panic: %v", r)
			msg = o.newMessage(apologyMessage, nil, 0, types.QueryIntent{})
			sink(msg.Content)
		}
	}()

	streamer, ok := o.generator.(StreamGenerator)
	if !ok {
		msg = o.Ask(ctx, question, history)
		sink(msg.Content)
		return msg
	}

	qi := o.classifier.Classify(question)
	results := o.retrieve(ctx, question, qi)

	if insufficient(results, o.opts.MinRetrievalScore) {
		msg = o.newMessage(insufficientMessage(results), nil, 0, qi)
		sink(msg.Content)
		return msg
	}

	contextLines := buildContext(results, history, o.opts.MaxHistoryTurns)

	// fragments stream optimistically; the confidence gate still rewrites
	// the final message content when the backend reports low confidence
	gen, err := streamer.GenerateStream(ctx, question, contextLines, sink)
	if err != nil {
		log.Printf("answer: generation failed: %v", err)
		msg = o.newMessage(apologyMessage, nil, 0, qi)
		sink(msg.Content)
		return msg
	}

	if gen.Confidence > 0 && gen.Confidence < o.opts.MinConfidence {
		msg = o.newMessage(lowConfidenceMessage(results), nil, gen.Confidence, qi)
		sink(msg.Content)
		return msg
	}

	citations := mergeCitations(gen.Citations, results)
	return o.newMessage(gen.Content, citations, gen.Confidence, qi)
}

// retrieve fans out one search per expanded query, boosts results by intent
// confidence, deduplicates by chunk keeping the best relevance, and keeps
// the top MaxResults. A failing expansion is logged and skipped; only all
// expansions failing yields an empty result set.
func (o *Orchestrator) retrieve(ctx context.Context, question string, qi types.QueryIntent) []types.SearchResult {
	queries := intent.Expand(question, qi)

	var mu sync.Mutex
	merged := make([]types.SearchResult, 0, len(queries)*o.opts.MaxResults)

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			results, err := o.retriever.Search(gctx, searcher.SearchRequest{
				Query:  q,
				Limit:  o.opts.MaxResults,
				Rerank: true,
			})
			if err != nil {
				log.Printf("answer: retrieval for %q failed: %v", q, err)
				return nil
			}
			mu.Lock()
			merged = append(merged, results...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	boost := 0.5 + 0.5*qi.Confidence
	best := make(map[string]types.SearchResult)
	order := make([]string, 0, len(merged))
	for _, r := range merged {
		r.Relevance *= boost
		if r.Relevance > 1 {
			r.Relevance = 1
		}
		prev, ok := best[r.Chunk.ID]
		if !ok {
			order = append(order, r.Chunk.ID)
			best[r.Chunk.ID] = r
			continue
		}
		if r.Relevance > prev.Relevance {
			best[r.Chunk.ID] = r
		}
	}

	deduped := make([]types.SearchResult, 0, len(best))
	for _, id := range order {
		deduped = append(deduped, best[id])
	}
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Relevance > deduped[j].Relevance
	})

	if len(deduped) > o.opts.MaxResults {
		deduped = deduped[:o.opts.MaxResults]
	}
	return deduped
}

// generate builds the context window and invokes the backend
func (o *Orchestrator) generate(ctx context.Context, question string, results []types.SearchResult, history []Turn) (*Generation, error) {
	if o.generator == nil {
		return nil, fmt.Errorf("%w: no generation backend configured", types.ErrGenerationFailed)
	}
	contextLines := buildContext(results, history, o.opts.MaxHistoryTurns)
	return o.generator.Generate(ctx, question, contextLines)
}

// insufficient reports whether no retrieved chunk clears the score floor
func insufficient(results []types.SearchResult, minScore float64) bool {
	for _, r := range results {
		if r.Relevance > minScore {
			return false
		}
	}
	return true
}

// buildContext renders retrieved chunks as labelled context lines, with the
// most recent history turns prepended
func buildContext(results []types.SearchResult, history []Turn, maxTurns int) []string {
	lines := make([]string, 0, len(results)+maxTurns)

	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	for _, t := range history {
		lines = append(lines, fmt.Sprintf("Previously asked: %s\nPreviously answered: %s", t.Question, t.Answer))
	}

	for _, r := range results {
		c := r.Chunk
		label := fmt.Sprintf("%s (%s/%s)", c.LineRange(), c.Language, c.Metadata.SemanticType)
		lines = append(lines, label+"\n"+c.Content)
	}
	return lines
}

// mergeCitations unions the backend's citations with a synthetic citation
// for every retrieved chunk no backend citation covers, so each supporting
// chunk is referenced at least once.
func mergeCitations(backend []types.Citation, results []types.SearchResult) []types.Citation {
	merged := make([]types.Citation, len(backend))
	copy(merged, backend)

	for _, r := range results {
		c := r.Chunk
		covered := false
		for _, cit := range backend {
			if cit.Covers(c.FilePath, c.StartLine, c.EndLine) {
				covered = true
				break
			}
		}
		if covered {
			continue
		}
		merged = append(merged, types.Citation{
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Snippet:   snippet(c.Content),
		})
	}
	return merged
}

// snippet keeps the first non-blank line of the chunk, trimmed
func snippet(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if len(trimmed) > 120 {
				trimmed = trimmed[:120]
			}
			return trimmed
		}
	}
	return ""
}

func insufficientMessage(results []types.SearchResult) string {
	return degradedMessage(insufficientPrefix, results)
}

func lowConfidenceMessage(results []types.SearchResult) string {
	return degradedMessage(lowConfidencePrefix, results)
}

// degradedMessage appends up to three candidate files so the caller has a
// starting point even without an answer
func degradedMessage(prefix string, results []types.SearchResult) string {
	files := make([]string, 0, maxSuggestedFiles)
	seen := make(map[string]struct{})
	for _, r := range results {
		if len(files) >= maxSuggestedFiles {
			break
		}
		if _, ok := seen[r.Chunk.FilePath]; ok {
			continue
		}
		seen[r.Chunk.FilePath] = struct{}{}
		files = append(files, r.Chunk.FilePath)
	}

	if len(files) == 0 {
		return prefix + " Try rephrasing the question or indexing more of the codebase."
	}
	return prefix + " You might look at: " + strings.Join(files, ", ")
}

func (o *Orchestrator) newMessage(content string, citations []types.Citation, confidence float64, qi types.QueryIntent) *Message {
	return &Message{
		ID:         uuid.NewString(),
		Content:    content,
		Citations:  citations,
		Confidence: confidence,
		Intent:     qi,
		CreatedAt:  time.Now(),
	}
}
