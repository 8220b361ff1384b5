package answer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeask/codeask/internal/searcher"
	"github.com/codeask/codeask/pkg/types"
)

type stubRetriever struct {
	results []types.SearchResult
	err     error
	calls   atomic.Int64
}

func (s *stubRetriever) Search(ctx context.Context, req searcher.SearchRequest) ([]types.SearchResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]types.SearchResult, len(s.results))
	copy(out, s.results)
	return out, nil
}

type stubGenerator struct {
	gen       *Generation
	err       error
	panicWith any
	calls     atomic.Int64
}

func (s *stubGenerator) Generate(ctx context.Context, question string, contextLines []string) (*Generation, error) {
	s.calls.Add(1)
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	return s.gen, s.err
}

type stubStreamer struct {
	stubGenerator
	fragments []string
}

func (s *stubStreamer) GenerateStream(ctx context.Context, question string, contextLines []string, sink func(string)) (*Generation, error) {
	s.calls.Add(1)
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	if s.err != nil {
		return nil, s.err
	}
	for _, f := range s.fragments {
		sink(f)
	}
	return s.gen, nil
}

func apiChunk() *types.Chunk {
	return &types.Chunk{
		ID:        "src/hooks/useApi.ts:1-20",
		Content:   "export function useApi() { return fetch('/api/data') }",
		FilePath:  "src/hooks/useApi.ts",
		StartLine: 1,
		EndLine:   20,
		Language:  "typescript",
		Metadata:  types.ChunkMetadata{SemanticType: types.SemanticFunction},
	}
}

func goodResults() []types.SearchResult {
	return []types.SearchResult{
		{Chunk: apiChunk(), Score: 0.9, Relevance: 0.9},
	}
}

func TestAsk_HappyPathWithCitations(t *testing.T) {
	retriever := &stubRetriever{results: goodResults()}
	generator := &stubGenerator{gen: &Generation{
		Content:    "The useApi hook wraps fetch.",
		Confidence: 0.9,
	}}

	o := New(retriever, generator, Options{})
	msg := o.Ask(context.Background(), "how does the useApi hook work", nil)

	require.NotNil(t, msg)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "The useApi hook wraps fetch.", msg.Content)
	assert.Equal(t, 0.9, msg.Confidence)
	assert.Equal(t, int64(1), generator.calls.Load())

	// synthetic citation covers the supporting chunk
	require.NotEmpty(t, msg.Citations)
	found := false
	for _, c := range msg.Citations {
		if c.FilePath == "src/hooks/useApi.ts" && c.StartLine == 1 && c.EndLine == 20 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAsk_InsufficientContextSkipsGenerator(t *testing.T) {
	retriever := &stubRetriever{results: []types.SearchResult{
		{Chunk: apiChunk(), Score: 0.05, Relevance: 0.05},
	}}
	generator := &stubGenerator{gen: &Generation{Content: "should not appear"}}

	o := New(retriever, generator, Options{})
	msg := o.Ask(context.Background(), "how does the useApi hook work", nil)

	require.NotNil(t, msg)
	assert.Contains(t, msg.Content, "could not find enough relevant code")
	assert.Contains(t, msg.Content, "src/hooks/useApi.ts")
	assert.Empty(t, msg.Citations)
	assert.Equal(t, int64(0), generator.calls.Load())
}

func TestAsk_EmptyRetrievalSkipsGenerator(t *testing.T) {
	retriever := &stubRetriever{}
	generator := &stubGenerator{gen: &Generation{Content: "should not appear"}}

	o := New(retriever, generator, Options{})
	msg := o.Ask(context.Background(), "anything at all", nil)

	require.NotNil(t, msg)
	assert.Contains(t, msg.Content, "could not find enough relevant code")
	assert.Equal(t, int64(0), generator.calls.Load())
}

func TestAsk_RetrievalErrorsDegrade(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("index offline")}
	generator := &stubGenerator{gen: &Generation{Content: "should not appear"}}

	o := New(retriever, generator, Options{})
	msg := o.Ask(context.Background(), "how does login work", nil)

	require.NotNil(t, msg)
	assert.Contains(t, msg.Content, "could not find enough relevant code")
	assert.Equal(t, int64(0), generator.calls.Load())
}

func TestAsk_LowConfidenceGated(t *testing.T) {
	retriever := &stubRetriever{results: goodResults()}
	generator := &stubGenerator{gen: &Generation{
		Content:    "a shaky answer",
		Confidence: 0.1,
	}}

	o := New(retriever, generator, Options{})
	msg := o.Ask(context.Background(), "how does the useApi hook work", nil)

	require.NotNil(t, msg)
	assert.NotContains(t, msg.Content, "a shaky answer")
	assert.Contains(t, msg.Content, "not confident")
	assert.Contains(t, msg.Content, "src/hooks/useApi.ts")
	assert.Equal(t, 0.1, msg.Confidence)
}

func TestAsk_UnreportedConfidencePasses(t *testing.T) {
	retriever := &stubRetriever{results: goodResults()}
	generator := &stubGenerator{gen: &Generation{Content: "a solid answer"}}

	o := New(retriever, generator, Options{})
	msg := o.Ask(context.Background(), "how does the useApi hook work", nil)

	require.NotNil(t, msg)
	assert.Equal(t, "a solid answer", msg.Content)
}

func TestAsk_GenerationErrorYieldsApology(t *testing.T) {
	retriever := &stubRetriever{results: goodResults()}
	generator := &stubGenerator{err: errors.New("backend down")}

	o := New(retriever, generator, Options{})
	msg := o.Ask(context.Background(), "how does the useApi hook work", nil)

	require.NotNil(t, msg)
	assert.Equal(t, apologyMessage, msg.Content)
}

func TestAsk_NilGeneratorYieldsApology(t *testing.T) {
	retriever := &stubRetriever{results: goodResults()}

	o := New(retriever, nil, Options{})
	msg := o.Ask(context.Background(), "how does the useApi hook work", nil)

	require.NotNil(t, msg)
	assert.Equal(t, apologyMessage, msg.Content)
}

func TestAsk_PanicRecoversToApology(t *testing.T) {
	retriever := &stubRetriever{results: goodResults()}
	generator := &stubGenerator{panicWith: "boom"}

	o := New(retriever, generator, Options{})
	msg := o.Ask(context.Background(), "how does the useApi hook work", nil)

	require.NotNil(t, msg)
	assert.Equal(t, apologyMessage, msg.Content)
}

func TestAsk_MergesBackendCitations(t *testing.T) {
	retriever := &stubRetriever{results: goodResults()}
	backendCitation := types.Citation{
		FilePath:  "src/hooks/useApi.ts",
		StartLine: 5,
		EndLine:   15,
		Snippet:   "return fetch('/api/data')",
	}
	generator := &stubGenerator{gen: &Generation{
		Content:    "answer",
		Citations:  []types.Citation{backendCitation},
		Confidence: 0.8,
	}}

	o := New(retriever, generator, Options{})
	msg := o.Ask(context.Background(), "how does the useApi hook work", nil)

	// the backend citation overlaps the chunk, so no synthetic duplicate
	require.Len(t, msg.Citations, 1)
	assert.Equal(t, backendCitation, msg.Citations[0])
}

func TestAsk_TruncatesToMaxResults(t *testing.T) {
	results := make([]types.SearchResult, 0, 10)
	for i := 0; i < 10; i++ {
		c := apiChunk()
		c.ID = c.ID + string(rune('a'+i))
		c.FilePath = c.FilePath + string(rune('a'+i))
		results = append(results, types.SearchResult{Chunk: c, Score: 0.9, Relevance: 0.9})
	}
	retriever := &stubRetriever{results: results}
	generator := &stubGenerator{gen: &Generation{Content: "ok", Confidence: 1}}

	o := New(retriever, generator, Options{})
	msg := o.Ask(context.Background(), "how does the useApi hook work", nil)

	// one synthetic citation per retained chunk, capped at MaxResults
	assert.LessOrEqual(t, len(msg.Citations), DefaultMaxResults)
}

func TestAskStream_FragmentsInOrder(t *testing.T) {
	retriever := &stubRetriever{results: goodResults()}
	streamer := &stubStreamer{
		stubGenerator: stubGenerator{gen: &Generation{Content: "one two three", Confidence: 0.9}},
		fragments:     []string{"one ", "two ", "three"},
	}

	o := New(retriever, streamer, Options{})

	var got []string
	msg := o.AskStream(context.Background(), "how does the useApi hook work", nil, func(f string) {
		got = append(got, f)
	})

	require.NotNil(t, msg)
	assert.Equal(t, []string{"one ", "two ", "three"}, got)
	assert.Equal(t, "one two three", msg.Content)
}

func TestAskStream_NonStreamingGeneratorFallsBack(t *testing.T) {
	retriever := &stubRetriever{results: goodResults()}
	generator := &stubGenerator{gen: &Generation{Content: "full answer", Confidence: 0.9}}

	o := New(retriever, generator, Options{})

	var got strings.Builder
	msg := o.AskStream(context.Background(), "how does the useApi hook work", nil, func(f string) {
		got.WriteString(f)
	})

	require.NotNil(t, msg)
	assert.Equal(t, "full answer", msg.Content)
	assert.Equal(t, "full answer", got.String())
}

func TestAskStream_PanicRecoversToApology(t *testing.T) {
	retriever := &stubRetriever{results: goodResults()}
	streamer := &stubStreamer{stubGenerator: stubGenerator{panicWith: "boom"}}

	o := New(retriever, streamer, Options{})

	var got strings.Builder
	msg := o.AskStream(context.Background(), "how does the useApi hook work", nil, func(f string) {
		got.WriteString(f)
	})

	require.NotNil(t, msg)
	assert.Equal(t, apologyMessage, msg.Content)
	assert.Equal(t, apologyMessage, got.String())
}

func TestBuildContext_HistoryCapped(t *testing.T) {
	history := []Turn{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
		{Question: "q3", Answer: "a3"},
		{Question: "q4", Answer: "a4"},
	}

	lines := buildContext(goodResults(), history, 3)
	joined := strings.Join(lines, "\n")
	assert.NotContains(t, joined, "q1")
	assert.Contains(t, joined, "q2")
	assert.Contains(t, joined, "q4")
	assert.Contains(t, joined, "src/hooks/useApi.ts:1-20")
}

func TestInsufficient(t *testing.T) {
	assert.True(t, insufficient(nil, 0.1))
	assert.True(t, insufficient([]types.SearchResult{{Chunk: apiChunk(), Relevance: 0.1}}, 0.1))
	assert.False(t, insufficient([]types.SearchResult{{Chunk: apiChunk(), Relevance: 0.11}}, 0.1))
}
