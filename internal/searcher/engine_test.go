package searcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeask/codeask/internal/index"
	"github.com/codeask/codeask/pkg/types"
)

func testChunk(id, path, language, content string) *types.Chunk {
	c := &types.Chunk{
		ID:        id,
		Content:   content,
		FilePath:  path,
		StartLine: 1,
		EndLine:   20,
		Language:  language,
	}
	c.ComputeContentHash()
	return c
}

func corpus() []*types.Chunk {
	return []*types.Chunk{
		testChunk("src/hooks/useApi.ts:1-20", "src/hooks/useApi.ts", "typescript",
			"export function useApi() { return fetch('/api/data') }"),
		testChunk("src/auth/login.ts:1-20", "src/auth/login.ts", "typescript",
			"export function login(user, password) { return authenticate(user, password) }"),
		testChunk("src/db/pool.go:1-20", "src/db/pool.go", "go",
			"func NewPool(dsn string) *Pool { return &Pool{dsn: dsn} }"),
		testChunk("docs/readme.md:1-20", "docs/readme.md", "markdown",
			"This project exposes an api for fetching data and a login flow"),
	}
}

func builtEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(nil, Options{})
	require.NoError(t, err)
	require.Equal(t, 4, e.AddChunks(corpus()))
	require.NoError(t, e.RebuildIndexes(context.Background(), nil))
	return e
}

func TestAddChunks_SkipsInvalid(t *testing.T) {
	e, err := NewEngine(nil, Options{})
	require.NoError(t, err)

	accepted := e.AddChunks([]*types.Chunk{
		testChunk("good:1-20", "src/good.go", "go", "func Good() {}"),
		{ID: "", Content: "missing id", FilePath: "x", StartLine: 1, EndLine: 2},
	})
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, e.ChunkCount())
}

func TestAddChunks_ReplacesByID(t *testing.T) {
	e, err := NewEngine(nil, Options{})
	require.NoError(t, err)

	e.AddChunks([]*types.Chunk{testChunk("a:1-20", "src/a.go", "go", "old content")})
	e.AddChunks([]*types.Chunk{testChunk("a:1-20", "src/a.go", "go", "new content")})
	assert.Equal(t, 1, e.ChunkCount())
	assert.Equal(t, "new content", e.Chunks()[0].Content)
}

func TestSearch_RequiresIndexes(t *testing.T) {
	e, err := NewEngine(nil, Options{})
	require.NoError(t, err)
	e.AddChunks(corpus())

	_, err = e.Search(context.Background(), SearchRequest{Query: "api"})
	assert.ErrorIs(t, err, types.ErrRetrievalFailed)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	e := builtEngine(t)
	_, err := e.Search(context.Background(), SearchRequest{})
	assert.ErrorIs(t, err, types.ErrRetrievalFailed)
}

func TestSearch_EndToEnd(t *testing.T) {
	e := builtEngine(t)

	results, err := e.Search(context.Background(), SearchRequest{
		Query:  "useApi hook fetch data",
		Limit:  4,
		Rerank: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "src/hooks/useApi.ts:1-20", results[0].Chunk.ID)
	assert.True(t, results[0].Reranked)
	assert.LessOrEqual(t, results[0].Relevance, 1.0)
}

func TestSearch_FiltersByLanguage(t *testing.T) {
	e := builtEngine(t)

	results, err := e.Search(context.Background(), SearchRequest{
		Query:   "login api data",
		Limit:   10,
		Filters: Filters{Language: "go"},
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "go", r.Chunk.Language)
	}
}

func TestSearch_FiltersByPath(t *testing.T) {
	e := builtEngine(t)

	results, err := e.Search(context.Background(), SearchRequest{
		Query:   "login api data fetch",
		Limit:   10,
		Filters: Filters{PathContains: "docs/"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Contains(t, r.Chunk.FilePath, "docs/")
	}
}

func TestSearch_QueryCacheServesRepeat(t *testing.T) {
	e := builtEngine(t)
	req := SearchRequest{Query: "login", Limit: 5}

	first, err := e.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := e.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Greater(t, e.Status().QueryCacheLen, 0)
}

func TestRebuildIndexes_ReportsProgressAndPurgesCache(t *testing.T) {
	e := builtEngine(t)

	_, err := e.Search(context.Background(), SearchRequest{Query: "login"})
	require.NoError(t, err)
	require.Greater(t, e.Status().QueryCacheLen, 0)

	var calls int
	var lastDone, lastTotal int
	require.NoError(t, e.RebuildIndexes(context.Background(), func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	}))

	assert.Greater(t, calls, 0)
	assert.Equal(t, 4, lastDone)
	assert.Equal(t, 4, lastTotal)
	assert.Equal(t, 0, e.Status().QueryCacheLen)
}

func TestRebuildIndexes_HonorsContext(t *testing.T) {
	e, err := NewEngine(nil, Options{})
	require.NoError(t, err)
	e.AddChunks(corpus())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.RebuildIndexes(ctx, nil), context.Canceled)
}

func TestReplaceChunks_DropsIndexes(t *testing.T) {
	e := builtEngine(t)

	e.ReplaceChunks([]*types.Chunk{testChunk("only:1-20", "src/only.go", "go", "func Only() {}")})
	assert.Equal(t, 1, e.ChunkCount())

	_, err := e.Search(context.Background(), SearchRequest{Query: "only"})
	assert.ErrorIs(t, err, types.ErrRetrievalFailed)

	require.NoError(t, e.RebuildIndexes(context.Background(), nil))
	results, err := e.Search(context.Background(), SearchRequest{Query: "func Only"})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestFuseRRF_BothListsOutrank(t *testing.T) {
	lexical := []index.Hit{
		{ChunkID: "both", Score: 5},
		{ChunkID: "lex-only", Score: 4},
	}
	vector := []index.Hit{
		{ChunkID: "both", Score: 0.9},
		{ChunkID: "vec-only", Score: 0.8},
	}

	fused := fuseRRF(lexical, vector)
	require.Len(t, fused, 3)
	assert.Equal(t, "both", fused[0].ChunkID)

	// same rank in a single list scores identically; first seen wins the tie
	assert.Equal(t, "lex-only", fused[1].ChunkID)
	assert.Equal(t, "vec-only", fused[2].ChunkID)
	assert.InDelta(t, fused[1].Score, fused[2].Score, 1e-12)
}

func TestFuseRRF_Formula(t *testing.T) {
	fused := fuseRRF([]index.Hit{{ChunkID: "a", Score: 1}}, []index.Hit{{ChunkID: "a", Score: 1}})
	require.Len(t, fused, 1)
	assert.InDelta(t, 2.0/61.0, fused[0].Score, 1e-12)
}

func TestFilters_Match(t *testing.T) {
	c := testChunk("a:1-20", "src/auth/login.ts", "typescript", "content")
	c.Metadata.SemanticType = types.SemanticFunction
	c.Metadata.Tags = []string{"auth", "session"}

	assert.True(t, Filters{}.Match(c))
	assert.True(t, Filters{PathContains: "AUTH"}.Match(c))
	assert.False(t, Filters{PathContains: "docs"}.Match(c))
	assert.True(t, Filters{Language: "TypeScript"}.Match(c))
	assert.False(t, Filters{Language: "go"}.Match(c))
	assert.True(t, Filters{SemanticTypes: []string{"function", "class"}}.Match(c))
	assert.False(t, Filters{SemanticTypes: []string{"class"}}.Match(c))
	assert.True(t, Filters{Tags: []string{"auth", "session"}}.Match(c))
	// one matching tag is enough
	assert.True(t, Filters{Tags: []string{"auth", "missing"}}.Match(c))
	assert.True(t, Filters{Tags: []string{"SESSION"}}.Match(c))
	assert.False(t, Filters{Tags: []string{"missing", "absent"}}.Match(c))
}

func TestDiversify_SubsetWithinLimit(t *testing.T) {
	vix := index.NewVectorIndex()
	chunks := []*types.Chunk{
		testChunk("a", "src/a.go", "go", "database connection pool setup"),
		testChunk("b", "src/b.go", "go", "database connection pool setup again"),
		testChunk("c", "src/c.go", "go", "completely different rendering logic"),
	}
	for _, c := range chunks {
		vix.Add(c)
	}
	require.NoError(t, vix.Finalize(context.Background(), nil))

	results := []types.SearchResult{
		{Chunk: chunks[0], Score: 3, Relevance: 1.0},
		{Chunk: chunks[1], Score: 2.9, Relevance: 0.97},
		{Chunk: chunks[2], Score: 2, Relevance: 0.67},
	}

	out := diversify(results, vix, 2)
	require.Len(t, out, 2)

	// top relevance seeds the selection
	assert.Equal(t, "a", out[0].Chunk.ID)

	// output is a subset of the input with no duplicates
	ids := map[string]bool{"a": true, "b": true, "c": true}
	seen := map[string]bool{}
	for _, r := range out {
		assert.True(t, ids[r.Chunk.ID], "unexpected chunk %s", r.Chunk.ID)
		assert.False(t, seen[r.Chunk.ID], "duplicate chunk %s", r.Chunk.ID)
		seen[r.Chunk.ID] = true
	}
}

func TestDiversify_LimitLargerThanInput(t *testing.T) {
	vix := index.NewVectorIndex()
	c := testChunk("a", "src/a.go", "go", "single candidate content")
	vix.Add(c)
	require.NoError(t, vix.Finalize(context.Background(), nil))

	out := diversify([]types.SearchResult{{Chunk: c, Relevance: 1}}, vix, 5)
	assert.Len(t, out, 1)
}
