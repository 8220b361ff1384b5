package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeask/codeask/internal/embedcache"
	"github.com/codeask/codeask/internal/index"
	"github.com/codeask/codeask/internal/reranker"
	"github.com/codeask/codeask/pkg/types"
)

// Engine defaults
const (
	DefaultLimit         = 10
	DefaultQueryCacheCap = 256
	DefaultQueryCacheTTL = 5 * time.Minute

	// overfetchFactor and overfetchMax bound the widened candidate pool
	// handed to the reranker
	overfetchFactor = 3
	overfetchMax    = 100

	// rebuildBatchSize chunks are indexed between cooperative yield points
	rebuildBatchSize = 64
)

// SearchRequest describes one retrieval call
type SearchRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit"`
	Filters   Filters `json:"filters"`
	Rerank    bool    `json:"rerank"`
	Diversify bool    `json:"diversify"`
}

// Options configures the engine. Zero values take defaults.
type Options struct {
	QueryCacheCap int
	QueryCacheTTL time.Duration
	RerankWeights reranker.Weights
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.QueryCacheCap <= 0 {
		out.QueryCacheCap = DefaultQueryCacheCap
	}
	if out.QueryCacheTTL <= 0 {
		out.QueryCacheTTL = DefaultQueryCacheTTL
	}
	return out
}

// Status is a point-in-time snapshot of engine state
type Status struct {
	ChunkCount    int              `json:"chunk_count"`
	IndexedChunks int              `json:"indexed_chunks"`
	QueryCacheLen int              `json:"query_cache_len"`
	EmbedStats    embedcache.Stats `json:"embed_stats"`
}

type cachedQuery struct {
	results []types.SearchResult
	at      time.Time
}

// Engine owns the chunk corpus and both indices, and serves hybrid search
// over them.
//
// mu guards the corpus and the live indices; searches take the read lock.
// rebuildMu serializes rebuilds so concurrent callers cannot interleave
// index construction; the finished indices swap in atomically under the
// write lock.
type Engine struct {
	mu     sync.RWMutex
	chunks []*types.Chunk
	byID   map[string]*types.Chunk

	lexical *index.LexicalIndex
	vector  *index.VectorIndex

	rebuildMu sync.Mutex

	embedCache *embedcache.Cache
	reranker   *reranker.Reranker
	queryCache *lru.Cache[string, cachedQuery]
	opts       Options
}

// NewEngine creates an engine over an optional embedding cache
func NewEngine(embedCache *embedcache.Cache, opts Options) (*Engine, error) {
	o := opts.withDefaults()

	qc, err := lru.New[string, cachedQuery](o.QueryCacheCap)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}

	return &Engine{
		byID:       make(map[string]*types.Chunk),
		embedCache: embedCache,
		reranker:   reranker.New(o.RerankWeights),
		queryCache: qc,
		opts:       o,
	}, nil
}

// AddChunks validates and accepts chunks into the corpus. Invalid chunks
// are skipped and logged, never fatal; a chunk with a known ID replaces the
// previous version. Returns how many were accepted. Indices do not see new
// chunks until the next RebuildIndexes.
func (e *Engine) AddChunks(chunks []*types.Chunk) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	accepted := 0
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			log.Printf("searcher: skipping chunk %q: %v", c.ID, err)
			continue
		}
		if c.ContentHash == "" {
			c.ComputeContentHash()
		}

		if _, exists := e.byID[c.ID]; exists {
			for i := range e.chunks {
				if e.chunks[i].ID == c.ID {
					e.chunks[i] = c
					break
				}
			}
		} else {
			e.chunks = append(e.chunks, c)
		}
		e.byID[c.ID] = c
		accepted++
	}
	return accepted
}

// RebuildIndexes reconstructs both indices from the current corpus. Only
// one rebuild runs at a time. The build loop checks ctx, reports progress,
// and yields the processor at fixed batch boundaries so long rebuilds stay
// responsive. On success the new indices replace the old atomically and the
// query cache is purged.
func (e *Engine) RebuildIndexes(ctx context.Context, progress func(done, total int)) error {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	e.mu.RLock()
	corpus := make([]*types.Chunk, len(e.chunks))
	copy(corpus, e.chunks)
	e.mu.RUnlock()

	lexical := index.NewLexicalIndex()
	vector := index.NewVectorIndex()

	for i, c := range corpus {
		if i%rebuildBatchSize == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if progress != nil {
				progress(i, len(corpus))
			}
			runtime.Gosched()
		}
		lexical.Add(c)
		vector.Add(c)
	}

	lexical.Finalize()

	var embedCache index.VectorCache
	if e.embedCache != nil {
		embedCache = e.embedCache
	}
	if err := vector.Finalize(ctx, embedCache); err != nil {
		return err
	}

	if progress != nil {
		progress(len(corpus), len(corpus))
	}

	e.mu.Lock()
	e.lexical = lexical
	e.vector = vector
	e.mu.Unlock()

	e.queryCache.Purge()
	return nil
}

// Search runs both retrieval legs concurrently, fuses their rankings,
// applies filters and optional reranking or diversification, and truncates
// to the requested limit. Identical recent requests are served from the
// query cache.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]types.SearchResult, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("%w: empty query", types.ErrRetrievalFailed)
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	key := cacheKey(req)
	if entry, ok := e.queryCache.Get(key); ok {
		if time.Since(entry.at) <= e.opts.QueryCacheTTL {
			return copyResults(entry.results), nil
		}
		e.queryCache.Remove(key)
	}

	e.mu.RLock()
	lexical, vector := e.lexical, e.vector
	e.mu.RUnlock()

	if lexical == nil || vector == nil {
		return nil, fmt.Errorf("%w: indexes not built", types.ErrRetrievalFailed)
	}

	fetchN := req.Limit
	if req.Rerank {
		fetchN = req.Limit * overfetchFactor
		if fetchN > overfetchMax {
			fetchN = overfetchMax
		}
	}

	lexCh := make(chan []index.Hit, 1)
	vecCh := make(chan []index.Hit, 1)
	go func() { lexCh <- lexical.Search(req.Query, fetchN) }()
	go func() { vecCh <- vector.Search(req.Query, fetchN) }()

	var lexHits, vecHits []index.Hit
	for i := 0; i < 2; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case lexHits = <-lexCh:
		case vecHits = <-vecCh:
		}
	}

	fused := fuseRRF(lexHits, vecHits)

	results := e.toResults(fused, req.Filters)

	if req.Rerank {
		results = e.reranker.Rerank(req.Query, results, req.Limit)
	} else if req.Diversify {
		results = diversify(results, vector, req.Limit)
	}

	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	e.queryCache.Add(key, cachedQuery{results: copyResults(results), at: time.Now()})
	return results, nil
}

// toResults resolves fused hits to chunks, drops filtered-out chunks, and
// normalizes relevance against the best fused score
func (e *Engine) toResults(fused []index.Hit, filters Filters) []types.SearchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	maxScore := 0.0
	for _, h := range fused {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	results := make([]types.SearchResult, 0, len(fused))
	for _, h := range fused {
		c, ok := e.byID[h.ChunkID]
		if !ok {
			continue
		}
		if !filters.Empty() && !filters.Match(c) {
			continue
		}

		relevance := 0.0
		if maxScore > 0 {
			relevance = h.Score / maxScore
		}
		results = append(results, types.SearchResult{
			Chunk:     c,
			Score:     h.Score,
			Relevance: relevance,
		})
	}
	return results
}

// Chunks returns a copy of the corpus, for snapshotting
func (e *Engine) Chunks() []*types.Chunk {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*types.Chunk, len(e.chunks))
	copy(out, e.chunks)
	return out
}

// ChunkCount returns the corpus size
func (e *Engine) ChunkCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.chunks)
}

// ReplaceChunks swaps the whole corpus, dropping the live indices. Callers
// must RebuildIndexes before searching again.
func (e *Engine) ReplaceChunks(chunks []*types.Chunk) int {
	e.mu.Lock()
	e.chunks = nil
	e.byID = make(map[string]*types.Chunk)
	e.lexical = nil
	e.vector = nil
	e.mu.Unlock()

	e.queryCache.Purge()
	return e.AddChunks(chunks)
}

// Status reports current engine state
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	indexed := 0
	if e.lexical != nil {
		indexed = e.lexical.Len()
	}

	s := Status{
		ChunkCount:    len(e.chunks),
		IndexedChunks: indexed,
		QueryCacheLen: e.queryCache.Len(),
	}
	if e.embedCache != nil {
		s.EmbedStats = e.embedCache.Stats()
	}
	return s
}

// cacheKey hashes the full request so any parameter change misses
func cacheKey(req SearchRequest) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func copyResults(results []types.SearchResult) []types.SearchResult {
	out := make([]types.SearchResult, len(results))
	copy(out, results)
	return out
}
