package index

import (
	"context"
	"math"
	"sort"

	"github.com/codeask/codeask/pkg/types"
)

// minSimilarity is the floor below which vector matches are discarded
const minSimilarity = 0.1

// finalizeBatchSize is how many vectors are computed between cooperative
// yield points during Finalize
const finalizeBatchSize = 64

// VectorCache is the subset of the embedding cache the vector index needs.
// Lookup is by chunk content; the cache hashes internally.
type VectorCache interface {
	Get(content string) ([]float64, bool)
	Set(content string, vector []float64)
}

// VectorIndex holds one TF-IDF vector per chunk.
//
// There is no shared global dimensionality: each chunk's vector follows its
// own first-seen term order, and cosine similarity truncates to the shorter
// vector. This is the tested contract, inherited deliberately - do not
// "fix" it by introducing a shared vocabulary ordering.
type VectorIndex struct {
	chunks    []*types.Chunk
	docFreq   map[string]int
	vectors   map[string][]float64 // chunk ID -> vector
	order     []string
	finalized bool
}

// NewVectorIndex creates an empty vector index
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		docFreq: make(map[string]int),
		vectors: make(map[string][]float64),
	}
}

// Add records one chunk's document-frequency contribution
func (ix *VectorIndex) Add(c *types.Chunk) {
	for _, term := range uniqueTokens(c.Content) {
		ix.docFreq[term]++
	}
	ix.chunks = append(ix.chunks, c)
	ix.order = append(ix.order, c.ID)
}

// Len returns the number of indexed chunks
func (ix *VectorIndex) Len() int {
	return len(ix.order)
}

// Finalize computes every chunk's TF-IDF vector against corpus document
// frequencies, consulting the embedding cache by content hash first: on a
// hit the stored vector is reused, on a miss it is computed then stored.
// The loop yields to ctx at fixed batch boundaries.
func (ix *VectorIndex) Finalize(ctx context.Context, cache VectorCache) error {
	for i, c := range ix.chunks {
		if i%finalizeBatchSize == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if cache != nil {
			if vec, ok := cache.Get(c.Content); ok {
				ix.vectors[c.ID] = vec
				continue
			}
		}

		vec := ix.vectorize(c.Content)
		ix.vectors[c.ID] = vec
		if cache != nil {
			cache.Set(c.Content, vec)
		}
	}

	ix.chunks = nil
	ix.finalized = true
	return nil
}

// vectorize builds a TF-IDF vector over the text's unique terms, component
// order following first-seen term order within that text.
// idf = ln(N/(df + 1)).
func (ix *VectorIndex) vectorize(text string) []float64 {
	tf := make(map[string]int)
	terms := make([]string, 0)
	for _, tok := range Tokenize(text) {
		if tf[tok] == 0 {
			terms = append(terms, tok)
		}
		tf[tok]++
	}

	n := float64(len(ix.order))
	vec := make([]float64, len(terms))
	for i, term := range terms {
		df := float64(ix.docFreq[term])
		vec[i] = float64(tf[term]) * math.Log(n/(df+1))
	}
	return vec
}

// QueryVector builds a query vector with the same formula against corpus
// document frequencies
func (ix *VectorIndex) QueryVector(query string) []float64 {
	return ix.vectorize(query)
}

// Vector returns the stored vector for a chunk, or nil
func (ix *VectorIndex) Vector(chunkID string) []float64 {
	return ix.vectors[chunkID]
}

// Search ranks chunks by cosine similarity to the query vector, keeping
// similarities above the floor, sorted descending, truncated to limit.
func (ix *VectorIndex) Search(query string, limit int) []Hit {
	if !ix.finalized {
		return nil
	}

	qv := ix.QueryVector(query)
	if len(qv) == 0 {
		return nil
	}

	hits := make([]Hit, 0)
	for _, chunkID := range ix.order {
		sim := Cosine(qv, ix.vectors[chunkID])
		if sim <= minSimilarity {
			continue
		}
		hits = append(hits, Hit{ChunkID: chunkID, Score: sim})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Cosine computes cosine similarity comparing only the first
// min(len(a), len(b)) components. Returns 0, never NaN, if either norm is 0.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
