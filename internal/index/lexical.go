package index

import (
	"math"
	"sort"

	"github.com/codeask/codeask/pkg/types"
)

// Hit is a ranked index match
type Hit struct {
	ChunkID string
	Score   float64
}

// LexicalIndex is a BM25-style inverted index over chunk terms.
//
// Build in two phases: Add every chunk, then Finalize to compute per-chunk
// term weights against corpus document frequencies. The structure is not
// safe for concurrent mutation; searches after Finalize are read-only.
type LexicalIndex struct {
	termFreqs []map[string]int // per chunk, term -> occurrences
	order     []string         // chunk IDs in corpus iteration order
	docFreq   map[string]int
	weights   map[string]map[string]float64 // chunk ID -> term -> weight
	finalized bool
}

// NewLexicalIndex creates an empty lexical index
func NewLexicalIndex() *LexicalIndex {
	return &LexicalIndex{
		docFreq: make(map[string]int),
		weights: make(map[string]map[string]float64),
	}
}

// Add accumulates one chunk's term and document frequencies
func (ix *LexicalIndex) Add(c *types.Chunk) {
	tf := make(map[string]int)
	for _, tok := range Tokenize(c.Content) {
		tf[tok]++
	}

	for term := range tf {
		ix.docFreq[term]++
	}

	ix.termFreqs = append(ix.termFreqs, tf)
	ix.order = append(ix.order, c.ID)
}

// Len returns the number of indexed chunks
func (ix *LexicalIndex) Len() int {
	return len(ix.order)
}

// Finalize computes per-chunk sparse weight maps:
// weight = tf(term, chunk) x idf, idf = ln((N - df + 0.5)/(df + 0.5)).
// Negative idf (terms in more than half the corpus) is clamped to zero so
// stored weights and summed scores stay non-negative.
func (ix *LexicalIndex) Finalize() {
	n := float64(len(ix.order))

	for i, chunkID := range ix.order {
		weights := make(map[string]float64, len(ix.termFreqs[i]))
		for term, tf := range ix.termFreqs[i] {
			df := float64(ix.docFreq[term])
			idf := math.Log((n - df + 0.5) / (df + 0.5))
			if idf < 0 {
				idf = 0
			}
			weights[term] = float64(tf) * idf
		}
		ix.weights[chunkID] = weights
	}

	ix.termFreqs = nil
	ix.finalized = true
}

// Search sums stored weights for the query terms present in each chunk.
// Chunks with zero term overlap are excluded. Ties keep corpus iteration
// order (stable sort).
func (ix *LexicalIndex) Search(query string, limit int) []Hit {
	if !ix.finalized {
		return nil
	}

	terms := uniqueTokens(query)
	if len(terms) == 0 {
		return nil
	}

	hits := make([]Hit, 0)
	for _, chunkID := range ix.order {
		weights := ix.weights[chunkID]

		var score float64
		overlap := false
		for _, term := range terms {
			if w, ok := weights[term]; ok {
				score += w
				overlap = true
			}
		}

		if !overlap {
			continue
		}
		hits = append(hits, Hit{ChunkID: chunkID, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
