package searcher

import (
	"github.com/codeask/codeask/internal/index"
	"github.com/codeask/codeask/pkg/types"
)

// mmrLambda trades relevance against diversity: the selected score is
// lambda x relevance - (1-lambda) x mean cosine similarity to the chunks
// already chosen.
const mmrLambda = 0.7

// diversify applies maximal marginal relevance selection over the ranked
// results. The top-relevance result seeds the selection, then each round
// picks the candidate maximizing the MMR objective until limit results are
// chosen or candidates run out. Vectors come from the vector index; a
// candidate without a vector contributes zero similarity and competes on
// relevance alone.
func diversify(results []types.SearchResult, vectors *index.VectorIndex, limit int) []types.SearchResult {
	if limit <= 0 || len(results) <= 1 {
		if limit > 0 && len(results) > limit {
			return results[:limit]
		}
		return results
	}

	remaining := make([]types.SearchResult, len(results))
	copy(remaining, results)

	selected := make([]types.SearchResult, 0, limit)
	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx := 0
		bestScore := mmrScore(remaining[0], selected, vectors)
		for i := 1; i < len(remaining); i++ {
			if s := mmrScore(remaining[i], selected, vectors); s > bestScore {
				bestScore = s
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

func mmrScore(candidate types.SearchResult, selected []types.SearchResult, vectors *index.VectorIndex) float64 {
	return mmrLambda*candidate.Relevance - (1-mmrLambda)*meanSimilarity(candidate, selected, vectors)
}

func meanSimilarity(candidate types.SearchResult, selected []types.SearchResult, vectors *index.VectorIndex) float64 {
	if len(selected) == 0 {
		return 0
	}
	cv := vectors.Vector(candidate.Chunk.ID)
	if len(cv) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range selected {
		sv := vectors.Vector(s.Chunk.ID)
		if len(sv) == 0 {
			continue
		}
		total += index.Cosine(cv, sv)
	}
	return total / float64(len(selected))
}
