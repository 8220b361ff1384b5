package searcher

import (
	"sort"

	"github.com/codeask/codeask/internal/index"
)

// rrfK dampens the contribution of lower ranks
const rrfK = 60

// fuseRRF merges ranked hit lists with reciprocal rank fusion. Each list
// contributes 1/(k+rank+1) per chunk with 0-based ranks, summed across
// lists. Ties break by first appearance across the lists, so a chunk seen
// earlier in an earlier list wins.
func fuseRRF(lists ...[]index.Hit) []index.Hit {
	scores := make(map[string]float64)
	firstSeen := make(map[string]int)
	order := 0

	for _, list := range lists {
		for rank, hit := range list {
			if _, ok := firstSeen[hit.ChunkID]; !ok {
				firstSeen[hit.ChunkID] = order
				order++
			}
			scores[hit.ChunkID] += 1.0 / float64(rrfK+rank+1)
		}
	}

	fused := make([]index.Hit, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, index.Hit{ChunkID: id, Score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return firstSeen[fused[i].ChunkID] < firstSeen[fused[j].ChunkID]
	})

	return fused
}
