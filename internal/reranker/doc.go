// Package reranker reorders retrieval candidates with a hand-authored
// heuristic relevance score.
//
// combinedScore = wOrig x normalizedOriginal + wRerank x rerankScore, with
// supplied weights renormalized to sum to 1 (default 0.3/0.7). The rerank
// score sums capped signals: verbatim term coverage (0.4), a synonym-table
// semantic overlap (0.3), contextual query-type heuristics (0.2), content
// quality (0.1), plus flat bonuses for path matches and documentation
// files. Reranking only reorders and truncates - the candidate set is never
// changed.
package reranker
