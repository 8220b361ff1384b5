// Package searcher is the hybrid retrieval engine: a lexical index and a
// vector index searched concurrently, merged with reciprocal rank fusion,
// then filtered and optionally reranked or diversified.
//
// The engine separates corpus mutation from index construction. AddChunks
// only stages chunks; RebuildIndexes builds fresh indices off to the side
// and swaps them in atomically, so searches keep running against the old
// indices during a rebuild. Recent identical requests are answered from a
// TTL-bounded LRU query cache.
package searcher
