// Package index implements the two in-memory indices behind hybrid
// retrieval: a BM25-style inverted lexical index and a TF-IDF vector index.
//
// Both indices are built in two phases (Add every chunk, then Finalize) and
// are read-only after Finalize. Neither is safe for concurrent mutation;
// the owning engine builds fresh instances off-line and swaps them in.
//
// Lexical scoring:
//
//	weight(term, chunk) = tf x ln((N - df + 0.5)/(df + 0.5))   (clamped >= 0)
//	score(query, chunk) = sum of weights for query terms present
//
// Vector scoring:
//
//	component(term)     = tf x ln(N/(df + 1))
//	score(query, chunk) = cosine over the first min(len) components
//
// A chunk with zero lexical overlap scores 0 and is excluded; vector matches
// below 0.1 similarity are discarded.
package index
