// Package intent classifies query purpose and expands queries into
// type-specific variants.
//
// Classification is data-driven: an ordered table of (intent, pattern list)
// pairs is scored against the query, never nested conditionals. Expansion
// derives up to six queries (original first) from per-type templates; the
// caller runs each expansion as an independent retrieval and merges.
package intent
