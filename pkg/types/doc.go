// Package types defines the shared value types of the retrieval pipeline:
// chunks, search results, citations, and query intents.
//
// Types here are plain data with validation methods. Components accept and
// return these types; behavior lives in the internal packages.
package types
