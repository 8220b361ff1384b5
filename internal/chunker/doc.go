// Package chunker splits a source tree into fixed-size line-window chunks
// ready for indexing.
package chunker
