// Package storage provides the SQLite-backed durable stores: the embedding
// cache snapshot (implementing embedcache.Store) and the chunk snapshot used
// by export/load. Snapshots are replaced wholesale inside a transaction so a
// reload never observes a partial write.
//
// Two driver configurations are supported via build tags: the default pure
// Go build uses modernc.org/sqlite (CGO_ENABLED=0 friendly), while the
// sqlite_fast tag switches to github.com/mattn/go-sqlite3.
package storage
