package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/codeask/codeask/internal/embedcache"
	"github.com/codeask/codeask/pkg/types"
)

// ChunkSnapshot is the durable form of the engine's chunk set plus derived
// stats. Indices are never persisted; they are rebuilt from chunks on load.
type ChunkSnapshot struct {
	Chunks      []*types.Chunk
	TotalChunks int
	SavedAt     time.Time
}

// SQLiteStore persists embedding cache snapshots and chunk snapshots.
// It implements embedcache.Store.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for better concurrency; SQLite benefits from a single writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the persisted cache snapshot. A missing snapshot returns an
// empty one; malformed rows surface as errors and the caller treats the
// whole store as empty.
func (s *SQLiteStore) Load(ctx context.Context) (*embedcache.Snapshot, error) {
	snap := &embedcache.Snapshot{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT content_hash, vector, created_at, access_count, last_access FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("query cache entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e embedcache.Entry
		var blob []byte
		var createdAt, lastAccess int64
		if err := rows.Scan(&e.ContentHash, &blob, &createdAt, &e.AccessCount, &lastAccess); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		if len(blob)%8 != 0 {
			return nil, fmt.Errorf("cache entry %s: malformed vector blob", e.ContentHash)
		}
		e.Vector = deserializeVector(blob)
		e.CreatedAt = time.Unix(0, createdAt)
		e.LastAccess = time.Unix(0, lastAccess)
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var savedAt sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT hits, misses, saved_at FROM cache_meta WHERE id = 1`).
		Scan(&snap.Stats.Hits, &snap.Stats.Misses, &savedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("read cache meta: %w", err)
	}
	if savedAt.Valid {
		snap.SavedAt = time.Unix(0, savedAt.Int64)
	}

	return snap, nil
}

// Save replaces the persisted cache snapshot wholesale within one transaction
func (s *SQLiteStore) Save(ctx context.Context, snap *embedcache.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}

	for _, e := range snap.Entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cache_entries (content_hash, vector, created_at, access_count, last_access)
			 VALUES (?, ?, ?, ?, ?)`,
			e.ContentHash, serializeVector(e.Vector), e.CreatedAt.UnixNano(), e.AccessCount, e.LastAccess.UnixNano())
		if err != nil {
			return fmt.Errorf("insert cache entry %s: %w", e.ContentHash, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cache_meta (id, hits, misses, saved_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET hits = excluded.hits, misses = excluded.misses, saved_at = excluded.saved_at`,
		snap.Stats.Hits, snap.Stats.Misses, snap.SavedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("write cache meta: %w", err)
	}

	return tx.Commit()
}

// SaveChunks replaces the chunk snapshot wholesale within one transaction
func (s *SQLiteStore) SaveChunks(ctx context.Context, snap *ChunkSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	for _, c := range snap.Chunks {
		tags, _ := json.Marshal(c.Metadata.Tags)
		exports, _ := json.Marshal(c.Metadata.Exports)
		imports, _ := json.Marshal(c.Metadata.Imports)

		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, content, file_path, start_line, end_line, language,
			                     semantic_type, tags, visibility, exports, imports, content_hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Content, c.FilePath, c.StartLine, c.EndLine, c.Language,
			string(c.Metadata.SemanticType), string(tags), c.Metadata.Visibility,
			string(exports), string(imports), c.ContentHash)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (id, total_chunks, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET total_chunks = excluded.total_chunks, saved_at = excluded.saved_at`,
		len(snap.Chunks), snap.SavedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}

	return tx.Commit()
}

// LoadChunks reads the chunk snapshot
func (s *SQLiteStore) LoadChunks(ctx context.Context) (*ChunkSnapshot, error) {
	snap := &ChunkSnapshot{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, file_path, start_line, end_line, language,
		        semantic_type, tags, visibility, exports, imports, content_hash
		 FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		c := &types.Chunk{}
		var semanticType, tags, exports, imports string
		err := rows.Scan(&c.ID, &c.Content, &c.FilePath, &c.StartLine, &c.EndLine, &c.Language,
			&semanticType, &tags, &c.Metadata.Visibility, &exports, &imports, &c.ContentHash)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Metadata.SemanticType = types.SemanticType(semanticType)
		_ = json.Unmarshal([]byte(tags), &c.Metadata.Tags)
		_ = json.Unmarshal([]byte(exports), &c.Metadata.Exports)
		_ = json.Unmarshal([]byte(imports), &c.Metadata.Imports)
		snap.Chunks = append(snap.Chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var savedAt sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT total_chunks, saved_at FROM snapshot_meta WHERE id = 1`).
		Scan(&snap.TotalChunks, &savedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("read snapshot meta: %w", err)
	}
	if savedAt.Valid {
		snap.SavedAt = time.Unix(0, savedAt.Int64)
	}

	return snap, nil
}

// serializeVector converts a float64 slice to a little-endian byte blob
func serializeVector(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float64 slice
func deserializeVector(blob []byte) []float64 {
	vector := make([]float64, len(blob)/8)
	for i := range vector {
		vector[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vector
}
