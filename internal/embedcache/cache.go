// Package embedcache provides a persistent, content-hash-keyed memoization
// of Embedder.Embed calls (C5). It is a pure cache: nothing downstream
// relies on it for correctness, only for avoiding repeat embedding work
// across runs and across force-rebuilds.
package embedcache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Entry is one content-hash to vector mapping to be stored.
type Entry struct {
	ContentHash string
	Vector      []float32
}

// Cache is a sqlite-backed content-addressed embedding cache living in the
// same state directory as the chunk store, in its own database file.
type Cache struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	done bool
}

// Open opens or creates the embedding_cache table at path. If path is
// empty, an in-memory database is used (for tests).
func Open(path string) (*Cache, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	c := &Cache{db: db, path: path}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS embedding_cache (
		content_hash TEXT PRIMARY KEY,
		vector       BLOB NOT NULL,
		created_at   INTEGER NOT NULL DEFAULT (unixepoch())
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// GetMany returns every cache hit among hashes; misses are absent from the
// returned map, with no ordering requirement.
func (c *Cache) GetMany(ctx context.Context, hashes []string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(hashes))
	if len(hashes) == 0 {
		return result, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.done {
		return nil, fmt.Errorf("cache is closed")
	}

	placeholders := make([]string, len(hashes))
	args := make([]any, len(hashes))
	for i, h := range hashes {
		placeholders[i] = "?"
		args[i] = h
	}
	query := fmt.Sprintf(`SELECT content_hash, vector FROM embedding_cache WHERE content_hash IN (%s)`, joinPlaceholders(placeholders))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embedding cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var hash string
		var blob []byte
		if err := rows.Scan(&hash, &blob); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		result[hash] = decodeVector(blob)
	}
	return result, rows.Err()
}

// PutMany inserts or replaces entries by content hash. Replace semantics
// mean a re-put re-stamps created_at.
func (c *Cache) PutMany(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return fmt.Errorf("cache is closed")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embedding_cache (content_hash, vector, created_at) VALUES (?, ?, unixepoch())
		 ON CONFLICT(content_hash) DO UPDATE SET vector = excluded.vector, created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ContentHash, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("upsert %s: %w", e.ContentHash, err)
		}
	}

	return tx.Commit()
}

// Count returns the number of cached vectors.
func (c *Cache) Count(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.done {
		return 0, fmt.Errorf("cache is closed")
	}

	var n uint64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embedding_cache`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count embedding cache: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection. Idempotent.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil
	}
	c.done = true
	_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return c.db.Close()
}

func joinPlaceholders(ps []string) string {
	out := ps[0]
	for _, p := range ps[1:] {
		out += "," + p
	}
	return out
}

// encodeVector packs a []float32 into a compact little-endian blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
