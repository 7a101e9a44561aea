package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ChunkStore is the physical backing for C7: a SQLite table of authoritative
// StoredChunk rows, a pure-Go HNSW graph for vector_search, and two Bleve
// indices (over the chunk text and over the chunk name) for fts_search. All
// three are driven from one upsert_many/delete_by_path call so a concurrent
// reader never observes a chunk present in one sub-store but absent from
// another for longer than that call's critical section.
type ChunkStore struct {
	mu sync.Mutex

	dir string
	db  *sql.DB

	vectors VectorStore

	textIndex BM25Index
	nameIndex BM25Index

	closed bool
}

// Open opens or creates a ChunkStore rooted at dir (typically
// "<stateDir>/store"). The vector store is sized for dimensions; it must
// match the Embedder in use, or vector_search returns ErrDimensionMismatch.
func Open(dir string, dimensions int) (*ChunkStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := openChunkDB(filepath.Join(dir, "chunks.db"))
	if err != nil {
		return nil, err
	}

	vectors, err := NewHNSWStore(DefaultVectorStoreConfig(dimensions))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	vectorPath := filepath.Join(dir, "vectors.hnsw")
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vectors.Load(vectorPath); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("load vector store: %w", err)
		}
	}

	cs := &ChunkStore{
		dir:     dir,
		db:      db,
		vectors: vectors,
	}
	return cs, nil
}

func openChunkDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open chunk database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS chunks (
		id         TEXT PRIMARY KEY,
		filepath   TEXT NOT NULL,
		filename   TEXT NOT NULL,
		extension  TEXT NOT NULL,
		file_hash  TEXT NOT NULL,
		text       TEXT NOT NULL,
		kind       TEXT NOT NULL,
		name       TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_filepath ON chunks(filepath);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init chunk schema: %w", err)
	}
	return db, nil
}

// ensureTextIndex lazily creates the text-column FTS index. Idempotent.
func (cs *ChunkStore) ensureTextIndex() (BM25Index, error) {
	if cs.textIndex != nil {
		return cs.textIndex, nil
	}
	idx, err := NewBleveBM25Index(filepath.Join(cs.dir, "fts_text.bleve"), DefaultBM25Config())
	if err != nil {
		return nil, fmt.Errorf("open text fts index: %w", err)
	}
	cs.textIndex = idx
	return idx, nil
}

// ensureNameIndex lazily creates the name-column FTS index. Idempotent.
func (cs *ChunkStore) ensureNameIndex() (BM25Index, error) {
	if cs.nameIndex != nil {
		return cs.nameIndex, nil
	}
	idx, err := NewBleveBM25Index(filepath.Join(cs.dir, "fts_name.bleve"), DefaultBM25Config())
	if err != nil {
		return nil, fmt.Errorf("open name fts index: %w", err)
	}
	cs.nameIndex = idx
	return idx, nil
}

// UpsertMany inserts or replaces chunks by ID across all three sub-stores in
// a single write critical section.
func (cs *ChunkStore) UpsertMany(ctx context.Context, chunks []StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, filepath, filename, extension, file_hash, text, kind, name, start_line, end_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filepath = excluded.filepath, filename = excluded.filename,
			extension = excluded.extension, file_hash = excluded.file_hash,
			text = excluded.text, kind = excluded.kind, name = excluded.name,
			start_line = excluded.start_line, end_line = excluded.end_line`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	textDocs := make([]*Document, len(chunks))
	nameDocs := make([]*Document, len(chunks))

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.FilePath, c.FileName, c.Extension, c.FileHash,
			c.Text, c.Kind, c.Name, c.StartLine, c.EndLine); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
		ids[i] = c.ID
		vectors[i] = c.Vector
		textDocs[i] = &Document{ID: c.ID, Content: c.Text}
		nameDocs[i] = &Document{ID: c.ID, Content: c.Name}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk upsert: %w", err)
	}

	if err := cs.vectors.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}

	textIndex, err := cs.ensureTextIndex()
	if err != nil {
		return err
	}
	if err := textIndex.Index(ctx, textDocs); err != nil {
		return fmt.Errorf("index text: %w", err)
	}

	nameIndex, err := cs.ensureNameIndex()
	if err != nil {
		return err
	}
	if err := nameIndex.Index(ctx, nameDocs); err != nil {
		return fmt.Errorf("index name: %w", err)
	}

	return nil
}

// DeleteByPath removes all rows whose filepath equals path.
func (cs *ChunkStore) DeleteByPath(ctx context.Context, path string) error {
	return cs.DeleteByPaths(ctx, []string{path})
}

// DeleteByPaths removes all rows whose filepath is in paths.
func (cs *ChunkStore) DeleteByPaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return fmt.Errorf("store is closed")
	}

	placeholders := make([]string, len(paths))
	args := make([]any, len(paths))
	for i, p := range paths {
		placeholders[i] = "?"
		args[i] = p
	}

	rows, err := cs.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM chunks WHERE filepath IN (%s)`, joinPlaceholders(placeholders)), args...)
	if err != nil {
		return fmt.Errorf("query ids for delete: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	if _, err := cs.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM chunks WHERE filepath IN (%s)`, joinPlaceholders(placeholders)), args...); err != nil {
		return fmt.Errorf("delete chunk rows: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	if err := cs.vectors.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if cs.textIndex != nil {
		if err := cs.textIndex.Delete(ctx, ids); err != nil {
			return fmt.Errorf("delete from text index: %w", err)
		}
	}
	if cs.nameIndex != nil {
		if err := cs.nameIndex.Delete(ctx, ids); err != nil {
			return fmt.Errorf("delete from name index: %w", err)
		}
	}
	return nil
}

// GetByPath returns all stored chunks for a file in start-line order.
func (cs *ChunkStore) GetByPath(ctx context.Context, path string) ([]StoredChunk, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := cs.db.QueryContext(ctx, `
		SELECT id, filepath, filename, extension, file_hash, text, kind, name, start_line, end_line
		FROM chunks WHERE filepath = ? ORDER BY start_line ASC`, path)
	if err != nil {
		return nil, fmt.Errorf("query by path: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredChunk
	for rows.Next() {
		var c StoredChunk
		if err := rows.Scan(&c.ID, &c.FilePath, &c.FileName, &c.Extension, &c.FileHash,
			&c.Text, &c.Kind, &c.Name, &c.StartLine, &c.EndLine); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByIDs returns the stored chunks matching ids, keyed by ID. IDs with no
// matching row are simply absent from the result.
func (cs *ChunkStore) GetByIDs(ctx context.Context, ids []string) (map[string]StoredChunk, error) {
	out := make(map[string]StoredChunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := cs.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, filepath, filename, extension, file_hash, text, kind, name, start_line, end_line
		FROM chunks WHERE id IN (%s)`, joinPlaceholders(placeholders)), args...)
	if err != nil {
		return nil, fmt.Errorf("query by ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var c StoredChunk
		if err := rows.Scan(&c.ID, &c.FilePath, &c.FileName, &c.Extension, &c.FileHash,
			&c.Text, &c.Kind, &c.Name, &c.StartLine, &c.EndLine); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// All streams every stored chunk's metadata (no vectors) for callers that
// need a full scan, such as the fuzzy-name matcher.
func (cs *ChunkStore) All(ctx context.Context) ([]StoredChunk, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := cs.db.QueryContext(ctx, `
		SELECT id, filepath, filename, extension, file_hash, text, kind, name, start_line, end_line
		FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("query all chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredChunk
	for rows.Next() {
		var c StoredChunk
		if err := rows.Scan(&c.ID, &c.FilePath, &c.FileName, &c.Extension, &c.FileHash,
			&c.Text, &c.Kind, &c.Name, &c.StartLine, &c.EndLine); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllPaths returns the set of distinct filepaths with at least one chunk.
func (cs *ChunkStore) AllPaths(ctx context.Context) (map[string]struct{}, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := cs.db.QueryContext(ctx, `SELECT DISTINCT filepath FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("query all paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// Count returns the number of stored chunks.
func (cs *ChunkStore) Count(ctx context.Context) (uint64, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var n uint64
	err := cs.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// VectorSearch performs approximate nearest-neighbor search. k is a soft
// upper bound on the number of results. Distance is mapped to similarity as
// 1/(1+distance) per the vector_search contract.
func (cs *ChunkStore) VectorSearch(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	cs.mu.Lock()
	vectors := cs.vectors
	closed := cs.closed
	cs.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("store is closed")
	}

	results, err := vectors.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		r.Score = 1.0 / (1.0 + r.Distance)
	}
	return results, nil
}

// FTSSearch runs a BM25-style full-text query against either the "text" or
// "name" column, creating the corresponding index on first use.
func (cs *ChunkStore) FTSSearch(ctx context.Context, column, query string, k int) ([]*BM25Result, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var idx BM25Index
	var err error
	switch column {
	case "text":
		idx, err = cs.ensureTextIndex()
	case "name":
		idx, err = cs.ensureNameIndex()
	default:
		return nil, fmt.Errorf("unknown fts column %q", column)
	}
	if err != nil {
		return nil, err
	}

	return idx.Search(ctx, query, k)
}

// Clear drops the chunk table and all derived indices, but never touches the
// embedding cache (a separate store, outside ChunkStore's lifecycle).
func (cs *ChunkStore) Clear(ctx context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := cs.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunk table: %w", err)
	}

	allIDs := cs.vectors.AllIDs()
	if len(allIDs) > 0 {
		if err := cs.vectors.Delete(ctx, allIDs); err != nil {
			return fmt.Errorf("clear vector store: %w", err)
		}
	}
	if cs.textIndex != nil {
		ids, err := cs.textIndex.AllIDs()
		if err == nil && len(ids) > 0 {
			_ = cs.textIndex.Delete(ctx, ids)
		}
	}
	if cs.nameIndex != nil {
		ids, err := cs.nameIndex.AllIDs()
		if err == nil && len(ids) > 0 {
			_ = cs.nameIndex.Delete(ctx, ids)
		}
	}
	return nil
}

// Close persists the vector store and releases all underlying resources.
func (cs *ChunkStore) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return nil
	}
	cs.closed = true

	var firstErr error
	if err := cs.vectors.Save(filepath.Join(cs.dir, "vectors.hnsw")); err != nil {
		firstErr = fmt.Errorf("save vector store: %w", err)
	}
	if err := cs.vectors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if cs.textIndex != nil {
		if err := cs.textIndex.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if cs.nameIndex != nil {
		if err := cs.nameIndex.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := cs.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func joinPlaceholders(ps []string) string {
	out := ps[0]
	for _, p := range ps[1:] {
		out += "," + p
	}
	return out
}
