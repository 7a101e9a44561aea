// Package store provides the physical backing for ChunkStore (C7): a pure-Go
// HNSW vector index, a Bleve full-text index, and a SQLite table of
// authoritative chunk rows, composed behind one upsert/delete critical
// section.
package store

import (
	"context"
	"fmt"
)

// StoredChunk is a chunk persisted in the store: a chunk.Chunk plus its
// location, file-level metadata, and embedding vector.
type StoredChunk struct {
	ID        string // "<relpath>:<start_line>", primary key
	FilePath  string // relative to project root
	FileName  string // base name of FilePath
	Extension string // lowercase extension including the dot
	FileHash  string // hex content hash of the owning file at index time

	Text      string
	Kind      string // function | class | method | module
	Name      string // identifier at the definition site, may be empty
	StartLine int
	EndLine   int

	Vector []float32 // unit-norm, dimension fixed at store creation
}

// Document represents a document to be indexed for full-text search.
type Document struct {
	ID      string // StoredChunk ID
	Content string // text to index
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about a BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search using BM25 scoring.
type BM25Index interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)
	Delete(ctx context.Context, docIDs []string) error
	AllIDs() ([]string, error)
	Stats() *IndexStats
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures a BM25Index.
type BM25Config struct {
	K1             float64
	B              float64
	StopWords      []string
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords contains programming keywords filtered from indexing.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// VectorResult represents a single vector search result. HNSWStore.Search
// sets Score from the distance (1-distance/2 for cosine);
// ChunkStore.VectorSearch overwrites it with 1/(1+distance).
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "cos" or "l2", must match the Embedder's output
	M              int    // HNSW max connections per layer
	EfConstruction int
	EfSearch       int
}

// DefaultVectorStoreConfig returns sensible defaults for the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              16,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides approximate nearest-neighbor search.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector dimension mismatch between a
// store and the vectors it was asked to hold.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (reindex with force=true)", e.Expected, e.Got)
}
