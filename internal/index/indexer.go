// Package index orchestrates the Merkle scan, the chunker, the embedding
// pipeline, and the chunk store into one end-to-end indexing pass (C8), and
// answers cheap staleness questions about a prior run (C11).
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/codelens-dev/codelens/internal/chunk"
	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/embedcache"
	"github.com/codelens-dev/codelens/internal/merkle"
	"github.com/codelens-dev/codelens/internal/store"
)

// Stats summarizes one Indexer.Run pass (§4.8).
type Stats struct {
	FilesScanned       int
	FilesNew           int
	FilesModified      int
	FilesDeleted       int
	ChunksAdded        int
	ChunksDeleted      int
	EmbeddingsComputed int
	EmbeddingsCached   int
}

// ProgressFunc is invoked on the Indexer's own goroutine between files;
// stage is a short label such as "scanning" or "indexing".
type ProgressFunc func(current, total int, stage string)

// Config configures one Indexer instance. RootPath and StateDir are
// absolute paths; ManifestPath defaults to "<StateDir>/manifest.json" when
// empty.
type Config struct {
	RootPath        string
	StateDir        string
	ManifestPath    string
	Extensions      []string
	ExcludePatterns []string
	Force           bool
}

func (c Config) manifestPath() string {
	if c.ManifestPath != "" {
		return c.ManifestPath
	}
	return filepath.Join(c.StateDir, "manifest.json")
}

// Indexer is the orchestration core (C8): TreeScanner → TreeDiff → Chunker →
// (EmbedCache/Embedder) → ChunkStore, with the Manifest persisted last.
type Indexer struct {
	cfg      Config
	chunker  *chunk.Chunker
	embedder embed.Embedder
	cache    *embedcache.Cache
	store    *store.ChunkStore
	scanner  *merkle.Scanner
	progress ProgressFunc
}

// New creates an Indexer. progress may be nil.
func New(cfg Config, chunker *chunk.Chunker, embedder embed.Embedder, cache *embedcache.Cache, chunkStore *store.ChunkStore, progress ProgressFunc) *Indexer {
	if progress == nil {
		progress = func(current, total int, stage string) {}
	}
	return &Indexer{
		cfg:      cfg,
		chunker:  chunker,
		embedder: embedder,
		cache:    cache,
		store:    chunkStore,
		scanner:  merkle.NewScanner(slog.Default()),
		progress: progress,
	}
}

// Run executes one end-to-end indexing pass (§4.8). A crash or a returned
// error never leaves the manifest pointing at a tree the store doesn't
// actually reflect: the manifest is written strictly last, and only on
// success.
func (ix *Indexer) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	manifestPath := ix.cfg.manifestPath()
	manifest, err := merkle.LoadManifest(manifestPath)
	if err != nil {
		return stats, fmt.Errorf("load manifest: %w", err)
	}
	if manifest == nil {
		manifest = merkle.NewManifest()
	}

	var priorForest *merkle.Forest
	if ix.cfg.Force {
		if err := ix.store.Clear(ctx); err != nil {
			return stats, fmt.Errorf("clear store for forced reindex: %w", err)
		}
		priorForest = nil
	} else {
		priorForest = manifest.Forest()
	}

	ix.progress(0, 0, "scanning")
	newForest, buildStats := ix.scanner.Scan(ix.cfg.RootPath, merkle.ScanOptions{
		Extensions:      ix.cfg.Extensions,
		ExcludePatterns: ix.cfg.ExcludePatterns,
		Prior:           priorForest,
	})
	stats.FilesScanned = buildStats.TotalFiles()

	diff := merkle.Compare(priorForest, newForest)
	if !diff.HasChanges() && !ix.cfg.Force {
		manifest.Tree = newForest.Root
		if err := manifest.Save(manifestPath); err != nil {
			return stats, fmt.Errorf("save manifest: %w", err)
		}
		return Stats{FilesScanned: stats.FilesScanned}, nil
	}

	for _, path := range diff.Deleted {
		existing, err := ix.store.GetByPath(ctx, path)
		if err != nil {
			return stats, fmt.Errorf("read chunks for deleted path %s: %w", path, err)
		}
		if err := ix.store.DeleteByPath(ctx, path); err != nil {
			return stats, fmt.Errorf("delete path %s: %w", path, err)
		}
		stats.ChunksDeleted += len(existing)
	}
	stats.FilesDeleted = len(diff.Deleted)

	newSet := make(map[string]struct{}, len(diff.New))
	for _, p := range diff.New {
		newSet[p] = struct{}{}
	}

	toProcess := make([]string, 0, len(diff.New)+len(diff.Modified))
	toProcess = append(toProcess, diff.New...)
	toProcess = append(toProcess, diff.Modified...)
	sort.Strings(toProcess)

	total := len(toProcess)
	for i, path := range toProcess {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		_, isNew := newSet[path]
		if err := ix.processFile(ctx, path, isNew, &stats); err != nil {
			return stats, fmt.Errorf("process %s: %w", path, err)
		}

		ix.progress(i+1, total, "indexing")
	}

	chunkCount, err := ix.store.Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("count chunks: %w", err)
	}

	manifest.Tree = newForest.Root
	manifest.Stats = merkle.Stats{
		TotalFiles:  buildStats.TotalFiles(),
		TotalChunks: int(chunkCount),
	}
	if err := manifest.Save(manifestPath); err != nil {
		return stats, fmt.Errorf("save manifest: %w", err)
	}

	return stats, nil
}

// processFile re-indexes a single new or modified file: delete its prior
// chunks (a no-op for a genuinely new file), chunk the current content,
// resolve embeddings through the cache, and upsert. Per-file read/chunk
// errors are swallowed and counted as a zero-chunk update (§4.8 step 6a);
// Embedder and ChunkStore errors are fatal and propagate.
func (ix *Indexer) processFile(ctx context.Context, relPath string, isNew bool, stats *Stats) error {
	if isNew {
		stats.FilesNew++
	} else {
		stats.FilesModified++
	}

	absPath := filepath.Join(ix.cfg.RootPath, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		slog.Warn("index: failed to read file, skipping", "path", relPath, "error", err)
		return nil
	}

	if err := ix.store.DeleteByPath(ctx, relPath); err != nil {
		return fmt.Errorf("delete prior chunks: %w", err)
	}

	chunks, err := ix.chunker.Chunk(ctx, relPath, content)
	if err != nil {
		slog.Warn("index: failed to chunk file, skipping", "path", relPath, "error", err)
		return nil
	}
	if len(chunks) == 0 {
		return nil
	}

	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		hashes[i] = c.ContentHash()
	}
	cached, err := ix.cache.GetMany(ctx, hashes)
	if err != nil {
		return fmt.Errorf("lookup embed cache: %w", err)
	}

	var missIdx []int
	var missTexts []string
	for i, h := range hashes {
		if _, ok := cached[h]; !ok {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, chunks[i].Text)
		}
	}

	if len(missTexts) > 0 {
		vectors, err := ix.embedder.EmbedBatch(ctx, missTexts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		entries := make([]embedcache.Entry, len(vectors))
		for i, v := range vectors {
			// Rescale any vector the Embedder did not return at unit norm.
			var sumSquares float64
			for _, x := range v {
				sumSquares += float64(x) * float64(x)
			}
			if sumSquares > 0 && math.Abs(sumSquares-1) > 1e-6 {
				magnitude := math.Sqrt(sumSquares)
				unit := make([]float32, len(v))
				for j, x := range v {
					unit[j] = float32(float64(x) / magnitude)
				}
				v = unit
			}
			h := hashes[missIdx[i]]
			cached[h] = v
			entries[i] = embedcache.Entry{ContentHash: h, Vector: v}
		}
		if err := ix.cache.PutMany(ctx, entries); err != nil {
			return fmt.Errorf("store embed cache entries: %w", err)
		}
		stats.EmbeddingsComputed += len(vectors)
	}
	stats.EmbeddingsCached += len(chunks) - len(missTexts)

	fileHash := hashBytes(content)
	fileName := filepath.Base(relPath)
	ext := filepath.Ext(relPath)

	storedChunks := make([]store.StoredChunk, len(chunks))
	for i, c := range chunks {
		storedChunks[i] = store.StoredChunk{
			ID:        fmt.Sprintf("%s:%d", relPath, c.StartLine),
			FilePath:  relPath,
			FileName:  fileName,
			Extension: ext,
			FileHash:  fileHash,
			Text:      c.Text,
			Kind:      string(c.Kind),
			Name:      c.Name,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Vector:    cached[c.ContentHash()],
		}
	}

	if err := ix.store.UpsertMany(ctx, storedChunks); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	stats.ChunksAdded += len(storedChunks)

	return nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
