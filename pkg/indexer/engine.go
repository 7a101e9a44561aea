// Package indexer is the public facade over the Indexer core (C8): it owns
// opening and closing the physical state (ChunkStore, EmbedCache, embedder,
// chunker, run lock) for one project directory, so cmd/ and internal/mcp
// never touch internal/index, internal/store, or internal/embed directly.
package indexer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/codelens-dev/codelens/internal/chunk"
	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/embedcache"
	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
	"github.com/codelens-dev/codelens/internal/index"
	"github.com/codelens-dev/codelens/internal/merkle"
	"github.com/codelens-dev/codelens/internal/store"
)

// StateDirName is the fixed, opaque project state directory (§6).
const StateDirName = ".codelens"

// Stats is a re-export of index.Stats so callers never import internal/index.
type Stats = index.Stats

// ProgressFunc is a re-export of index.ProgressFunc.
type ProgressFunc = index.ProgressFunc

// Engine owns one project's indexing state: its ChunkStore, EmbedCache,
// Embedder, and Chunker, opened from its .codelens state directory.
type Engine struct {
	rootPath string
	stateDir string
	cfg      *config.Config

	store    *store.ChunkStore
	cache    *embedcache.Cache
	embedder embed.Embedder
	chunker  *chunk.Chunker
}

// Open loads cfg's layered configuration (if cfg is nil) and opens the
// ChunkStore/EmbedCache/Embedder for rootPath, creating the state directory
// on first use.
func Open(ctx context.Context, rootPath string, cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		loaded, err := config.Load(rootPath)
		if err != nil {
			return nil, codelenserrors.ConfigInvalid("failed to load configuration", err)
		}
		cfg = loaded
	}

	stateDir := filepath.Join(rootPath, StateDirName)

	embedder, err := embed.NewEmbedder(ctx, embed.ParseProvider(cfg.EmbeddingProvider), cfg.EmbeddingModel)
	if err != nil {
		return nil, codelenserrors.EmbedderUnavailable("failed to initialize embedder", err)
	}

	chunkStore, err := store.Open(filepath.Join(stateDir, "store"), embedder.Dimensions())
	if err != nil {
		_ = embedder.Close()
		return nil, codelenserrors.StoreError("failed to open chunk store", err)
	}

	cache, err := embedcache.Open(filepath.Join(stateDir, "cache.db"))
	if err != nil {
		_ = embedder.Close()
		_ = chunkStore.Close()
		return nil, codelenserrors.StoreError("failed to open embed cache", err)
	}

	return &Engine{
		rootPath: rootPath,
		stateDir: stateDir,
		cfg:      cfg,
		store:    chunkStore,
		cache:    cache,
		embedder: embedder,
		chunker:  chunk.NewChunker(),
	}, nil
}

// Index runs one end-to-end Indexer pass (§4.8), guarded by the
// project-local advisory lock (§5).
func (e *Engine) Index(ctx context.Context, force bool) (Stats, error) {
	return e.IndexWithProgress(ctx, force, nil)
}

// IndexWithProgress is Index with an optional progress callback.
func (e *Engine) IndexWithProgress(ctx context.Context, force bool, progress ProgressFunc) (Stats, error) {
	lock := index.NewRunLock(e.stateDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return Stats{}, codelenserrors.StoreError("failed to acquire index lock", err)
	}
	if !acquired {
		return Stats{}, codelenserrors.New(codelenserrors.KindStoreError, "another index run is already in progress", nil).WithRetryable(true)
	}
	defer func() { _ = lock.Unlock() }()

	ix := index.New(index.Config{
		RootPath:        e.rootPath,
		StateDir:        e.stateDir,
		Extensions:      e.cfg.Extensions,
		ExcludePatterns: e.cfg.ExcludePatterns,
		Force:           force,
	}, e.chunker, e.embedder, e.cache, e.store, progress)

	stats, err := ix.Run(ctx)
	if err != nil {
		return stats, fmt.Errorf("index run: %w", err)
	}
	return stats, nil
}

// StaleStatus checks whether the project's index reflects its current tree
// (C11), without running a full index pass.
func (e *Engine) StaleStatus() (index.StaleStatus, error) {
	manifest, err := merkle.LoadManifest(filepath.Join(e.stateDir, "manifest.json"))
	if err != nil {
		return index.StaleStatus{}, codelenserrors.StoreError("failed to load manifest", err)
	}
	oracle := index.NewOracle()
	return oracle.Check(e.rootPath, e.cfg.Extensions, e.cfg.ExcludePatterns, manifest), nil
}

// Manifest loads the project's current manifest, or nil if none exists yet.
func (e *Engine) Manifest() (*merkle.Manifest, error) {
	manifest, err := merkle.LoadManifest(filepath.Join(e.stateDir, "manifest.json"))
	if err != nil {
		return nil, codelenserrors.StoreError("failed to load manifest", err)
	}
	return manifest, nil
}

// Store returns the underlying ChunkStore, for callers (the Searcher
// facade, the ToolSurface) that need direct read access.
func (e *Engine) Store() *store.ChunkStore { return e.store }

// Embedder returns the configured embedder, for capability signaling.
func (e *Engine) Embedder() embed.Embedder { return e.embedder }

// Config returns the project's loaded configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// RootPath returns the project root this Engine was opened for.
func (e *Engine) RootPath() string { return e.rootPath }

// StateDir returns the project's .codelens state directory.
func (e *Engine) StateDir() string { return e.stateDir }

// Close releases the store, cache, and embedder resources.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
