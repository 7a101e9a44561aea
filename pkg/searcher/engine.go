// Package searcher is the public facade over the Searcher core (C9): a
// thin wrapper so cmd/ and internal/mcp depend on one stable entry point
// instead of importing internal/search and internal/store directly.
package searcher

import (
	"context"

	"github.com/codelens-dev/codelens/internal/embed"
	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
	"github.com/codelens-dev/codelens/internal/search"
	"github.com/codelens-dev/codelens/internal/store"
)

// Mode is a re-export of search.Mode.
type Mode = search.Mode

// Result is a re-export of search.Result.
type Result = search.Result

// Response is a re-export of search.Response.
type Response = search.Response

const (
	ModeVector = search.ModeVector
	ModeFTS    = search.ModeFTS
	ModeFuzzy  = search.ModeFuzzy
	ModeHybrid = search.ModeHybrid
)

// Engine answers search queries over a project's ChunkStore.
type Engine struct {
	searcher *search.Searcher
	store    *store.ChunkStore
}

// New creates a search Engine bound to chunkStore and embedder.
func New(chunkStore *store.ChunkStore, embedder embed.Embedder) *Engine {
	return &Engine{searcher: search.New(chunkStore, embedder), store: chunkStore}
}

// Search runs one query. fuzzy forces fuzzy mode; otherwise bm25Weight
// selects vector/fts/hybrid (§4.9, §9 resolved ambiguity: the weight only
// ever picks a mode, RRF fusion itself is unweighted).
func (e *Engine) Search(ctx context.Context, query string, limit int, fuzzy bool, bm25Weight float64) (Response, error) {
	resp, err := e.searcher.Search(ctx, query, limit, fuzzy, bm25Weight)
	if err != nil {
		if qe, ok := err.(*search.QueryError); ok {
			return Response{}, codelenserrors.QueryInvalid(qe.Reason)
		}
		return Response{}, codelenserrors.StoreError("search failed", err)
	}
	return resp, nil
}

// GetByPath returns all chunks for an exact file path, used by
// get_file_context (§6.2).
func (e *Engine) GetByPath(ctx context.Context, path string) ([]store.StoredChunk, error) {
	chunks, err := e.store.GetByPath(ctx, path)
	if err != nil {
		return nil, codelenserrors.StoreError("failed to read file chunks", err)
	}
	return chunks, nil
}

// AllPaths returns every distinct file path currently indexed.
func (e *Engine) AllPaths(ctx context.Context) (map[string]struct{}, error) {
	paths, err := e.store.AllPaths(ctx)
	if err != nil {
		return nil, codelenserrors.StoreError("failed to list paths", err)
	}
	return paths, nil
}

// All returns every indexed chunk, used by files().
func (e *Engine) All(ctx context.Context) ([]store.StoredChunk, error) {
	chunks, err := e.store.All(ctx)
	if err != nil {
		return nil, codelenserrors.StoreError("failed to list chunks", err)
	}
	return chunks, nil
}

// Count returns the number of chunks currently indexed.
func (e *Engine) Count(ctx context.Context) (uint64, error) {
	count, err := e.store.Count(ctx)
	if err != nil {
		return 0, codelenserrors.StoreError("failed to count chunks", err)
	}
	return count, nil
}
