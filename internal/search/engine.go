package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/store"
)

// Searcher answers vector, full-text, fuzzy-name, and hybrid queries over a
// ChunkStore (C9). It only reads — the Indexer owns all writes.
type Searcher struct {
	store    *store.ChunkStore
	embedder embed.Embedder
}

// New creates a Searcher.
func New(chunkStore *store.ChunkStore, embedder embed.Embedder) *Searcher {
	return &Searcher{store: chunkStore, embedder: embedder}
}

// Search selects a mode and runs it. fuzzy forces fuzzy mode; otherwise
// bm25Weight<=0 selects vector mode, bm25Weight>=1 selects fts mode, and
// anything in between selects hybrid mode (the weight only ever picks a
// mode — RRF fusion itself is unweighted).
func (s *Searcher) Search(ctx context.Context, query string, limit int, fuzzy bool, bm25Weight float64) (Response, error) {
	start := time.Now()

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Response{}, &QueryError{Reason: "query must not be empty"}
	}
	if limit <= 0 {
		limit = 10
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("count chunks: %w", err)
	}
	if count == 0 {
		return Response{}, &QueryError{Reason: "index is empty"}
	}

	mode := selectMode(fuzzy, bm25Weight)

	var results []Result
	switch mode {
	case ModeFuzzy:
		results, err = s.searchFuzzy(ctx, trimmed, limit)
	case ModeVector:
		results, err = s.searchVector(ctx, trimmed, limit)
	case ModeFTS:
		results, err = s.searchFTS(ctx, trimmed, limit)
	default:
		results, err = s.searchHybrid(ctx, trimmed, limit)
	}
	if err != nil {
		return Response{}, err
	}

	return Response{
		Query:     query,
		Mode:      mode,
		ElapsedMs: time.Since(start).Milliseconds(),
		Results:   results,
	}, nil
}

func selectMode(fuzzy bool, bm25Weight float64) Mode {
	switch {
	case fuzzy:
		return ModeFuzzy
	case bm25Weight <= 0:
		return ModeVector
	case bm25Weight >= 1:
		return ModeFTS
	default:
		return ModeHybrid
	}
}

func (s *Searcher) searchVector(ctx context.Context, query string, limit int) ([]Result, error) {
	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: embedder returned no vector")
	}

	results, err := s.store.VectorSearch(ctx, vectors[0], limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return s.resolveVector(ctx, results, limit)
}

func (s *Searcher) searchFTS(ctx context.Context, query string, limit int) ([]Result, error) {
	results, err := s.store.FTSSearch(ctx, "text", query, limit)
	if err != nil {
		// A rejected query (e.g. the tokenizer can't parse it) degrades to
		// an empty result, per the fts-mode rule — it is not a fatal error.
		return []Result{}, nil
	}
	return s.resolveFTS(ctx, results, limit)
}

func (s *Searcher) searchHybrid(ctx context.Context, query string, limit int) ([]Result, error) {
	fetchK := 3 * limit

	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: embedder returned no vector")
	}

	vectorResults, err := s.store.VectorSearch(ctx, vectors[0], fetchK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	ftsResults, err := s.store.FTSSearch(ctx, "text", query, fetchK)
	if err != nil {
		ftsResults = nil
	}

	if len(vectorResults) == 0 && len(ftsResults) == 0 {
		return []Result{}, nil
	}
	if len(ftsResults) == 0 {
		return s.resolveVector(ctx, vectorResults, limit)
	}
	if len(vectorResults) == 0 {
		return s.resolveFTS(ctx, ftsResults, limit)
	}

	vectorScoreByID := make(map[string]float64, len(vectorResults))
	vectorIDs := make([]string, len(vectorResults))
	for i, r := range vectorResults {
		vectorIDs[i] = r.ID
		vectorScoreByID[r.ID] = float64(r.Score)
	}

	ftsScoreByID := make(map[string]float64, len(ftsResults))
	ftsIDs := make([]string, len(ftsResults))
	for i, r := range ftsResults {
		ftsIDs[i] = r.DocID
		ftsScoreByID[r.DocID] = r.Score
	}

	fused := rrfFuse(vectorIDs, ftsIDs, rrfK)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	ids := make([]string, len(fused))
	for i, e := range fused {
		ids[i] = e.id
	}
	chunks, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve fused chunks: %w", err)
	}

	out := make([]Result, 0, len(fused))
	for _, e := range fused {
		c, ok := chunks[e.id]
		if !ok {
			continue
		}
		res := chunkToResult(c, e.score)
		if v, ok := vectorScoreByID[e.id]; ok {
			vv := v
			res.VectorScore = &vv
		}
		if f, ok := ftsScoreByID[e.id]; ok {
			ff := f
			res.FTSScore = &ff
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Searcher) resolveVector(ctx context.Context, results []*store.VectorResult, limit int) ([]Result, error) {
	if len(results) > limit {
		results = results[:limit]
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	chunks, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		c, ok := chunks[r.ID]
		if !ok {
			continue
		}
		score := float64(r.Score)
		res := chunkToResult(c, score)
		res.VectorScore = &score
		out = append(out, res)
	}
	return out, nil
}

func (s *Searcher) resolveFTS(ctx context.Context, results []*store.BM25Result, limit int) ([]Result, error) {
	if len(results) > limit {
		results = results[:limit]
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	chunks, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		c, ok := chunks[r.DocID]
		if !ok {
			continue
		}
		score := r.Score
		res := chunkToResult(c, score)
		res.FTSScore = &score
		out = append(out, res)
	}
	return out, nil
}
