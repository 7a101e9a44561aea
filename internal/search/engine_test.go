package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/embed"
	"github.com/codelens-dev/codelens/internal/store"
)

func newTestSearcher(t *testing.T) (*Searcher, *store.ChunkStore, embed.Embedder) {
	t.Helper()
	embedder := embed.NewStaticEmbedder()
	cs, err := store.Open(filepath.Join(t.TempDir(), "store"), embedder.Dimensions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return New(cs, embedder), cs, embedder
}

func upsertChunk(t *testing.T, ctx context.Context, cs *store.ChunkStore, embedder embed.Embedder, id, name, text string) {
	t.Helper()
	vec, err := embedder.Embed(ctx, text)
	require.NoError(t, err)
	require.NoError(t, cs.UpsertMany(ctx, []store.StoredChunk{{
		ID:        id,
		FilePath:  "a.py",
		FileName:  "a.py",
		Extension: ".py",
		FileHash:  "deadbeef",
		Text:      text,
		Kind:      "function",
		Name:      name,
		StartLine: 1,
		EndLine:   2,
		Vector:    vec,
	}}))
}

func TestSearch_EmptyQueryIsError(t *testing.T) {
	s, cs, embedder := newTestSearcher(t)
	ctx := context.Background()
	upsertChunk(t, ctx, cs, embedder, "a:1", "f", "def f(): pass")

	_, err := s.Search(ctx, "   ", 10, false, 0.5)
	var qe *QueryError
	assert.ErrorAs(t, err, &qe)
}

func TestSearch_EmptyIndexIsError(t *testing.T) {
	s, _, _ := newTestSearcher(t)
	_, err := s.Search(context.Background(), "anything", 10, false, 0.5)
	var qe *QueryError
	assert.ErrorAs(t, err, &qe)
}

func TestSearch_ModeSelection(t *testing.T) {
	assert.Equal(t, ModeFuzzy, selectMode(true, 0.5))
	assert.Equal(t, ModeVector, selectMode(false, 0))
	assert.Equal(t, ModeVector, selectMode(false, -1))
	assert.Equal(t, ModeFTS, selectMode(false, 1))
	assert.Equal(t, ModeFTS, selectMode(false, 2))
	assert.Equal(t, ModeHybrid, selectMode(false, 0.5))
}

func TestSearch_VectorMode_ExactTextRanksFirst(t *testing.T) {
	s, cs, embedder := newTestSearcher(t)
	ctx := context.Background()
	upsertChunk(t, ctx, cs, embedder, "a:1", "handleRequest", "def handle_request(req): return process(req)")
	upsertChunk(t, ctx, cs, embedder, "a:10", "renderPage", "def render_page(tmpl): return tmpl.render()")

	resp, err := s.Search(ctx, "def handle_request(req): return process(req)", 10, false, 0)
	require.NoError(t, err)
	assert.Equal(t, ModeVector, resp.Mode)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "a:1", resp.Results[0].ID)
	require.NotNil(t, resp.Results[0].VectorScore)
	assert.Nil(t, resp.Results[0].FTSScore)
}

func TestSearch_FTSMode_FindsByKeyword(t *testing.T) {
	s, cs, embedder := newTestSearcher(t)
	ctx := context.Background()
	upsertChunk(t, ctx, cs, embedder, "a:1", "handleRequest", "def handle_request(req): return process(req)")

	resp, err := s.Search(ctx, "handle_request", 10, false, 1)
	require.NoError(t, err)
	assert.Equal(t, ModeFTS, resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a:1", resp.Results[0].ID)
	require.NotNil(t, resp.Results[0].FTSScore)
	assert.Nil(t, resp.Results[0].VectorScore)
}

func TestSearch_HybridMode_ExactTextRanksFirst(t *testing.T) {
	s, cs, embedder := newTestSearcher(t)
	ctx := context.Background()
	upsertChunk(t, ctx, cs, embedder, "a:1", "authenticate_user", "def authenticate_user(token): return verify(token)")
	upsertChunk(t, ctx, cs, embedder, "a:10", "User", "class User: pass")

	resp, err := s.Search(ctx, "def authenticate_user(token): return verify(token)", 5, false, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, resp.Mode)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "a:1", resp.Results[0].ID)
}

func TestSearch_FuzzyMode_MatchesCloseName(t *testing.T) {
	s, cs, embedder := newTestSearcher(t)
	ctx := context.Background()
	upsertChunk(t, ctx, cs, embedder, "a:1", "authenticate_user", "def authenticate_user(): pass")
	upsertChunk(t, ctx, cs, embedder, "a:10", "render_invoice_pdf", "def render_invoice_pdf(): pass")

	resp, err := s.Search(ctx, "authenticateuser", 10, true, 0)
	require.NoError(t, err)
	assert.Equal(t, ModeFuzzy, resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a:1", resp.Results[0].ID)
}
