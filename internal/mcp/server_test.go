package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/pkg/indexer"
	"github.com/codelens-dev/codelens/pkg/searcher"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "widget.py"), []byte("def render_widget():\n    return 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "gadget.py"), []byte("def build_gadget():\n    return render_widget()\n"), 0o644))

	cfg := config.NewConfig()
	cfg.EmbeddingProvider = "local"
	cfg.EmbeddingModel = "static"

	ctx := context.Background()
	idx, err := indexer.Open(ctx, root, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	_, err = idx.Index(ctx, false)
	require.NoError(t, err)

	srch := searcher.New(idx.Store(), idx.Embedder())

	srv, err := NewServer(idx, srch)
	require.NoError(t, err)

	return srv, root
}

func TestHandleSearch_ReturnsResults(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleSearch(context.Background(), nil, SearchInput{Query: "widget", TopK: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Results)
	assert.Equal(t, "widget", out.Query)
}

func TestHandleSearch_RejectsBlankQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	_, _, err := srv.handleSearch(context.Background(), nil, SearchInput{Query: "   "})
	require.Error(t, err)
}

func TestHandleFuzzyFind_FiltersBySymbolType(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleFuzzyFind(context.Background(), nil, FuzzyFindInput{SymbolName: "widget", SymbolType: "function"})
	require.NoError(t, err)
	for _, r := range out.Results {
		assert.Equal(t, "function", r.Kind)
	}
}

func TestHandleFuzzyFind_CapsAtTen(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleFuzzyFind(context.Background(), nil, FuzzyFindInput{SymbolName: "gadget"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.Results), 10)
}

func TestHandleGetFileContext_ReturnsChunksForExactPath(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleGetFileContext(context.Background(), nil, GetFileContextInput{FilePath: "widget.py"})
	require.NoError(t, err)
	assert.Equal(t, "widget.py", out.FilePath)
	assert.NotEmpty(t, out.Chunks)
	assert.Equal(t, "text/x-python", out.ContentType)
}

func TestHandleGetFileContext_IncludesRelatedFiles(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleGetFileContext(context.Background(), nil, GetFileContextInput{FilePath: "widget.py", IncludeRelated: true})
	require.NoError(t, err)
	for _, f := range out.RelatedFiles {
		assert.NotEqual(t, "widget.py", f)
	}
}

func TestHandleGetStaleStatus_ReportsUpToDate(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleGetStaleStatus(context.Background(), nil, GetStaleStatusInput{})
	require.NoError(t, err)
	assert.False(t, out.IsStale)
}

func TestHandleGetStaleStatus_DetectsNewFile(t *testing.T) {
	srv, root := newTestServer(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new_file.py"), []byte("def extra(): pass\n"), 0o644))

	_, out, err := srv.handleGetStaleStatus(context.Background(), nil, GetStaleStatusInput{})
	require.NoError(t, err)
	assert.True(t, out.IsStale)
}

func TestHandleIndex_ReportsStats(t *testing.T) {
	srv, root := newTestServer(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "third.py"), []byte("def third(): pass\n"), 0o644))

	_, out, err := srv.handleIndex(context.Background(), nil, IndexInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.FilesNew)
	assert.NotEmpty(t, out.Message)
}

func TestHandleStatus_ReflectsManifest(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleStatus(context.Background(), nil, StatusInput{})
	require.NoError(t, err)
	assert.True(t, out.Initialized)
	assert.Equal(t, 2, out.TotalFiles)
}

func TestHandleConfig_ReturnsEffectiveConfig(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleConfig(context.Background(), nil, ConfigInput{})
	require.NoError(t, err)
	assert.Equal(t, "local", out.EmbeddingProvider)
}

func TestHandleFiles_GroupsChunksByPath(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.handleFiles(context.Background(), nil, FilesInput{})
	require.NoError(t, err)
	assert.Len(t, out.Files, 2)
	for _, f := range out.Files {
		assert.NotZero(t, f.ChunkCount)
		assert.NotEmpty(t, f.Kinds)
	}
}

func TestMapError_WrapsCodelensError(t *testing.T) {
	srv, _ := newTestServer(t)

	_, _, err := srv.handleGetFileContext(context.Background(), nil, GetFileContextInput{FilePath: ""})
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}
