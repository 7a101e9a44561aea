package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
	"github.com/codelens-dev/codelens/pkg/indexer"
	"github.com/codelens-dev/codelens/pkg/searcher"
	"github.com/codelens-dev/codelens/pkg/version"
)

// Server exposes the ToolSurface (C12): the eight MCP tools the spec names,
// wired to one project's Indexer and Searcher facades.
type Server struct {
	mcp    *sdkmcp.Server
	idx    *indexer.Engine
	srch   *searcher.Engine
	logger *slog.Logger

	mu sync.RWMutex
}

// NewServer creates the MCP server for one open project, registering all
// eight tools.
func NewServer(idx *indexer.Engine, srch *searcher.Engine) (*Server, error) {
	if idx == nil {
		return nil, fmt.Errorf("indexer engine is required")
	}
	if srch == nil {
		return nil, fmt.Errorf("searcher engine is required")
	}

	s := &Server{
		idx:    idx,
		srch:   srch,
		logger: slog.Default(),
	}

	s.mcp = sdkmcp.NewServer(
		&sdkmcp.Implementation{
			Name:    "codelens",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server, for callers that need to
// attach additional transports or options.
func (s *Server) MCPServer() *sdkmcp.Server { return s.mcp }

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &sdkmcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "search",
		Description: "Search the indexed codebase by hybrid vector+keyword relevance, pure vector similarity, pure keyword (bm25), or fuzzy name matching.",
	}, s.handleSearch)

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "fuzzy_find",
		Description: "Fuzzy-match a symbol name against every indexed chunk's name, optionally restricted to a chunk kind.",
	}, s.handleFuzzyFind)

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "get_file_context",
		Description: "Return every indexed chunk belonging to one exact file path, optionally with other files that mention it.",
	}, s.handleGetFileContext)

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "get_stale_status",
		Description: "Report whether the index still reflects the current state of the project tree, without running an index pass.",
	}, s.handleGetStaleStatus)

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "index",
		Description: "Run an incremental (or, with force, full) index pass over the project and report what changed.",
	}, s.handleIndex)

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "status",
		Description: "Report the current manifest's file/chunk counts, last update time, and active embedder.",
	}, s.handleStatus)

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "config",
		Description: "Return the project's effective, layered configuration.",
	}, s.handleConfig)

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "files",
		Description: "List every distinct indexed file path with its chunk count and chunk kinds.",
	}, s.handleFiles)

	s.logger.Debug("registered MCP tools", slog.Int("count", 8))
}

func resolveMode(mode string) (bm25Weight float64, fuzzy bool) {
	switch strings.ToLower(mode) {
	case "vector":
		return 0, false
	case "bm25":
		return 1, false
	case "fuzzy":
		return 0.5, true
	default: // "hybrid", ""
		return 0.5, false
	}
}

func (s *Server) handleSearch(ctx context.Context, _ *sdkmcp.CallToolRequest, input SearchInput) (
	*sdkmcp.CallToolResult, SearchOutput, error,
) {
	requestID := generateRequestID()
	start := time.Now()

	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required and must not be blank")
	}

	topK := input.TopK
	if topK <= 0 {
		topK = 10
	}

	weight, fuzzy := resolveMode(input.Mode)
	isHybrid := input.Mode == "" || strings.EqualFold(input.Mode, "hybrid")
	if isHybrid && input.BM25Weight > 0 {
		weight = input.BM25Weight
	}

	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.String("mode", input.Mode))

	resp, err := s.srch.Search(ctx, input.Query, topK, fuzzy, weight)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	out := SearchOutput{
		Query:     resp.Query,
		Mode:      string(resp.Mode),
		ElapsedMs: resp.ElapsedMs,
		Results:   make([]ResultOutput, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, toResultOutput(r.FilePath, r.Name, r.Kind, r.StartLine, r.EndLine, r.Text, r.Score, r.VectorScore, r.FTSScore))
	}

	if stale, err := s.idx.StaleStatus(); err == nil && stale.IsStale {
		out.StaleWarning = stale.Message
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("elapsed", elapsed),
		slog.Int("results", len(out.Results)))

	return nil, out, nil
}

func (s *Server) handleFuzzyFind(ctx context.Context, _ *sdkmcp.CallToolRequest, input FuzzyFindInput) (
	*sdkmcp.CallToolResult, FuzzyFindOutput, error,
) {
	if strings.TrimSpace(input.SymbolName) == "" {
		return nil, FuzzyFindOutput{}, NewInvalidParamsError("symbol_name is required and must not be blank")
	}

	resp, err := s.srch.Search(ctx, input.SymbolName, 20, true, 0.5)
	if err != nil {
		return nil, FuzzyFindOutput{}, MapError(err)
	}

	filtered := resp.Results
	if input.SymbolType != "" {
		narrowed := make([]searcher.Result, 0, len(resp.Results))
		for _, r := range resp.Results {
			if strings.EqualFold(r.Kind, input.SymbolType) {
				narrowed = append(narrowed, r)
			}
		}
		filtered = narrowed
	}
	if len(filtered) > 10 {
		filtered = filtered[:10]
	}

	out := FuzzyFindOutput{Results: make([]ResultOutput, 0, len(filtered))}
	for _, r := range filtered {
		out.Results = append(out.Results, toResultOutput(r.FilePath, r.Name, r.Kind, r.StartLine, r.EndLine, r.Text, r.Score, r.VectorScore, r.FTSScore))
	}
	return nil, out, nil
}

func (s *Server) handleGetFileContext(ctx context.Context, _ *sdkmcp.CallToolRequest, input GetFileContextInput) (
	*sdkmcp.CallToolResult, GetFileContextOutput, error,
) {
	if strings.TrimSpace(input.FilePath) == "" {
		return nil, GetFileContextOutput{}, NewInvalidParamsError("filepath is required and must not be blank")
	}

	chunks, err := s.srch.GetByPath(ctx, input.FilePath)
	if err != nil {
		return nil, GetFileContextOutput{}, MapError(err)
	}

	out := GetFileContextOutput{
		FilePath:    input.FilePath,
		ContentType: MimeTypeForPath(input.FilePath),
		Chunks:      make([]ResultOutput, 0, len(chunks)),
	}
	for _, c := range chunks {
		out.Chunks = append(out.Chunks, toResultOutput(c.FilePath, c.Name, c.Kind, c.StartLine, c.EndLine, c.Text, 0, nil, nil))
	}

	if input.IncludeRelated {
		resp, err := s.srch.Search(ctx, baseName(input.FilePath), 20, false, 1)
		if err == nil {
			seen := map[string]struct{}{input.FilePath: {}}
			for _, r := range resp.Results {
				if _, ok := seen[r.FilePath]; ok {
					continue
				}
				seen[r.FilePath] = struct{}{}
				out.RelatedFiles = append(out.RelatedFiles, r.FilePath)
			}
		}
	}

	return nil, out, nil
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func (s *Server) handleGetStaleStatus(_ context.Context, _ *sdkmcp.CallToolRequest, _ GetStaleStatusInput) (
	*sdkmcp.CallToolResult, GetStaleStatusOutput, error,
) {
	status, err := s.idx.StaleStatus()
	if err != nil {
		return nil, GetStaleStatusOutput{}, MapError(err)
	}

	out := GetStaleStatusOutput{IsStale: status.IsStale, Message: status.Message}
	const staleFilesCap = 20
	if len(status.StaleFiles) > staleFilesCap {
		out.StaleFiles = status.StaleFiles[:staleFilesCap]
	} else {
		out.StaleFiles = status.StaleFiles
	}
	return nil, out, nil
}

func (s *Server) handleIndex(ctx context.Context, _ *sdkmcp.CallToolRequest, input IndexInput) (
	*sdkmcp.CallToolResult, IndexOutput, error,
) {
	requestID := generateRequestID()
	s.logger.Info("index started", slog.String("request_id", requestID), slog.Bool("force", input.Force))

	stats, err := s.idx.Index(ctx, input.Force)
	if err != nil {
		s.logger.Error("index failed", slog.String("request_id", requestID), slog.String("error", err.Error()))
		return nil, IndexOutput{}, MapError(err)
	}

	message := fmt.Sprintf("indexed %d files (%d new, %d modified, %d deleted), %d chunks added, %d chunks deleted",
		stats.FilesScanned, stats.FilesNew, stats.FilesModified, stats.FilesDeleted, stats.ChunksAdded, stats.ChunksDeleted)

	s.logger.Info("index completed", slog.String("request_id", requestID), slog.String("message", message))
	return nil, statsToOutput(message, stats), nil
}

func (s *Server) handleStatus(_ context.Context, _ *sdkmcp.CallToolRequest, _ StatusInput) (
	*sdkmcp.CallToolResult, StatusOutput, error,
) {
	manifest, err := s.idx.Manifest()
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}

	embedder := s.idx.Embedder()
	embedderDesc := "unavailable"
	if embedder != nil {
		embedderDesc = embedder.ModelName()
	}

	if manifest == nil {
		return nil, StatusOutput{Initialized: false, Embedder: embedderDesc}, nil
	}

	return nil, StatusOutput{
		Initialized: true,
		TotalFiles:  manifest.Stats.TotalFiles,
		TotalChunks: manifest.Stats.TotalChunks,
		UpdatedAt:   manifest.UpdatedAt.Format(time.RFC3339),
		Embedder:    embedderDesc,
	}, nil
}

func (s *Server) handleConfig(_ context.Context, _ *sdkmcp.CallToolRequest, _ ConfigInput) (
	*sdkmcp.CallToolResult, ConfigOutput, error,
) {
	cfg := s.idx.Config()
	if cfg == nil {
		return nil, ConfigOutput{}, MapError(codelenserrors.ConfigInvalid("no configuration loaded", nil))
	}
	return nil, ConfigOutput{
		EmbeddingProvider:   cfg.EmbeddingProvider,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		Extensions:          cfg.Extensions,
		ExcludePatterns:     cfg.ExcludePatterns,
		ChunkMaxSize:        cfg.ChunkMaxSize,
		ChunkOverlap:        cfg.ChunkOverlap,
		WatchDebounceMs:     cfg.WatchDebounceMs,
	}, nil
}

func (s *Server) handleFiles(ctx context.Context, _ *sdkmcp.CallToolRequest, _ FilesInput) (
	*sdkmcp.CallToolResult, FilesOutput, error,
) {
	chunks, err := s.srch.All(ctx)
	if err != nil {
		return nil, FilesOutput{}, MapError(err)
	}

	type accum struct {
		count int
		kinds map[string]struct{}
	}
	byPath := make(map[string]*accum)
	for _, c := range chunks {
		a, ok := byPath[c.FilePath]
		if !ok {
			a = &accum{kinds: make(map[string]struct{})}
			byPath[c.FilePath] = a
		}
		a.count++
		a.kinds[c.Kind] = struct{}{}
	}

	out := FilesOutput{Files: make([]FileSummary, 0, len(byPath))}
	for path, a := range byPath {
		kinds := make([]string, 0, len(a.kinds))
		for k := range a.kinds {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		out.Files = append(out.Files, FileSummary{FilePath: path, ChunkCount: a.count, Kinds: kinds})
	}
	sort.Slice(out.Files, func(i, j int) bool { return out.Files[i].FilePath < out.Files[j].FilePath })

	return nil, out, nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
