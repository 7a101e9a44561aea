package mcp

import (
	"github.com/codelens-dev/codelens/pkg/indexer"
)

// SearchInput is the input schema for the search tool (§6.2).
type SearchInput struct {
	Query      string  `json:"query" jsonschema:"the search query to execute"`
	TopK       int     `json:"top_k,omitempty" jsonschema:"maximum number of results, default 10"`
	Mode       string  `json:"mode,omitempty" jsonschema:"search mode: hybrid, vector, bm25, or fuzzy, default hybrid"`
	BM25Weight float64 `json:"bm25_weight,omitempty" jsonschema:"in hybrid mode selects the mode instead of weighting results: 1 or more runs keyword search only; any other value keeps hybrid with unweighted RRF fusion"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Query        string         `json:"query" jsonschema:"the query that was executed"`
	Mode         string         `json:"mode" jsonschema:"the search mode actually used"`
	ElapsedMs    int64          `json:"elapsed_ms" jsonschema:"search latency in milliseconds"`
	Results      []ResultOutput `json:"results" jsonschema:"ranked search results"`
	StaleWarning string         `json:"stale_warning,omitempty" jsonschema:"present when the index no longer reflects the current tree"`
}

// ResultOutput is one ranked chunk in a search response.
type ResultOutput struct {
	FilePath    string   `json:"file_path" jsonschema:"path of the file this chunk came from"`
	Name        string   `json:"name,omitempty" jsonschema:"symbol name, e.g. function or class name"`
	Kind        string   `json:"kind,omitempty" jsonschema:"chunk kind: function, method, class, or module"`
	StartLine   int      `json:"start_line" jsonschema:"first line of the chunk in the source file"`
	EndLine     int      `json:"end_line" jsonschema:"last line of the chunk in the source file"`
	Text        string   `json:"text" jsonschema:"chunk source text"`
	Score       float64  `json:"score" jsonschema:"fused relevance score"`
	VectorScore *float64 `json:"vector_score,omitempty" jsonschema:"raw vector similarity score, when vector search contributed"`
	FTSScore    *float64 `json:"fts_score,omitempty" jsonschema:"raw keyword BM25 score, when keyword search contributed"`
}

// FuzzyFindInput is the input schema for the fuzzy_find tool.
type FuzzyFindInput struct {
	SymbolName string `json:"symbol_name" jsonschema:"symbol name to fuzzy match against"`
	SymbolType string `json:"symbol_type,omitempty" jsonschema:"restrict to a chunk kind: function, method, class, or module"`
}

// FuzzyFindOutput is the output schema for the fuzzy_find tool.
type FuzzyFindOutput struct {
	Results []ResultOutput `json:"results" jsonschema:"best-matching symbols, best first"`
}

// IndexInput is the input schema for the index tool.
type IndexInput struct {
	Force bool `json:"force,omitempty" jsonschema:"clear the chunk store and rebuild it from a full rescan; vectors for unchanged chunk text still come from the embedding cache"`
}

// IndexOutput is the output schema for the index tool.
type IndexOutput struct {
	Message            string `json:"message" jsonschema:"human-readable summary of the run"`
	FilesScanned       int    `json:"files_scanned"`
	FilesNew           int    `json:"files_new"`
	FilesModified      int    `json:"files_modified"`
	FilesDeleted       int    `json:"files_deleted"`
	ChunksAdded        int    `json:"chunks_added"`
	ChunksDeleted      int    `json:"chunks_deleted"`
	EmbeddingsComputed int    `json:"embeddings_computed"`
	EmbeddingsCached   int    `json:"embeddings_cached"`
}

// GetFileContextInput is the input schema for the get_file_context tool.
type GetFileContextInput struct {
	FilePath       string `json:"filepath" jsonschema:"exact project-relative file path"`
	IncludeRelated bool   `json:"include_related,omitempty" jsonschema:"also return other indexed files that mention this file's name"`
}

// GetFileContextOutput is the output schema for the get_file_context tool.
type GetFileContextOutput struct {
	FilePath     string         `json:"filepath"`
	ContentType  string         `json:"content_type,omitempty" jsonschema:"best-guess MIME type for the file"`
	Chunks       []ResultOutput `json:"chunks" jsonschema:"every indexed chunk belonging to this file, in source order"`
	RelatedFiles []string       `json:"related_files,omitempty" jsonschema:"other indexed files mentioning this file's name, present only when include_related was set"`
}

// GetStaleStatusInput is the (empty) input schema for get_stale_status.
type GetStaleStatusInput struct{}

// GetStaleStatusOutput is the output schema for get_stale_status.
type GetStaleStatusOutput struct {
	IsStale    bool     `json:"is_stale"`
	Message    string   `json:"message"`
	StaleFiles []string `json:"stale_files,omitempty" jsonschema:"first stale files found, capped for readability"`
}

// StatusInput is the (empty) input schema for status.
type StatusInput struct{}

// StatusOutput is the output schema for status.
type StatusOutput struct {
	Initialized bool   `json:"initialized" jsonschema:"whether a manifest has been written yet"`
	TotalFiles  int    `json:"total_files"`
	TotalChunks int    `json:"total_chunks"`
	UpdatedAt   string `json:"updated_at,omitempty" jsonschema:"RFC3339 timestamp of the last index run"`
	Embedder    string `json:"embedder" jsonschema:"name of the active embedding model, e.g. nomic-embed-text or static"`
}

// ConfigInput is the (empty) input schema for config.
type ConfigInput struct{}

// ConfigOutput mirrors the project's effective, layered configuration (§6.1).
type ConfigOutput struct {
	EmbeddingProvider   string   `json:"embedding_provider"`
	EmbeddingModel      string   `json:"embedding_model"`
	EmbeddingDimensions int      `json:"embedding_dimensions"`
	Extensions          []string `json:"extensions"`
	ExcludePatterns     []string `json:"exclude_patterns"`
	ChunkMaxSize        int      `json:"chunk_max_size"`
	ChunkOverlap        int      `json:"chunk_overlap"`
	WatchDebounceMs     int      `json:"watch_debounce_ms"`
}

// FilesInput is the (empty) input schema for files.
type FilesInput struct{}

// FilesOutput is the output schema for files.
type FilesOutput struct {
	Files []FileSummary `json:"files" jsonschema:"every distinct indexed file path"`
}

// FileSummary summarizes one indexed file.
type FileSummary struct {
	FilePath   string   `json:"file_path"`
	ChunkCount int      `json:"chunk_count"`
	Kinds      []string `json:"kinds" jsonschema:"distinct chunk kinds present in this file"`
}

// toResultOutput converts one search/store result into the tool surface's
// wire representation.
func toResultOutput(filePath, name, kind string, startLine, endLine int, text string, score float64, vectorScore, ftsScore *float64) ResultOutput {
	return ResultOutput{
		FilePath:    filePath,
		Name:        name,
		Kind:        kind,
		StartLine:   startLine,
		EndLine:     endLine,
		Text:        text,
		Score:       score,
		VectorScore: vectorScore,
		FTSScore:    ftsScore,
	}
}

// statsToOutput converts indexer.Stats into IndexOutput's counters.
func statsToOutput(message string, stats indexer.Stats) IndexOutput {
	return IndexOutput{
		Message:            message,
		FilesScanned:       stats.FilesScanned,
		FilesNew:           stats.FilesNew,
		FilesModified:      stats.FilesModified,
		FilesDeleted:       stats.FilesDeleted,
		ChunksAdded:        stats.ChunksAdded,
		ChunksDeleted:      stats.ChunksDeleted,
		EmbeddingsComputed: stats.EmbeddingsComputed,
		EmbeddingsCached:   stats.EmbeddingsCached,
	}
}
