package merkle

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanOptions configures a TreeScanner pass.
type ScanOptions struct {
	// Extensions is the include set; entries begin with "." (e.g. ".py").
	// An empty set means "no files match" (extension filtering is required
	// for correctness of the downstream Chunker dispatch).
	Extensions []string
	// ExcludePatterns are glob patterns matched against a basename (or, for
	// patterns containing a path separator, against the relative path).
	ExcludePatterns []string
	// Prior is the previously built forest, used for the mtime+size fast
	// path. May be nil on a first scan or a forced rebuild.
	Prior *Forest
}

// Scanner walks a project root and builds a Merkle forest.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a TreeScanner. A nil logger falls back to slog.Default().
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Scan builds a fresh Forest rooted at root, honoring opts.Extensions and
// opts.ExcludePatterns, and reusing hashes from opts.Prior via the mtime+size
// fast path (I2, §4.2).
func (s *Scanner) Scan(root string, opts ScanOptions) (*Forest, BuildStats) {
	var priorRoot *Node
	if opts.Prior != nil {
		priorRoot = opts.Prior.Root
	}
	priorIdx := pathIndex(priorRoot)

	var stats BuildStats
	node := s.buildNode(root, root, opts, priorIdx, &stats)
	return &Forest{Root: node}, stats
}

// buildNode recursively builds the node for path (relative to projectRoot).
// Returns nil when path should be excluded, is a symlink, is empty-directory,
// or otherwise has no included descendant.
func (s *Scanner) buildNode(path, projectRoot string, opts ScanOptions, priorIdx map[string]*Node, stats *BuildStats) *Node {
	info, err := os.Lstat(path)
	if err != nil {
		s.logger.Warn("merkle scan: stat failed, skipping", "path", path, "error", err)
		return nil
	}

	// Symlinks are never followed and never included (I4).
	if info.Mode()&os.ModeSymlink != 0 {
		return nil
	}

	relPath, err := filepath.Rel(projectRoot, path)
	if err != nil {
		return nil
	}
	relPath = filepath.ToSlash(relPath)
	if relPath == "." {
		relPath = ""
	}

	if relPath != "" && shouldExclude(relPath, opts.ExcludePatterns) {
		return nil
	}

	if info.IsDir() {
		return s.buildDirNode(path, relPath, projectRoot, opts, priorIdx, stats)
	}
	return s.buildFileNode(path, relPath, info, opts, priorIdx, stats)
}

func (s *Scanner) buildDirNode(path, relPath, projectRoot string, opts ScanOptions, priorIdx map[string]*Node, stats *BuildStats) *Node {
	entries, err := os.ReadDir(path)
	if err != nil {
		s.logger.Warn("merkle scan: read dir failed, skipping", "path", path, "error", err)
		return nil
	}
	stats.DirsProcessed++

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	children := make(map[string]*Node)
	for _, name := range names {
		childPath := filepath.Join(path, name)
		child := s.buildNode(childPath, projectRoot, opts, priorIdx, stats)
		if child != nil {
			children[name] = child
		}
	}

	// Empty directories (no included descendants) are omitted (I3), except
	// the caller is responsible for deciding whether the root itself, if
	// empty, should still surface as a nil forest (it does — see Indexer).
	if len(children) == 0 {
		return nil
	}

	return &Node{
		Hash:     HashDir(children),
		Kind:     KindDir,
		Path:     relPath,
		Children: children,
	}
}

func (s *Scanner) buildFileNode(path, relPath string, info os.FileInfo, opts ScanOptions, priorIdx map[string]*Node, stats *BuildStats) *Node {
	ext := strings.ToLower(filepath.Ext(path))
	if !containsExt(opts.Extensions, ext) {
		return nil
	}

	if shouldExclude(relPath, opts.ExcludePatterns) {
		return nil
	}

	if isBinary(path) {
		return nil
	}

	size := info.Size()
	mtime := float64(info.ModTime().UnixNano()) / 1e9

	if prior, ok := priorIdx[relPath]; ok && prior.Kind == KindFile && prior.Mtime == mtime && prior.Size == size {
		stats.FilesMtimeCached++
		return &Node{Hash: prior.Hash, Kind: KindFile, Path: relPath, Size: size, Mtime: mtime}
	}

	hash, err := HashFile(path)
	if err != nil {
		s.logger.Warn("merkle scan: hash failed, skipping", "path", path, "error", err)
		return nil
	}
	stats.FilesHashed++
	return &Node{Hash: hash, Kind: KindFile, Path: relPath, Size: size, Mtime: mtime}
}

func containsExt(exts []string, ext string) bool {
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// shouldExclude reports whether relPath (slash-separated, project-relative)
// matches any default-sensitive, default-noise, or caller-supplied glob
// pattern. Patterns are matched against the basename unless they contain a
// path separator, the same behavior as matchFilePattern in the file
// scanner this was adapted from.
func shouldExclude(relPath string, patterns []string) bool {
	base := path_Base(relPath)
	for _, p := range sensitiveFilePatterns {
		if matchPattern(base, relPath, p) {
			return true
		}
	}
	for _, p := range defaultExcludePatterns {
		if matchPattern(base, relPath, p) {
			return true
		}
	}
	for _, p := range patterns {
		if matchPattern(base, relPath, p) {
			return true
		}
	}
	return false
}

func path_Base(relPath string) string {
	if i := strings.LastIndexByte(relPath, '/'); i >= 0 {
		return relPath[i+1:]
	}
	return relPath
}

// matchPattern matches a basename or relative-path glob. Supports the
// "**/name/**" and "name/**" directory forms, "*substr*"/"*.ext"/"prefix*"
// basename globs, and exact basename matches.
func matchPattern(baseName, relPath, pattern string) bool {
	switch {
	case strings.HasPrefix(pattern, "**/") && strings.HasSuffix(pattern, "/**"):
		mid := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
		for _, part := range strings.Split(relPath, "/") {
			if part == mid {
				return true
			}
		}
		return false
	case strings.HasSuffix(pattern, "/**"):
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+"/")
	case strings.HasPrefix(pattern, "**/"):
		suffix := strings.TrimPrefix(pattern, "**/")
		if strings.HasPrefix(suffix, "*.") {
			return strings.HasSuffix(baseName, strings.TrimPrefix(suffix, "*"))
		}
		for _, part := range strings.Split(relPath, "/") {
			if part == suffix {
				return true
			}
		}
		return false
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		mid := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		return strings.Contains(strings.ToLower(baseName), strings.ToLower(mid))
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(baseName, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(baseName, strings.TrimPrefix(pattern, "*"))
	default:
		matched, err := filepath.Match(pattern, baseName)
		return err == nil && matched
	}
}

// defaultExcludePatterns keeps common noise directories and generated
// lockfiles out of the index regardless of project configuration.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/.codelens/**",
	"**/dist/**",
	"**/build/**",
	"*.min.js",
	"*.min.css",
}

// sensitiveFilePatterns are never indexed, regardless of extension or
// project configuration — credentials have no business in a semantic
// search index.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
