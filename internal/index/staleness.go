package index

import (
	"fmt"
	"log/slog"

	"github.com/codelens-dev/codelens/internal/merkle"
)

// StaleStatus is the result of an oracle check (§4.11).
type StaleStatus struct {
	IsStale    bool
	StaleFiles []string
	Message    string
}

// Oracle answers whether a project's index reflects its current tree,
// without writing anything — the read-only counterpart to Indexer.Run's
// scan step (C11).
type Oracle struct {
	scanner *merkle.Scanner
}

// NewOracle creates a StalenessOracle.
func NewOracle() *Oracle {
	return &Oracle{scanner: merkle.NewScanner(slog.Default())}
}

// Check scans root under the same include/exclude rules as the Indexer,
// using manifest's tree as the prior for the mtime+size fast path, and
// reports whether anything changed.
func (o *Oracle) Check(root string, extensions, excludePatterns []string, manifest *merkle.Manifest) StaleStatus {
	var prior *merkle.Forest
	if manifest != nil {
		prior = manifest.Forest()
	}

	current, _ := o.scanner.Scan(root, merkle.ScanOptions{
		Extensions:      extensions,
		ExcludePatterns: excludePatterns,
		Prior:           prior,
	})

	diff := merkle.Compare(prior, current)
	if !diff.HasChanges() {
		return StaleStatus{IsStale: false, Message: "index is up to date"}
	}

	stale := make([]string, 0, diff.TotalChanges())
	stale = append(stale, diff.Deleted...)
	stale = append(stale, diff.New...)
	stale = append(stale, diff.Modified...)

	return StaleStatus{
		IsStale:    true,
		StaleFiles: stale,
		Message:    staleMessage(diff),
	}
}

func staleMessage(diff merkle.Diff) string {
	return fmt.Sprintf("index is stale: %d new, %d modified, %d deleted",
		len(diff.New), len(diff.Modified), len(diff.Deleted))
}
