package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
	"github.com/codelens-dev/codelens/pkg/indexer"
)

func newIndexCmd() *cobra.Command {
	var force bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the project, scanning only what changed since the last run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			idx, _, err := openEngines(ctx)
			if err != nil {
				return fmt.Errorf("%s", codelenserrors.FormatForCLI(err))
			}
			defer func() { _ = idx.Close() }()

			if err := runIndexOnce(cmd, idx, force); err != nil {
				return err
			}

			if !watch {
				return nil
			}
			return runIndexWatch(ctx, cmd, idx)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "clear the chunk store and rebuild it from a full rescan; vectors for unchanged chunk text still come from the embedding cache")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running, re-indexing incrementally as files change (§9, optional convenience on top of the core Indexer)")
	return cmd
}

// runIndexOnce runs a single index pass, rendering progress as a live
// carriage-return line when stdout is a terminal, or one line per stage
// change when it's redirected (e.g. to a log file).
func runIndexOnce(cmd *cobra.Command, idx *indexer.Engine, force bool) error {
	out := cmd.OutOrStdout()
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd())
	}

	lastStage := ""
	stats, err := idx.IndexWithProgress(cmd.Context(), force, func(current, total int, stage string) {
		if interactive {
			fmt.Fprintf(out, "\r%s: %d/%d", stage, current, total)
			return
		}
		if stage != lastStage {
			fmt.Fprintf(out, "%s: %d/%d\n", stage, current, total)
			lastStage = stage
		}
	})
	if interactive {
		fmt.Fprintln(out)
	}
	if err != nil {
		return fmt.Errorf("%s", codelenserrors.FormatForCLI(err))
	}

	fmt.Fprintf(out, "scanned %d files: %d new, %d modified, %d deleted\n",
		stats.FilesScanned, stats.FilesNew, stats.FilesModified, stats.FilesDeleted)
	fmt.Fprintf(out, "chunks: %d added, %d deleted (%d embeddings computed, %d cached)\n",
		stats.ChunksAdded, stats.ChunksDeleted, stats.EmbeddingsComputed, stats.EmbeddingsCached)
	return nil
}

// runIndexWatch watches the project tree and re-runs an incremental index
// pass debounce_ms after the last change settles, until ctx is canceled.
func runIndexWatch(ctx context.Context, cmd *cobra.Command, idx *indexer.Engine) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	root := idx.RootPath()
	stateDir := idx.StateDir()
	if err := addWatchDirs(watcher, root, stateDir); err != nil {
		return fmt.Errorf("failed to watch project tree: %w", err)
	}

	debounce := time.Duration(idx.Config().WatchDebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "watching %s for changes (debounce %s)\n", root, debounce)

	var timer *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.Contains(event.Name, stateDir) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() { trigger <- struct{}{} })
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-trigger:
			if err := runIndexOnce(cmd, idx, false); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "index failed: %v\n", err)
			}
		}
	}
}

// addWatchDirs registers a watch on root and every subdirectory, skipping
// the project's own state directory.
func addWatchDirs(watcher *fsnotify.Watcher, root, stateDir string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // per-file scan errors are swallowed, not fatal (§7)
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(path, stateDir) {
			return filepath.SkipDir
		}
		if strings.Contains(path, string(filepath.Separator)+".git") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
