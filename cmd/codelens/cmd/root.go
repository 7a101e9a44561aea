// Package cmd implements the codelens CLI: index, search, status, config and
// files subcommands for those ToolSurface operations (§6.2), serve for the
// MCP stdio transport, and version. fuzzy_find, get_file_context and
// get_stale_status have no subcommand of their own.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/logging"
	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
	"github.com/codelens-dev/codelens/pkg/indexer"
	"github.com/codelens-dev/codelens/pkg/searcher"
)

var (
	rootPath string
	debug    bool

	logCleanup func()
)

// Execute runs the codelens CLI.
func Execute() error {
	defer func() {
		if logCleanup != nil {
			logCleanup()
		}
	}()
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "codelens",
		Short: "Incremental, Merkle-diffed code indexer and searcher",
		Long: `codelens keeps a local semantic index of a project's source tree,
rebuilding only what changed since the last run, and exposes it through a
CLI and an MCP stdio server for AI assistants.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := logging.DefaultConfig()
			if debug {
				cfg = logging.DebugConfig()
			}
			_, cleanup, err := logging.Setup(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			logCleanup = cleanup
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rootPath, "root", "", "project root directory (default: current directory)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newIndexCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newFilesCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// resolveRoot returns the configured project root, defaulting to the
// current working directory.
func resolveRoot() (string, error) {
	if rootPath != "" {
		return rootPath, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	return wd, nil
}

// openEngines opens the indexer and searcher facades for the configured
// project root, loading its layered configuration.
func openEngines(ctx context.Context) (*indexer.Engine, *searcher.Engine, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, codelenserrors.ConfigInvalid("failed to load configuration", err)
	}

	idx, err := indexer.Open(ctx, root, cfg)
	if err != nil {
		return nil, nil, err
	}

	srch := searcher.New(idx.Store(), idx.Embedder())
	return idx, srch, nil
}
