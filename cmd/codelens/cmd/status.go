package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the index's file/chunk counts and staleness",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			idx, _, err := openEngines(ctx)
			if err != nil {
				return fmt.Errorf("%s", codelenserrors.FormatForCLI(err))
			}
			defer func() { _ = idx.Close() }()

			manifest, err := idx.Manifest()
			if err != nil {
				return fmt.Errorf("%s", codelenserrors.FormatForCLI(err))
			}

			out := cmd.OutOrStdout()
			if manifest == nil {
				fmt.Fprintln(out, "not yet indexed: run `codelens index`")
				return nil
			}

			fmt.Fprintf(out, "files:  %d\n", manifest.Stats.TotalFiles)
			fmt.Fprintf(out, "chunks: %d\n", manifest.Stats.TotalChunks)
			fmt.Fprintf(out, "last updated: %s\n", manifest.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(out, "embedder: %s\n", idx.Embedder().ModelName())

			stale, err := idx.StaleStatus()
			if err == nil {
				fmt.Fprintf(out, "stale: %v (%s)\n", stale.IsStale, stale.Message)
			}
			return nil
		},
	}
	return cmd
}
