package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List every indexed file with its chunk count",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			idx, srch, err := openEngines(ctx)
			if err != nil {
				return fmt.Errorf("%s", codelenserrors.FormatForCLI(err))
			}
			defer func() { _ = idx.Close() }()

			chunks, err := srch.All(ctx)
			if err != nil {
				return fmt.Errorf("%s", codelenserrors.FormatForCLI(err))
			}

			counts := make(map[string]int)
			for _, c := range chunks {
				counts[c.FilePath]++
			}

			paths := make([]string, 0, len(counts))
			for p := range counts {
				paths = append(paths, p)
			}
			sort.Strings(paths)

			out := cmd.OutOrStdout()
			for _, p := range paths {
				fmt.Fprintf(out, "%-60s %d chunks\n", p, counts[p])
			}
			return nil
		},
	}
	return cmd
}
