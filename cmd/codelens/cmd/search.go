package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

func newSearchCmd() *cobra.Command {
	var topK int
	var mode string
	var bm25Weight float64
	var fuzzy bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := args[0]

			idx, srch, err := openEngines(ctx)
			if err != nil {
				return fmt.Errorf("%s", codelenserrors.FormatForCLI(err))
			}
			defer func() { _ = idx.Close() }()

			weight := bm25Weight
			useFuzzy := fuzzy
			switch strings.ToLower(mode) {
			case "vector":
				weight = 0
			case "bm25":
				weight = 1
			case "fuzzy":
				useFuzzy = true
			}

			resp, err := srch.Search(ctx, query, topK, useFuzzy, weight)
			if err != nil {
				return fmt.Errorf("%s", codelenserrors.FormatForCLI(err))
			}

			if stale, err := idx.StaleStatus(); err == nil && stale.IsStale {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", stale.Message)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d results for %q (%s, %dms)\n\n", len(resp.Results), resp.Query, resp.Mode, resp.ElapsedMs)
			for i, r := range resp.Results {
				fmt.Fprintf(out, "%d. %s:%d-%d  %s (%s)  score=%.3f\n", i+1, r.FilePath, r.StartLine, r.EndLine, r.Name, r.Kind, r.Score)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 10, "maximum number of results")
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: hybrid, vector, bm25, or fuzzy")
	cmd.Flags().Float64Var(&bm25Weight, "bm25-weight", 0.5, "with --mode hybrid, selects the mode instead of weighting results: <=0 vector only, >=1 keyword only, otherwise both fused by unweighted RRF")
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "force fuzzy name matching")

	return cmd
}
