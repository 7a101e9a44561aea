package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/mcp"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP stdio server",
		Long: `Run codelens as an MCP server over stdio. stdout is reserved exclusively
for JSON-RPC frames; all logging goes to a file, never stdout or stderr.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cleanup, err := logging.SetupMCPMode()
			if err != nil {
				return fmt.Errorf("failed to initialize MCP logging: %w", err)
			}
			logCleanup = cleanup
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			idx, srch, err := openEngines(ctx)
			if err != nil {
				return fmt.Errorf("%s", codelenserrors.FormatForCLI(err))
			}
			defer func() { _ = idx.Close() }()

			srv, err := mcp.NewServer(idx, srch)
			if err != nil {
				return err
			}

			return srv.Serve(ctx)
		},
	}
	return cmd
}
