// Command codelens indexes and searches a codebase via the CLI or as an MCP
// stdio server (§6.2).
package main

import (
	"fmt"
	"os"

	"github.com/codelens-dev/codelens/cmd/codelens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
