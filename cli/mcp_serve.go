package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/semdex/semdex/config"
	"github.com/semdex/semdex/mcp"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve [project-path]",
	Short: "Start semdex as an MCP server",
	Long: `Start semdex as an MCP (Model Context Protocol) server.

This allows AI agents to use semdex as a native tool through the MCP
protocol. The server communicates via stdio and exposes the following tools:

  - semdex_search: Semantic code search with natural language
  - semdex_index_status: Check whether an index exists and how it is configured
  - semdex_reindex: Rebuild the index

Arguments:
  project-path  Optional path to the semdex project directory.
                If not provided, searches for .semdex from current directory.

Configuration for Claude Code:
  claude mcp add semdex -- semdex mcp-serve

Configuration for Cursor (.cursor/mcp.json):
  {
    "mcpServers": {
      "semdex": {
        "command": "semdex",
        "args": ["mcp-serve"]
      }
    }
  }`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMCPServe,
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	var projectRoot string
	var err error

	if len(args) == 1 {
		projectRoot, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid project path: %w", err)
		}
		if !config.Exists(projectRoot) {
			return fmt.Errorf("no semdex project at %s; run: semdex init", projectRoot)
		}
	} else {
		projectRoot, err = config.FindProjectRoot()
		if err != nil {
			return err
		}
	}

	srv, err := mcp.NewServer(projectRoot)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// stdio is the protocol channel; anything human-readable goes to stderr.
	fmt.Fprintf(os.Stderr, "semdex MCP server started for %s\n", projectRoot)
	return srv.Serve()
}
