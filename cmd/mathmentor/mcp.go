package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/mathmentor/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run mathmentor as an MCP (Model Context Protocol) server",
		Long: `Start an MCP server that exposes the solve pipeline over stdio.

The MCP server allows AI tools (Continue.dev, Cursor, Cline, Windsurf,
GitHub Copilot) to invoke mathmentor tools directly:

  • math_solve    - Solve a problem with verification and explanation
  • math_feedback - Record feedback on a solved problem
  • math_correct  - Teach a recurring OCR/ASR misrecognition fix
  • math_history  - List recently solved problems

The server communicates via JSON-RPC 2.0 over stdin/stdout, following the
Model Context Protocol specification.

Example usage in Continue.dev config.json:

  {
    "mcpServers": {
      "mathmentor": {
        "command": "mathmentor",
        "args": ["mcp-server"],
        "cwd": "${workspaceFolder}"
      }
    }
  }

Requires GEMINI_API_KEY.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			orch, err := buildOrchestrator(cmd)
			if err != nil {
				return err
			}

			// Build the knowledge index before accepting calls so the
			// first tool invocation answers promptly.
			if err := orch.InitializeIndex(cmd.Context()); err != nil {
				orch.Close()
				return fmt.Errorf("building knowledge index: %w", err)
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "mathmentor",
				Version: version,
				Root:    root,
			}, orch)
			if err != nil {
				orch.Close()
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			// Run server (blocks until client disconnects or SIGTERM/SIGINT)
			if err := server.Run(context.Background()); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}

			return nil
		},
	}

	return cmd
}
