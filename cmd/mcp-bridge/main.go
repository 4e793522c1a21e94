// veritas-mcp-bridge exposes the Veritas validation engine as MCP tools,
// allowing Claude Desktop and any MCP-compatible AI host to inspect rules,
// dry-run payloads, and track validation tasks.
//
// Add to Claude Desktop (~/.claude/claude_desktop_config.json):
//
//	{
//	  "mcpServers": {
//	    "veritas": {
//	      "command": "/path/to/veritas-mcp-bridge",
//	      "args": ["--engine", "http://localhost:8080"]
//	    }
//	  }
//	}
//
// When the deployment guards its rule routes, pass the secret too:
//
//	"args": [
//	  "--engine", "https://veritas.example.com",
//	  "--admin-secret", "..."
//	]
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiangxiecrypto/veritas-sub001/internal/mcpbridge"
	"github.com/xiangxiecrypto/veritas-sub001/pkg/client"
)

var (
	engineURL   string
	adminSecret string
	timeoutSec  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "veritas-mcp-bridge",
	Short: "MCP bridge for the Veritas validation engine",
	Long: `veritas-mcp-bridge is a stdio MCP server that exposes four engine tools to
any MCP-compatible AI host (Claude Desktop, Claude API, etc.):

  evaluate_payload — dry-run a JSON blob against a rule's current checks
  extract_value    — preview the fixed-point value a check would see
  list_rules       — list registered rules and their freshness windows
  get_task         — fetch a validation task by its hex identifier

The bridge runs in stdio mode (the MCP standard for local servers).
All logging goes to stderr so it does not interfere with the protocol.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&engineURL, "engine", "http://localhost:8080", "Veritas engine base URL")
	rootCmd.Flags().StringVar(&adminSecret, "admin-secret", "", "Admin secret (required when the deployment guards its rule routes)")
	rootCmd.Flags().IntVar(&timeoutSec, "timeout", 30, "Engine request timeout in seconds")
}

func run(cmd *cobra.Command, _ []string) error {
	logger := log.New(os.Stderr, "[veritas-mcp] ", log.LstdFlags)

	opts := []client.Option{
		client.WithTimeout(time.Duration(timeoutSec) * time.Second),
	}
	if adminSecret != "" {
		opts = append(opts, client.WithAdminSecret(adminSecret))
	} else {
		logger.Printf("no --admin-secret provided; guarded deployments will refuse rule tools")
	}

	c, err := client.New(engineURL, opts...)
	if err != nil {
		return fmt.Errorf("create engine client: %w", err)
	}

	tools := mcpbridge.NewToolRegistry(c)
	server := mcpbridge.NewServer(os.Stdout, tools, logger)

	logger.Printf("Veritas MCP bridge ready — engine: %s", engineURL)
	logger.Printf("tools: evaluate_payload, extract_value, list_rules, get_task")

	return server.Serve(cmd.Context(), os.Stdin)
}
