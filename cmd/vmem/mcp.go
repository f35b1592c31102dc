package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vmemd/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// mcpCmd serves the MCP tool surface on stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools on stdio",
	Long: `Run vmem as a Model Context Protocol server on stdin/stdout, exposing
the memory_save, memory_query, compact_save, compact_list, and
memory_status tools to MCP clients.

Examples:
  # Register with Claude Code
  claude mcp add vmem -- vmem mcp`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

// runMCP handles the mcp command
func runMCP(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}

	// Stdout carries the MCP transport; logs go to stderr.
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:       "vmem",
		Version:    version,
		ProjectID:  env.project.Slug,
		ProjectDir: env.project.Root,
		Redact:     !redactDisabled(),
		Logger:     logger,
	}, env.api, env.store, env.saves)
	if err != nil {
		return err
	}
	return srv.Run(cmd.Context())
}
