package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/twinpilot/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the twin's ask and knowledge-search tools to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		store, err := openKnowledgeStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		pipe, err := buildPipeline(cmd.Context(), cfg, database, store)
		if err != nil {
			return err
		}

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "twinpilot MCP server started on stdio (persona=%s, passages=%d)\n", cfg.PersonaID, store.Count())

		return mcpserver.NewServer(pipe, store, cfg.PersonaID).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
