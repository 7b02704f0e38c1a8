// Package mcp exposes the twin over the Model Context Protocol so other
// agents can ask it questions and search its grounding material directly.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/twinpilot/internal/knowledge"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the twin's ask and search tools.
type Server struct {
	runner    TurnRunner
	store     knowledge.Store
	personaID string
	mcp       *server.MCPServer
}

// NewServer creates an MCP server over the pipeline and knowledge store.
func NewServer(runner TurnRunner, store knowledge.Store, personaID string) *Server {
	s := &Server{
		runner:    runner,
		store:     store,
		personaID: personaID,
	}

	s.mcp = server.NewMCPServer(
		"twinpilot",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(askTwinTool, s.handleAskTwin)
	s.mcp.AddTool(searchKnowledgeTool, s.handleSearchKnowledge)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
