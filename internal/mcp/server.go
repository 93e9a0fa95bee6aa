package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/claimwise/internal/pipeline"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the policy pipeline as tools.
type Server struct {
	orch *pipeline.Orchestrator
	mcp  *server.MCPServer
}

// NewServer creates a new MCP server backed by orch.
func NewServer(orch *pipeline.Orchestrator) *Server {
	s := &Server{orch: orch}

	s.mcp = server.NewMCPServer(
		"claimwise",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(askPolicyQuestionTool, s.handleAskPolicyQuestion)
	s.mcp.AddTool(adjudicateClaimTool, s.handleAdjudicateClaim)
	s.mcp.AddTool(searchPolicyClausesTool, s.handleSearchPolicyClauses)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
