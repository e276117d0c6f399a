package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rhagen/vaultsearch-mcp/internal/indexer"
)

const (
	// ServerName is the MCP server name.
	ServerName = "vaultsearch-mcp"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the indexing pipeline.
type Server struct {
	mcp        *server.MCPServer
	reconciler *indexer.Reconciler
	logger     *slog.Logger
}

// NewServer creates an MCP server around an already-constructed
// reconciler. Startup reconciliation and watcher arming are the caller's
// responsibility; by the time tools are served the index is ready.
func NewServer(reconciler *indexer.Reconciler, logger *slog.Logger) *Server {
	s := &Server{
		mcp:        server.NewMCPServer(ServerName, ServerVersion),
		reconciler: reconciler,
		logger:     logger,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchNotesTool(), s.handleSearchNotes)
	s.mcp.AddTool(reindexVaultTool(), s.handleReindexVault)
	s.mcp.AddTool(vaultStatsTool(), s.handleVaultStats)
}
