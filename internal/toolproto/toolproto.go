// Package toolproto binds the four tools of the line-delimited JSON tool
// protocol (§6.4) directly to the Facade, grounded on the teacher's
// internal/mcp server: one Server wrapping the MCP go-sdk, registering
// recall_search, recall_get, recall_collections, and recall_index with no
// retrieval logic of its own.
package toolproto

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aifbin/recall/internal/facade"
)

// ServerName identifies this binding to MCP clients; the version string is
// passed to New.
const ServerName = "aifbin-recall"

// Server is the tool-protocol surface over a Facade (§4.6, §6.4).
type Server struct {
	mcp    *mcp.Server
	facade *facade.Facade
	logger *slog.Logger
}

// New builds a Server bound to f. version is reported in the MCP
// implementation handshake. logger defaults to slog.Default() if nil.
func New(f *facade.Facade, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{facade: f, logger: logger}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server, e.g. for tests that want to
// call its tools directly without a transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over stdio — the tool protocol serves one client
// at a time over a framed pipe (§5).
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting tool protocol server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("tool protocol server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("tool protocol server stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recall_search",
		Description: "Search stored memory chunks by semantic similarity, optionally fused with keyword relevance. Embeds the query text if no embedding is supplied.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recall_get",
		Description: "Fetch a single memory chunk by id with no scoring.",
	}, s.handleGet)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recall_collections",
		Description: "List every collection and its file/chunk counts.",
	}, s.handleCollections)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recall_index",
		Description: "Ingest every .aif-bin file under a directory into a collection.",
	}, s.handleIndex)
}

// textResult wraps a single text block as a successful CallToolResult, the
// shape every tool in this protocol returns on success (§6.4).
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// errorResult wraps err's message as a failed CallToolResult (§6.4
// "is_error=true on failure").
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

// emptyOutput is the unused structured-output type parameter for tools that
// only ever return free text content.
type emptyOutput = struct{}
