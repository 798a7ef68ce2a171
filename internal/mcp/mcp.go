// Package mcp implements the Model Context Protocol server for Kotae.
//
// The MCP server exposes the same capabilities as the HTTP API through
// MCP resources and tools, so MCP-compatible AI agents can query the
// knowledge base and feed it new documents.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kotae/internal/agent"
	"github.com/ashita-ai/kotae/internal/docstore"
	"github.com/ashita-ai/kotae/internal/model"
)

// Server wraps the MCP server with Kotae's agent engine.
type Server struct {
	mcpServer *mcpserver.MCPServer
	engine    *agent.Engine
	store     *docstore.Store
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(engine *agent.Engine, store *docstore.Store, logger *slog.Logger, version string) *Server {
	s := &Server{
		engine: engine,
		store:  store,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"kotae",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// kotae://documents — current knowledge base listing.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"kotae://documents",
			"Knowledge Base Documents",
			mcplib.WithResourceDescription("Titles and sizes of all documents in the knowledge base"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleDocumentsResource,
	)
}

func (s *Server) registerTools() {
	// kotae_ask — run a full agent query.
	s.mcpServer.AddTool(
		mcplib.NewTool("kotae_ask",
			mcplib.WithDescription("Answer a question using the document knowledge base. Mode 'rag' does a single retrieval pass; 'react' lets the agent compose tools over multiple iterations."),
			mcplib.WithString("query", mcplib.Description("Natural language question"), mcplib.Required()),
			mcplib.WithString("mode", mcplib.Description("Agent mode: rag or react (default rag)")),
			mcplib.WithBoolean("use_cache", mcplib.Description("Serve a cached answer when available (default true)")),
		),
		s.handleAsk,
	)

	// kotae_search — retrieval only, no LLM call.
	s.mcpServer.AddTool(
		mcplib.NewTool("kotae_search",
			mcplib.WithDescription("Retrieve the documents most relevant to a query, without generating an answer"),
			mcplib.WithString("query", mcplib.Description("Search query"), mcplib.Required()),
		),
		s.handleSearch,
	)

	// kotae_upload — add a document to the knowledge base.
	s.mcpServer.AddTool(
		mcplib.NewTool("kotae_upload",
			mcplib.WithDescription("Add or replace a document in the knowledge base"),
			mcplib.WithString("title", mcplib.Description("Document title, the unique key"), mcplib.Required()),
			mcplib.WithString("content", mcplib.Description("Document text"), mcplib.Required()),
		),
		s.handleUpload,
	)
}

func (s *Server) handleDocumentsResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	snap := s.store.Snapshot()
	docs := make([]map[string]any, len(snap))
	for i, d := range snap {
		docs[i] = map[string]any{"title": d.Title, "size": len(d.Content)}
	}

	data, err := json.MarshalIndent(map[string]any{
		"documents": docs,
		"count":     len(docs),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal documents: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "kotae://documents",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleAsk(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return errorResult("query is required"), nil
	}
	if len(query) > model.MaxQueryLen {
		return errorResult("query too long"), nil
	}
	mode := model.QueryMode(request.GetString("mode", ""))
	switch mode {
	case "", model.ModeRAG, model.ModeReAct:
	default:
		return errorResult("mode must be rag or react"), nil
	}
	useCache := request.GetBool("use_cache", true)

	out, err := s.engine.Process(ctx, query, mode, useCache, nil)
	if err != nil {
		return errorResult(fmt.Sprintf("query cancelled: %v", err)), nil
	}

	resultData, _ := json.Marshal(map[string]any{
		"result":     out.Result,
		"from_cache": out.FromCache,
		"time_ms":    out.TimeMS,
		"iterations": out.Iterations,
		"steps":      len(out.Steps),
	})

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleSearch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return errorResult("query is required"), nil
	}

	tool, ok := s.engine.Registry().Resolve("semantic_search")
	if !ok {
		return errorResult("search tool not available"), nil
	}

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: tool.Execute(query)},
		},
	}, nil
}

func (s *Server) handleUpload(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	title := request.GetString("title", "")
	content := request.GetString("content", "")
	if title == "" || content == "" {
		return errorResult("title and content are required"), nil
	}
	if len(title) > model.MaxDocumentTitleLen {
		return errorResult("title too long"), nil
	}
	if len(content) > model.MaxDocumentContentLen {
		return errorResult("content too large"), nil
	}

	pos, created := s.store.Put(title, content)
	s.logger.Info("mcp: document uploaded", "title", title, "created", created)

	resultData, _ := json.Marshal(map[string]any{
		"document_id": pos,
		"created":     created,
		"status":      "stored",
	})

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
