// Package mcp provides an MCP (Model Context Protocol) server for semdex.
// This allows AI agents to use semdex as a native tool.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/semdex/semdex/config"
	"github.com/semdex/semdex/embedder"
	"github.com/semdex/semdex/indexer"
	"github.com/semdex/semdex/store"
)

// Server wraps the MCP server with semdex functionality.
type Server struct {
	mcpServer   *server.MCPServer
	projectRoot string
}

// SearchResult is a lightweight struct for MCP output.
type SearchResult struct {
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float32 `json:"score"`
	Type      string  `json:"type,omitempty"`
	Name      string  `json:"name,omitempty"`
	Content   string  `json:"content,omitempty"`
}

// IndexStatus reports whether an index exists and how it is configured.
type IndexStatus struct {
	Indexed  bool   `json:"indexed"`
	State    string `json:"state"`
	Backend  string `json:"backend"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// NewServer creates a new MCP server for semdex.
func NewServer(projectRoot string) (*Server, error) {
	s := &Server{
		projectRoot: projectRoot,
	}

	s.mcpServer = server.NewMCPServer(
		"semdex",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	searchTool := mcp.NewTool("semdex_search",
		mcp.WithDescription("Semantic code search. Search the codebase using natural language queries. Returns the most relevant code blocks with file paths, line numbers, and similarity scores."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language search query (e.g., 'user authentication flow', 'error handling middleware')"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
		mcp.WithBoolean("compact",
			mcp.Description("Return minimal output without content (default: false)"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearch)

	indexStatusTool := mcp.NewTool("semdex_index_status",
		mcp.WithDescription("Check whether a semantic index exists for this project and how it is configured."),
	)
	s.mcpServer.AddTool(indexStatusTool, s.handleIndexStatus)

	reindexTool := mcp.NewTool("semdex_reindex",
		mcp.WithDescription("Rebuild the semantic index for the project. Can take a while on large codebases."),
	)
	s.mcpServer.AddTool(reindexTool, s.handleReindex)
}

// openManager builds a fresh manager per request; MCP requests are rare
// enough that connection reuse is not worth holding backends open.
func (s *Server) openManager(ctx context.Context) (*indexer.Manager, *config.Config, func(), error) {
	cfg, err := config.Load(s.projectRoot)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	storeCfg := cfg.Store
	if storeCfg.Backend == "qdrant" && storeCfg.Qdrant.Collection == "" {
		storeCfg.Qdrant.Collection = store.SanitizeCollectionName(s.projectRoot)
	}

	st, err := store.New(ctx, storeCfg)
	if err != nil {
		emb.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	closer := func() {
		st.Close()
		emb.Close()
	}

	return indexer.NewManager(s.projectRoot, cfg, st, emb), cfg, closer, nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := request.GetInt("limit", 10)
	if limit < 1 {
		limit = 10
	}
	compact := request.GetBool("compact", false)

	manager, cfg, closeAll, err := s.openManager(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer closeAll()

	results, err := manager.Search(ctx, query, limit, cfg.Search.MinScore)
	if err != nil {
		if errors.Is(err, indexer.ErrNotIndexed) {
			return mcp.NewToolResultError("no index found; run semdex_reindex or 'semdex index' first"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			FilePath:  r.Payload.FilePath,
			StartLine: r.Payload.StartLine,
			EndLine:   r.Payload.EndLine,
			Score:     r.Score,
			Type:      r.Payload.Type,
			Name:      r.Payload.Name,
		}
		if !compact {
			out[i].Content = r.Payload.Content
		}
	}

	jsonBytes, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	manager, cfg, closeAll, err := s.openManager(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer closeAll()

	exists, err := manager.StoreExists(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to check index: %v", err)), nil
	}

	status := IndexStatus{
		Indexed:  exists,
		State:    string(manager.State()),
		Backend:  cfg.Store.Backend,
		Provider: cfg.Embedder.Provider,
		Model:    cfg.Embedder.Model,
	}

	jsonBytes, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleReindex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	manager, _, closeAll, err := s.openManager(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer closeAll()

	if err := manager.IndexDirectory(ctx, nil); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("indexing failed: %v", err)), nil
	}

	return mcp.NewToolResultText("index rebuilt"), nil
}

// Serve starts the MCP server on stdio. Blocks until the client disconnects.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}
