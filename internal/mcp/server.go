package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/metascan/metascan/internal/cache"
	"github.com/metascan/metascan/internal/catalog"
	"github.com/metascan/metascan/internal/extractor"
	"github.com/metascan/metascan/internal/memory"
	"github.com/metascan/metascan/internal/scanner"
)

const (
	// ServerName is the MCP server name
	ServerName = "metascan-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default location for the scan catalog
	DefaultDBPath = "~/.metascan"
)

// Server wraps the MCP server with the extraction pipeline.
type Server struct {
	mcp         *server.MCPServer
	catalog     catalog.Catalog
	extractor   *extractor.Extractor
	coordinator *scanner.Coordinator
	monitor     *memory.Monitor
	logger      *zap.Logger
}

// NewServer creates a new MCP server instance. The cache, memory monitor
// and worker pool are process-wide: every tool invocation shares them.
func NewServer(dbPath string, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dbPath == "" || dbPath == DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".metascan")
	}
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dbFile := filepath.Join(dbPath, "metascan.db")

	cat, err := catalog.NewSQLiteCatalog(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	resultCache := cache.New(cache.Config{Logger: logger})
	monitor := memory.NewMonitor(memory.Config{Cache: resultCache, Logger: logger})
	ext := extractor.New(extractor.Config{
		Cache:   resultCache,
		Monitor: monitor,
		Logger:  logger,
	})
	coord := scanner.NewCoordinator(scanner.CoordinatorConfig{
		Scanner: scanner.New(scanner.Config{Extractor: ext, Logger: logger}),
		Monitor: monitor,
		Catalog: cat,
		Logger:  logger,
	})

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:         mcpServer,
		catalog:     cat,
		extractor:   ext,
		coordinator: coord,
		monitor:     monitor,
		logger:      logger,
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.catalog.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(scanDirectoryTool(), s.handleScanDirectory)
	s.mcp.AddTool(extractFileTool(), s.handleExtractFile)
	s.mcp.AddTool(listScansTool(), s.handleListScans)
	s.mcp.AddTool(cacheStatsTool(), s.handleCacheStats)
	s.mcp.AddTool(clearCacheTool(), s.handleClearCache)
}
