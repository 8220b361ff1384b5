package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codeask/codeask/internal/answer"
	"github.com/codeask/codeask/internal/embedcache"
	"github.com/codeask/codeask/internal/searcher"
	"github.com/codeask/codeask/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "codeask"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBDir is the default location for the database
	DefaultDBDir = "~/.codeask"
)

// Config carries server construction options. Generator may be nil; the
// ask_codebase tool then reports that no backend is configured.
type Config struct {
	DBPath    string
	Generator answer.Generator
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp          *server.MCPServer
	store        *storage.SQLiteStore
	cache        *embedcache.Cache
	engine       *searcher.Engine
	orchestrator *answer.Orchestrator
	generator    answer.Generator
}

// NewServer creates the MCP server, opening storage and restoring any
// persisted chunk snapshot so the engine is searchable without reindexing.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	dbDir := cfg.DBPath
	if dbDir == "" || dbDir == DefaultDBDir {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbDir = filepath.Join(home, ".codeask")
	}
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dbFile := filepath.Join(dbDir, "codeask.db")

	store, err := storage.Open(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cache := embedcache.New(ctx, store, embedcache.Options{})

	engine, err := searcher.NewEngine(cache, searcher.Options{})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if snap, err := store.LoadChunks(ctx); err != nil {
		log.Printf("mcp: chunk snapshot unavailable, starting empty: %v", err)
	} else if snap != nil && len(snap.Chunks) > 0 {
		engine.ReplaceChunks(snap.Chunks)
		if err := engine.RebuildIndexes(ctx, nil); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to rebuild indexes: %w", err)
		}
		log.Printf("mcp: restored %d chunks from snapshot", len(snap.Chunks))
	}

	orchestrator := answer.New(engine, cfg.Generator, answer.Options{})

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:          mcpServer,
		store:        store,
		cache:        cache,
		engine:       engine,
		orchestrator: orchestrator,
		generator:    cfg.Generator,
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown. The
// embedding cache flushes periodically while serving and once more on exit.
func (s *Server) Serve(ctx context.Context) error {
	s.cache.StartAutoFlush(ctx)
	defer func() {
		if err := s.Close(context.Background()); err != nil {
			log.Printf("mcp: shutdown: %v", err)
		}
	}()
	return server.ServeStdio(s.mcp)
}

// Close flushes the embedding cache and closes storage
func (s *Server) Close(ctx context.Context) error {
	flushErr := s.cache.Close(ctx)
	closeErr := s.store.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(askCodebaseTool(), s.handleAskCodebase)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
