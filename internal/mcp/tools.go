package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codeask/codeask/internal/answer"
	"github.com/codeask/codeask/internal/chunker"
	"github.com/codeask/codeask/internal/searcher"
	"github.com/codeask/codeask/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeNotIndexed    = -32001 // No chunks indexed yet
	ErrorCodeEmptyQuery    = -32002 // Query parameter is empty
	ErrorCodeNoGenerator   = -32003 // No generation backend configured
)

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	replace := getBoolDefault(args, "replace", false)
	windowLines := getIntDefault(args, "window_lines", chunker.DefaultWindowLines)

	started := time.Now()
	chunked, err := chunker.ChunkDir(ctx, path, chunker.Options{WindowLines: windowLines})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "chunking failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var accepted int
	if replace {
		accepted = s.engine.ReplaceChunks(chunked.Chunks)
	} else {
		accepted = s.engine.AddChunks(chunked.Chunks)
	}

	if err := s.engine.RebuildIndexes(ctx, nil); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "index rebuild failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	chunks := s.engine.Chunks()
	snap := &storage.ChunkSnapshot{
		Chunks:      chunks,
		TotalChunks: len(chunks),
		SavedAt:     time.Now(),
	}
	if err := s.store.SaveChunks(ctx, snap); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "snapshot save failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := s.cache.Persist(ctx); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "cache flush failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":        true,
		"files_read":     chunked.FilesRead,
		"chunks_created": len(chunked.Chunks),
		"chunks_indexed": accepted,
		"total_chunks":   len(chunks),
		"duration_ms":    time.Since(started).Milliseconds(),
	}
	if n := len(chunked.FileErrors); n > 0 {
		msgs := make([]string, 0, 5)
		for _, e := range chunked.FileErrors {
			if len(msgs) == 5 {
				break
			}
			msgs = append(msgs, e.Error())
		}
		response["errors"] = msgs
		response["error_count"] = n
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	if s.engine.ChunkCount() == 0 {
		return nil, newMCPError(ErrorCodeNotIndexed, "no codebase indexed yet; use index_codebase first", nil)
	}

	req := searcher.SearchRequest{
		Query:     query,
		Limit:     limit,
		Rerank:    getBoolDefault(args, "rerank", true),
		Diversify: getBoolDefault(args, "diversify", false),
		Filters:   parseFilters(args),
	}

	results, err := s.engine.Search(ctx, req)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	formatted := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, map[string]interface{}{
			"chunk_id":  r.Chunk.ID,
			"file":      r.Chunk.LineRange(),
			"language":  r.Chunk.Language,
			"type":      string(r.Chunk.Metadata.SemanticType),
			"score":     r.Score,
			"relevance": r.Relevance,
			"reranked":  r.Reranked,
			"content":   r.Chunk.Content,
		})
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": formatted,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAskCodebase handles the ask_codebase tool invocation
func (s *Server) handleAskCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	question, ok := args["question"].(string)
	if !ok || question == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "question parameter is required", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	if s.generator == nil {
		return nil, newMCPError(ErrorCodeNoGenerator, "no generation backend configured", nil)
	}
	if s.engine.ChunkCount() == 0 {
		return nil, newMCPError(ErrorCodeNotIndexed, "no codebase indexed yet; use index_codebase first", nil)
	}

	msg := s.orchestrator.Ask(ctx, question, parseHistory(args))

	citations := make([]map[string]interface{}, 0, len(msg.Citations))
	for _, c := range msg.Citations {
		citations = append(citations, map[string]interface{}{
			"file":       c.FilePath,
			"start_line": c.StartLine,
			"end_line":   c.EndLine,
			"snippet":    c.Snippet,
		})
	}

	response := map[string]interface{}{
		"id":         msg.ID,
		"answer":     msg.Content,
		"confidence": msg.Confidence,
		"intent":     string(msg.Intent.Type),
		"citations":  citations,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.engine.Status()

	response := map[string]interface{}{
		"chunks":          status.ChunkCount,
		"indexed_chunks":  status.IndexedChunks,
		"query_cache_len": status.QueryCacheLen,
		"embed_cache": map[string]interface{}{
			"entries": s.cache.Len(),
			"hits":    status.EmbedStats.Hits,
			"misses":  status.EmbedStats.Misses,
		},
		"generator_configured": s.generator != nil,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// parseFilters extracts the optional filters object
func parseFilters(args map[string]interface{}) searcher.Filters {
	raw, _ := args["filters"].(map[string]interface{})
	if raw == nil {
		return searcher.Filters{}
	}
	return searcher.Filters{
		PathContains:  getStringDefault(raw, "path_contains", ""),
		Language:      getStringDefault(raw, "language", ""),
		SemanticTypes: stringSlice(raw, "semantic_types"),
		Tags:          stringSlice(raw, "tags"),
	}
}

// parseHistory extracts optional prior turns
func parseHistory(args map[string]interface{}) []answer.Turn {
	raw, _ := args["history"].([]interface{})
	turns := make([]answer.Turn, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		q, _ := m["question"].(string)
		a, _ := m["answer"].(string)
		if q == "" && a == "" {
			continue
		}
		turns = append(turns, answer.Turn{Question: q, Answer: a})
	}
	return turns
}

func stringSlice(args map[string]interface{}, key string) []string {
	raw, _ := args[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is an accessible directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
