package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a codebase directory to make it searchable and askable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the codebase root",
				},
				"replace": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, drop previously indexed chunks before adding this tree",
					"default":     false,
				},
				"window_lines": map[string]interface{}{
					"type":        "integer",
					"description": "Lines per chunk window",
					"default":     40,
					"minimum":     10,
					"maximum":     200,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search the indexed codebase with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"rerank": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, rerank candidates with heuristic relevance scoring",
					"default":     true,
				},
				"diversify": map[string]interface{}{
					"type":        "boolean",
					"description": "If true and rerank is false, diversify results with MMR selection",
					"default":     false,
				},
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties": map[string]interface{}{
						"path_contains": map[string]interface{}{
							"type":        "string",
							"description": "Substring that must appear in the chunk's file path",
						},
						"language": map[string]interface{}{
							"type":        "string",
							"description": "Language label (go, typescript, python, ...)",
						},
						"semantic_types": map[string]interface{}{
							"type":        "array",
							"description": "Filter by semantic type",
							"items": map[string]interface{}{
								"type": "string",
								"enum": []string{"function", "class", "type", "documentation", "config", "code"},
							},
						},
						"tags": map[string]interface{}{
							"type":        "array",
							"description": "Metadata tags that must all be present",
							"items": map[string]interface{}{
								"type": "string",
							},
						},
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// askCodebaseTool returns the tool definition for ask_codebase
func askCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_codebase",
		Description: "Ask a natural language question about the indexed codebase and get a cited answer",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to answer",
				},
				"history": map[string]interface{}{
					"type":        "array",
					"description": "Prior conversation turns, oldest first",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"question": map[string]interface{}{"type": "string"},
							"answer":   map[string]interface{}{"type": "string"},
						},
					},
				},
			},
			Required: []string{"question"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index and cache status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
