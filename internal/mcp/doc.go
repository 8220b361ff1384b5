// Package mcp exposes the retrieval engine and answer orchestrator as MCP
// tools over stdio.
package mcp
