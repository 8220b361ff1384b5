package chunker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeask/codeask/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestChunkDir_WindowsAndIDs(t *testing.T) {
	dir := t.TempDir()

	var sb strings.Builder
	for i := 1; i <= 100; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	writeFile(t, dir, "big.go", sb.String())

	res, err := ChunkDir(context.Background(), dir, Options{WindowLines: 40})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 3)

	byID := map[string]*types.Chunk{}
	for _, c := range res.Chunks {
		byID[c.ID] = c
	}

	first := byID["big.go:1-40"]
	require.NotNil(t, first)
	assert.Equal(t, 1, first.StartLine)
	assert.Equal(t, 40, first.EndLine)
	assert.Equal(t, "go", first.Language)
	assert.NotEmpty(t, first.ContentHash)
	assert.True(t, strings.HasPrefix(first.Content, "line 1\n"))

	require.NotNil(t, byID["big.go:41-80"])
	require.NotNil(t, byID["big.go:81-101"])
}

func TestChunkDir_SemanticTypes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "handler.go", "package main\n\nfunc Handle() {}\n")
	writeFile(t, dir, "README.md", "# Project\n\nDocs here.\n")
	writeFile(t, dir, "config.yaml", "key: value\n")

	res, err := ChunkDir(context.Background(), dir, Options{})
	require.NoError(t, err)

	byPath := map[string]types.SemanticType{}
	for _, c := range res.Chunks {
		byPath[c.FilePath] = c.Metadata.SemanticType
	}

	assert.Equal(t, types.SemanticFunction, byPath["handler.go"])
	assert.Equal(t, types.SemanticDocumentation, byPath["README.md"])
	assert.Equal(t, types.SemanticConfig, byPath["config.yaml"])
}

func TestChunkDir_SkipsHiddenVendorAndUnknown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.go", "package main\n")
	writeFile(t, dir, ".git/config.go", "package hidden\n")
	writeFile(t, dir, "node_modules/dep/index.js", "module.exports = {}\n")
	writeFile(t, dir, "vendor/lib/lib.go", "package lib\n")
	writeFile(t, dir, "image.bin", "binary")

	res, err := ChunkDir(context.Background(), dir, Options{})
	require.NoError(t, err)

	for _, c := range res.Chunks {
		assert.Equal(t, "keep.go", c.FilePath)
	}
	assert.Equal(t, 1, res.FilesRead)
}

func TestChunkDir_SkipsBinaryContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blob.go", "package x\x00\x00garbage")
	writeFile(t, dir, "ok.go", "package x\n")

	res, err := ChunkDir(context.Background(), dir, Options{})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "ok.go", res.Chunks[0].FilePath)
	assert.Empty(t, res.FileErrors)
}

func TestChunkDir_OversizedFileRecordedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "huge.go", strings.Repeat("x", MaxFileBytes+1))
	writeFile(t, dir, "ok.go", "package x\n")

	res, err := ChunkDir(context.Background(), dir, Options{})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	require.Len(t, res.FileErrors, 1)
	assert.ErrorIs(t, res.FileErrors[0], types.ErrChunkOversized)
}

func TestChunkDir_ChunksAreValid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")
	writeFile(t, dir, "sub/b.ts", "export function b() {}\n")

	res, err := ChunkDir(context.Background(), dir, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Chunks)

	for _, c := range res.Chunks {
		assert.NoError(t, c.Validate())
	}

	paths := map[string]bool{}
	for _, c := range res.Chunks {
		paths[c.FilePath] = true
	}
	assert.True(t, paths["sub/b.ts"])
}
