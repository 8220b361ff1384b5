package chunker

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codeask/codeask/pkg/types"
)

// Chunking defaults
const (
	DefaultWindowLines = 40
	DefaultWorkers     = 4

	// MaxFileBytes above which a source file is skipped outright
	MaxFileBytes = 512 * 1024

	// binarySniffBytes examined for NUL bytes to detect binary files
	binarySniffBytes = 8000
)

// languageByExt maps file extensions to language labels. Unknown
// extensions are skipped.
var languageByExt = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".py":   "python",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cs":   "csharp",
	".php":  "php",
	".sh":   "shell",
	".sql":  "sql",
	".md":   "markdown",
	".txt":  "text",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".html": "html",
	".css":  "css",
}

// skippedDirs are never descended into
var skippedDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
}

var definitionLine = regexp.MustCompile(`(?m)^\s*(export\s+)?(func|function|class|type|interface|struct|def|impl)\b`)

// Options configures directory chunking. Zero values take defaults.
type Options struct {
	WindowLines int
	Workers     int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.WindowLines <= 0 {
		out.WindowLines = DefaultWindowLines
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	return out
}

// Result carries the chunks plus the per-file failures that were skipped
// rather than aborting the walk
type Result struct {
	Chunks     []*types.Chunk
	FilesRead  int
	FileErrors []error
}

// ChunkDir walks root and splits every recognized source file into
// fixed-size line windows. Hidden directories, dependency trees, oversized
// files, and binary files are skipped. Files are read by a bounded worker
// pool; an unreadable file is recorded as an error in the result, never
// fatal. Chunk IDs are "relpath:start-end", stable across runs over the
// same tree.
func ChunkDir(ctx context.Context, root string, opts Options) (*Result, error) {
	o := opts.withDefaults()

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if _, skip := skippedDirs[name]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if _, known := languageByExt[strings.ToLower(filepath.Ext(name))]; !known {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	var mu sync.Mutex
	res := &Result{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)
	for _, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			chunks, err := chunkFile(root, path, o.WindowLines)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.FileErrors = append(res.FileErrors, err)
				return nil
			}
			res.FilesRead++
			res.Chunks = append(res.Chunks, chunks...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// chunkFile reads one file and windows it into chunks
func chunkFile(root, path string, windowLines int) ([]*types.Chunk, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrChunkUnreadable, path, err)
	}
	if info.Size() > MaxFileBytes {
		return nil, fmt.Errorf("%w: %s: %d bytes", types.ErrChunkOversized, path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrChunkUnreadable, path, err)
	}
	if isBinary(data) {
		return nil, nil
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	language := languageByExt[strings.ToLower(filepath.Ext(path))]

	lines := strings.Split(string(data), "\n")
	chunks := make([]*types.Chunk, 0, len(lines)/windowLines+1)

	for start := 0; start < len(lines); start += windowLines {
		end := start + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		content := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(content) == "" {
			continue
		}

		c := &types.Chunk{
			ID:        fmt.Sprintf("%s:%d-%d", rel, start+1, end),
			Content:   content,
			FilePath:  rel,
			StartLine: start + 1,
			EndLine:   end,
			Language:  language,
			Metadata: types.ChunkMetadata{
				SemanticType: classify(language, content),
			},
		}
		c.ComputeContentHash()
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func classify(language, content string) types.SemanticType {
	switch language {
	case "markdown", "text":
		return types.SemanticDocumentation
	case "json", "yaml", "toml":
		return types.SemanticConfig
	}
	if definitionLine.MatchString(content) {
		return types.SemanticFunction
	}
	return types.SemanticCode
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffBytes {
		n = binarySniffBytes
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}
