package searcher

import (
	"strings"

	"github.com/codeask/codeask/pkg/types"
)

// Filters restricts search results by chunk attributes. Every set field
// must match (AND); an absent field passes everything. Within Tags, one
// matching tag is enough.
type Filters struct {
	PathContains  string
	Language      string
	SemanticTypes []string
	Tags          []string
}

// Empty reports whether no filter fields are set
func (f Filters) Empty() bool {
	return f.PathContains == "" && f.Language == "" &&
		len(f.SemanticTypes) == 0 && len(f.Tags) == 0
}

// Match reports whether the chunk passes every set filter
func (f Filters) Match(c *types.Chunk) bool {
	if f.PathContains != "" && !strings.Contains(strings.ToLower(c.FilePath), strings.ToLower(f.PathContains)) {
		return false
	}
	if f.Language != "" && !strings.EqualFold(c.Language, f.Language) {
		return false
	}
	if len(f.SemanticTypes) > 0 && !containsFold(f.SemanticTypes, string(c.Metadata.SemanticType)) {
		return false
	}
	if len(f.Tags) > 0 && !anyTagMatch(c.Metadata.Tags, f.Tags) {
		return false
	}
	return true
}

// anyTagMatch reports whether the chunk carries at least one requested tag
func anyTagMatch(have, want []string) bool {
	for _, w := range want {
		if containsFold(have, w) {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
