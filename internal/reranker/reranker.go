package reranker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/codeask/codeask/internal/index"
	"github.com/codeask/codeask/pkg/types"
)

// Default blend between the retrieval score and the heuristic score
const (
	DefaultOriginalWeight = 0.3
	DefaultRerankWeight   = 0.7
)

// Signal weights. The rule set and weights are a hand-authored contract;
// keep them stable even where they look imprecise.
const (
	termMatchWeight  = 0.4
	semanticWeight   = 0.3
	contextualWeight = 0.2
	qualityWeight    = 0.1

	pathMatchBonus = 0.1
	docFileBonus   = 0.05
	earlyFileBonus = 0.1
)

// Weights blends the original retrieval score with the heuristic score.
// Whatever is supplied is renormalized to sum to 1.
type Weights struct {
	Original float64
	Rerank   float64
}

func (w Weights) normalized() Weights {
	if w.Original < 0 || w.Rerank < 0 || w.Original+w.Rerank == 0 {
		return Weights{Original: DefaultOriginalWeight, Rerank: DefaultRerankWeight}
	}
	sum := w.Original + w.Rerank
	return Weights{Original: w.Original / sum, Rerank: w.Rerank / sum}
}

// Reranker reorders retrieval candidates by a heuristic relevance score
// combining lexical, semantic, contextual, and quality signals. It only
// reorders and truncates; it never introduces a chunk absent from the input.
type Reranker struct {
	weights Weights
}

// New creates a reranker. Zero or malformed weights fall back to the
// 0.3/0.7 default.
func New(w Weights) *Reranker {
	return &Reranker{weights: w.normalized()}
}

// Weights returns the normalized blend weights
func (r *Reranker) Weights() Weights {
	return r.weights
}

// Rerank scores and reorders the candidates for the query, truncating to
// limit. Original scores are normalized against the candidate maximum so
// the combined score stays in [0, 1].
func (r *Reranker) Rerank(query string, candidates []types.SearchResult, limit int) []types.SearchResult {
	if len(candidates) == 0 {
		return candidates
	}

	terms := queryTerms(query)
	queryType := guessQueryType(query)

	maxOriginal := 0.0
	for i := range candidates {
		if candidates[i].Score > maxOriginal {
			maxOriginal = candidates[i].Score
		}
	}

	out := make([]types.SearchResult, len(candidates))
	copy(out, candidates)

	for i := range out {
		rerank := r.score(terms, queryType, out[i].Chunk)

		origNorm := 0.0
		if maxOriginal > 0 {
			origNorm = out[i].Score / maxOriginal
		}

		combined := r.weights.Original*origNorm + r.weights.Rerank*rerank

		out[i].Reranked = true
		out[i].OriginalScore = out[i].Score
		out[i].RerankScore = rerank
		out[i].Score = combined
		out[i].Relevance = combined
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// score computes the heuristic rerank score in [0, 1]
func (r *Reranker) score(terms []string, queryType string, c *types.Chunk) float64 {
	contentLower := strings.ToLower(c.Content)
	pathLower := strings.ToLower(c.FilePath)

	score := termMatchWeight * termCoverage(terms, contentLower)
	score += semanticWeight * semanticOverlap(terms, contentLower)
	score += contextualWeight * contextualRelevance(queryType, c, contentLower, pathLower)
	score += qualityWeight * contentQuality(c, contentLower, pathLower)

	if anyTermInPath(terms, pathLower) {
		score += pathMatchBonus
	}
	if isDocFile(pathLower) {
		score += docFileBonus
	}

	return clamp01(score)
}

// termCoverage is the fraction of query terms found verbatim in the content
func termCoverage(terms []string, contentLower string) float64 {
	if len(terms) == 0 {
		return 0
	}
	found := 0
	for _, t := range terms {
		if strings.Contains(contentLower, t) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

// synonyms is a small curated table; a hit scores 0.7 against an exact 1.0
var synonyms = map[string][]string{
	"function":  {"func", "method", "procedure", "fn"},
	"method":    {"func", "function"},
	"error":     {"exception", "failure", "err", "panic"},
	"delete":    {"remove", "drop", "destroy"},
	"create":    {"make", "new", "add", "insert"},
	"fetch":     {"get", "retrieve", "load", "request"},
	"update":    {"modify", "change", "set", "patch"},
	"config":    {"configuration", "settings", "options"},
	"auth":      {"authentication", "authorization", "login"},
	"route":     {"router", "path", "endpoint", "url"},
	"test":      {"spec", "assert", "mock"},
	"component": {"widget", "element", "view"},
}

// semanticOverlap averages per-term overlap: exact token match 1.0, curated
// synonym 0.7, substring partial match 0.3
func semanticOverlap(terms []string, contentLower string) float64 {
	if len(terms) == 0 {
		return 0
	}

	contentTokens := make(map[string]struct{})
	for _, tok := range index.Tokenize(contentLower) {
		contentTokens[tok] = struct{}{}
	}

	total := 0.0
	for _, term := range terms {
		if _, ok := contentTokens[term]; ok {
			total += 1.0
			continue
		}

		if synonymPresent(term, contentTokens) {
			total += 0.7
			continue
		}

		if partialMatch(term, contentTokens) {
			total += 0.3
		}
	}

	return total / float64(len(terms))
}

func synonymPresent(term string, contentTokens map[string]struct{}) bool {
	for _, syn := range synonyms[term] {
		if _, ok := contentTokens[syn]; ok {
			return true
		}
	}
	// reverse direction: term is a synonym of a content token
	for base, syns := range synonyms {
		for _, syn := range syns {
			if syn != term {
				continue
			}
			if _, ok := contentTokens[base]; ok {
				return true
			}
		}
	}
	return false
}

func partialMatch(term string, contentTokens map[string]struct{}) bool {
	if len(term) < 4 {
		return false
	}
	for tok := range contentTokens {
		if len(tok) < 4 {
			continue
		}
		if strings.Contains(tok, term) || strings.Contains(term, tok) {
			return true
		}
	}
	return false
}

// Coarse query-type guesses for the contextual signal
var queryTypeHints = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"function", regexp.MustCompile(`(?i)\b(function|func|method|call(s|ed)?|hook)\b`)},
	{"class", regexp.MustCompile(`(?i)\b(class|struct|interface|type|component|model)\b`)},
	{"error", regexp.MustCompile(`(?i)\b(error|exception|fail(s|ed|ure)?|crash|bug)\b`)},
	{"test", regexp.MustCompile(`(?i)\b(test(s|ing)?|spec|mock|coverage)\b`)},
	{"documentation", regexp.MustCompile(`(?i)\b(doc(s|umentation)?|readme|comment|explain)\b`)},
}

func guessQueryType(query string) string {
	for _, hint := range queryTypeHints {
		if hint.pattern.MatchString(query) {
			return hint.name
		}
	}
	return ""
}

// Definition, usage, and handler heuristics on content and path
var (
	definitionPattern = regexp.MustCompile(`(?m)^\s*(export\s+)?(func|function|class|type|interface|struct|def|const|var)\b`)
	handlerPattern    = regexp.MustCompile(`(handle|Handler|on[A-Z]\w+|listener|catch|recover)`)
	testPathPattern   = regexp.MustCompile(`(_test\.|\.test\.|\.spec\.|/tests?/)`)
)

// contextualRelevance matches the query-type guess against content and path
// heuristics, plus a flat bonus when the chunk starts within the first ten
// lines of its file
func contextualRelevance(queryType string, c *types.Chunk, contentLower, pathLower string) float64 {
	score := 0.0

	switch queryType {
	case "function":
		if definitionPattern.MatchString(c.Content) {
			score += 0.6
		}
		if strings.Contains(contentLower, "(") {
			score += 0.2
		}
	case "class":
		if definitionPattern.MatchString(c.Content) {
			score += 0.6
		}
		if c.Metadata.SemanticType == types.SemanticClass || c.Metadata.SemanticType == types.SemanticTypeDecl {
			score += 0.2
		}
	case "error":
		if handlerPattern.MatchString(c.Content) {
			score += 0.6
		}
		if strings.Contains(contentLower, "error") {
			score += 0.2
		}
	case "test":
		if testPathPattern.MatchString(pathLower) {
			score += 0.6
		}
		if strings.Contains(contentLower, "assert") || strings.Contains(contentLower, "expect") {
			score += 0.2
		}
	case "documentation":
		if isDocFile(pathLower) {
			score += 0.6
		}
		if c.Metadata.SemanticType == types.SemanticDocumentation {
			score += 0.2
		}
	}

	if c.StartLine <= 10 {
		score += earlyFileBonus
	}

	return clamp01(score)
}

// contentQuality rewards documentation files, comment density, and
// definition-like content; penalizes very short or very long chunks
func contentQuality(c *types.Chunk, contentLower, pathLower string) float64 {
	score := 0.5

	if isDocFile(pathLower) {
		score += 0.3
	}
	if commentDensity(c.Content) > 0.1 {
		score += 0.2
	}
	if definitionPattern.MatchString(c.Content) {
		score += 0.2
	}

	if len(c.Content) < 50 {
		score -= 0.3
	}
	if len(c.Content) > 4000 {
		score -= 0.2
	}

	return clamp01(score)
}

func commentDensity(content string) float64 {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return 0
	}
	comments := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			comments++
		}
	}
	return float64(comments) / float64(len(lines))
}

func anyTermInPath(terms []string, pathLower string) bool {
	for _, t := range terms {
		if strings.Contains(pathLower, t) {
			return true
		}
	}
	return false
}

func isDocFile(pathLower string) bool {
	return strings.HasSuffix(pathLower, ".md") ||
		strings.HasSuffix(pathLower, ".txt") ||
		strings.HasSuffix(pathLower, ".rst") ||
		strings.Contains(pathLower, "readme") ||
		strings.Contains(pathLower, "/docs/")
}

// queryTerms returns the distinct tokenized query terms
func queryTerms(query string) []string {
	seen := make(map[string]struct{})
	terms := make([]string, 0)
	for _, tok := range index.Tokenize(query) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
