package intent

import (
	"regexp"

	"github.com/codeask/codeask/internal/index"
	"github.com/codeask/codeask/pkg/types"
)

// Extraction caps
const (
	maxEntities = 5
	maxKeywords = 10

	// repeatWeight scores extra matches beyond a pattern's first occurrence
	repeatWeight = 0.2

	// defaultBias is the forced explanation score when nothing matches
	defaultBias = 0.5
)

// rule binds an intent type to its ordered pattern list. Rules are a
// declarative table: classification walks them in order, and ties between
// equal scores resolve to the earlier rule.
type rule struct {
	intent   types.IntentType
	patterns []*regexp.Regexp
}

var rules = []rule{
	{
		intent: types.IntentSymbol,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(function|func|method|class|interface|struct|component|variable|hook|type)\b`),
			regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*[a-z][a-zA-Z0-9]*\b`),
			regexp.MustCompile(`\buse[A-Z]\w*\b`),
			regexp.MustCompile(`(?i)\b(export(s|ed)?|import(s|ed)?|defined?|declaration)\b`),
		},
	},
	{
		intent: types.IntentHowTo,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bhow\s+(do|to|can|does|would)\b`),
			regexp.MustCompile(`(?i)\b(example|usage|sample|demonstrate)\b`),
			regexp.MustCompile(`(?i)\b(implement|integrate|set\s*up|configure)\b`),
			regexp.MustCompile(`(?i)\b(tutorial|guide|step)\b`),
		},
	},
	{
		intent: types.IntentError,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(error|exception|panic)\b`),
			regexp.MustCompile(`(?i)\b(fail(s|ed|ing|ure)?|crash(es|ed)?|broken)\b`),
			regexp.MustCompile(`(?i)\b(bug|issue|problem|wrong)\b`),
			regexp.MustCompile(`(?i)\bnot\s+work(s|ing)?\b`),
			regexp.MustCompile(`(?i)\btry\s*catch\b`),
		},
	},
	{
		intent: types.IntentRoute,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(route(r|s)?|routing)\b`),
			regexp.MustCompile(`(?i)\b(endpoint|url|page|navigation|redirect)\b`),
			regexp.MustCompile(`(?i)\bpath(s)?\b`),
		},
	},
	{
		intent: types.IntentFile,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b[\w-]+\.[A-Za-z]{1,4}\b`),
			regexp.MustCompile(`(?i)\b(file|folder|directory|module)\b`),
			regexp.MustCompile(`(?i)\bwhere\s+is\b`),
		},
	},
	{
		intent: types.IntentExplanation,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bwhat\s+(is|does|are)\b`),
			regexp.MustCompile(`(?i)\b(explain|describe|understand|meaning|purpose)\b`),
			regexp.MustCompile(`(?i)\bwhy\b`),
		},
	},
}

// Entity extraction: symbol-context phrases (captured), dotted filenames,
// capitalized identifiers, hook-like identifiers
var entityPhrasePattern = regexp.MustCompile(`(?i)(?:function|class|method|component|hook|variable|type)\s+([A-Za-z_]\w+)`)

var entityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[\w-]+\.[A-Za-z]{1,4}\b`),
	regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]{2,}\b`),
	regexp.MustCompile(`\buse[A-Z]\w*\b`),
}

// Classifier scores a query against the rule table
type Classifier struct{}

// NewClassifier creates a classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify scores the query against every intent type's patterns.
//
// Raw score per type = distinct matching patterns + 0.2 x extra repeated
// matches beyond each pattern's first occurrence. Scores are normalized by
// the maximum raw score; if every raw score is 0, the explanation type is
// forced to 0.5 as a default bias. The winner is the argmax, ties broken by
// rule-table order; confidence is the winner's normalized score.
func (c *Classifier) Classify(query string) types.QueryIntent {
	raw := make([]float64, len(rules))

	maxRaw := 0.0
	for i, r := range rules {
		distinct := 0
		extra := 0
		for _, p := range r.patterns {
			matches := p.FindAllStringIndex(query, -1)
			if len(matches) == 0 {
				continue
			}
			distinct++
			extra += len(matches) - 1
		}
		raw[i] = float64(distinct) + repeatWeight*float64(extra)
		if raw[i] > maxRaw {
			maxRaw = raw[i]
		}
	}

	norm := make([]float64, len(rules))
	if maxRaw > 0 {
		for i := range raw {
			norm[i] = raw[i] / maxRaw
		}
	} else {
		for i, r := range rules {
			if r.intent == types.IntentExplanation {
				norm[i] = defaultBias
			}
		}
	}

	winner := 0
	for i := 1; i < len(norm); i++ {
		if norm[i] > norm[winner] {
			winner = i
		}
	}

	return types.QueryIntent{
		Type:       rules[winner].intent,
		Confidence: norm[winner],
		Entities:   ExtractEntities(query),
		Keywords:   ExtractKeywords(query),
	}
}

// ExtractEntities pulls likely symbol and file names from the query:
// deduplicated, longer than two characters, capped at five
func ExtractEntities(query string) []string {
	seen := make(map[string]struct{})
	entities := make([]string, 0, maxEntities)

	add := func(s string) {
		if len(entities) >= maxEntities || len(s) <= 2 {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		entities = append(entities, s)
	}

	for _, m := range entityPhrasePattern.FindAllStringSubmatch(query, -1) {
		add(m[1])
	}
	for _, p := range entityPatterns {
		for _, m := range p.FindAllString(query, -1) {
			add(m)
		}
	}

	return entities
}

// ExtractKeywords tokenizes the query the same way the indices do, capped
// at ten keywords
func ExtractKeywords(query string) []string {
	seen := make(map[string]struct{})
	keywords := make([]string, 0, maxKeywords)
	for _, tok := range index.Tokenize(query) {
		if len(keywords) >= maxKeywords {
			break
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}
