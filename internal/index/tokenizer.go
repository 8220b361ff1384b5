package index

import (
	"regexp"
	"strings"
)

// nonWordPattern strips anything that is not a word character
var nonWordPattern = regexp.MustCompile(`\W+`)

// stopWords are dropped during tokenization. Tokens of length <= 2 are
// dropped regardless, so only longer stop-words need to be listed.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "has": {}, "have": {}, "had": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "with": {},
	"from": {}, "they": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"how": {}, "why": {}, "who": {}, "does": {}, "did": {}, "was": {},
	"were": {}, "been": {}, "being": {}, "into": {}, "about": {},
	"there": {}, "here": {}, "then": {}, "than": {}, "them": {},
	"its": {}, "our": {}, "your": {}, "any": {}, "some": {},
}

// Tokenize lower-cases the text, strips non-word characters, splits on
// whitespace, and drops stop-words and tokens of length <= 2.
func Tokenize(text string) []string {
	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(text), " ")

	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}

	return tokens
}

// uniqueTokens returns the distinct tokens of text in first-seen order
func uniqueTokens(text string) []string {
	seen := make(map[string]struct{})
	unique := make([]string, 0)
	for _, tok := range Tokenize(text) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		unique = append(unique, tok)
	}
	return unique
}
