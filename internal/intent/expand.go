package intent

import "github.com/codeask/codeask/pkg/types"

// maxExpansions bounds the derived query set, original included
const maxExpansions = 6

// fileExtensions tried for file-intent keyword variants
var fileExtensions = []string{".ts", ".js", ".go"}

// Expand derives additional query strings from type-specific templates.
// The result is deduplicated, the original query always comes first, and
// the set is capped at six. Each expansion drives an independent retrieval
// call; results are merged before downstream ranking.
func Expand(query string, qi types.QueryIntent) []string {
	out := make([]string, 0, maxExpansions)
	seen := make(map[string]struct{})

	add := func(q string) {
		if len(out) >= maxExpansions || q == "" {
			return
		}
		if _, ok := seen[q]; ok {
			return
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}

	add(query)

	switch qi.Type {
	case types.IntentSymbol:
		for _, entity := range qi.Entities {
			add(entity)
			add("export " + entity)
			add("import " + entity)
		}

	case types.IntentHowTo:
		add(query + " example")
		add(query + " usage")
		add(query + " implement")
		for _, kw := range qi.Keywords {
			add("how to " + kw)
		}

	case types.IntentError:
		add(query + " error")
		add(query + " exception")
		add(query + " try catch")
		for _, kw := range qi.Keywords {
			add(kw + " error")
		}

	case types.IntentRoute:
		add(query + " route")
		add(query + " router")
		add(query + " path")
		add(query + " page")

	case types.IntentFile:
		for _, kw := range qi.Keywords {
			add(kw + " file")
			for _, ext := range fileExtensions {
				add(kw + ext)
			}
		}
	}

	return out
}
