package types

// IntentType is the classified purpose of a user query.
// The declaration order here is the fixed tie-break order for classification.
type IntentType string

const (
	IntentSymbol      IntentType = "symbol"
	IntentHowTo       IntentType = "howto"
	IntentError       IntentType = "error"
	IntentRoute       IntentType = "route"
	IntentFile        IntentType = "file"
	IntentExplanation IntentType = "explanation"
)

// IntentTypes lists every intent type in tie-break order
func IntentTypes() []IntentType {
	return []IntentType{
		IntentSymbol,
		IntentHowTo,
		IntentError,
		IntentRoute,
		IntentFile,
		IntentExplanation,
	}
}

// QueryIntent is the transient classification of a single query
type QueryIntent struct {
	Type       IntentType
	Confidence float64 // in [0, 1]
	Entities   []string
	Keywords   []string
}
