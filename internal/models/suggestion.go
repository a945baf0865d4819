package models

// SuggestionSource records who picked a substitute.
type SuggestionSource string

const (
	SuggestionSourceAI    SuggestionSource = "ai"
	SuggestionSourceRules SuggestionSource = "rules"
)

// SuggestionRequest is the context handed to a recommender.
type SuggestionRequest struct {
	Candidates []Teacher
	Subject    string
	Day        string
	Period     int
}

// Suggestion is a recommended substitute with a short justification.
type Suggestion struct {
	SubstituteID   int64            `json:"substituteTeacherId"`
	SubstituteName string           `json:"substituteTeacherName"`
	Reasoning      string           `json:"reasoning"`
	Source         SuggestionSource `json:"source"`
	Candidates     []Teacher        `json:"candidates,omitempty"`
}
