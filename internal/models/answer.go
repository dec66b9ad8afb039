package models

// Outcome says how a question was resolved.
type Outcome string

const (
	// OutcomeAnswered means retrieval and generation both succeeded.
	OutcomeAnswered Outcome = "answered"
	// OutcomeRetrievalFailed means no context could be retrieved; nothing was generated.
	OutcomeRetrievalFailed Outcome = "retrieval_failed"
	// OutcomeGenerationFailed means the language model call failed.
	OutcomeGenerationFailed Outcome = "generation_failed"
)

// Answer is the result of a blocking question.
// On failure Text carries the user-facing error message and Sources is empty.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
	Outcome Outcome  `json:"outcome"`
	Err     error    `json:"-"`
}

// OK reports whether the answer was generated successfully.
func (a *Answer) OK() bool {
	return a.Outcome == OutcomeAnswered
}
