package model

// Outcome classifies a summarizer result.
type Outcome string

const (
	OutcomeSummary     Outcome = "summary"
	OutcomeNotRelevant Outcome = "not_relevant"
	OutcomePaywall     Outcome = "paywall"
	// OutcomeUnavailable means the provider kept failing and retries ran out.
	OutcomeUnavailable Outcome = "unavailable"
)

// Summary is the tagged result of one summarization.
type Summary struct {
	Outcome Outcome `json:"outcome"`
	Text    string  `json:"text,omitempty"`
}

// OK reports whether the summary carries usable text.
func (s Summary) OK() bool {
	return s.Outcome == OutcomeSummary && s.Text != ""
}
