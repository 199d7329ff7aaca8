package model

// GenerateResult is the outcome of one pipeline invocation.
type GenerateResult struct {
	// SQL is the final query text. Empty when the run was cancelled or no
	// query was derivable from the available context.
	SQL string `json:"sql"`

	// Cancelled is set when the clean-question stage judged the question
	// non-answerable via data query. CancelReason carries the model's
	// human-readable explanation.
	Cancelled    bool   `json:"cancelled"`
	CancelReason string `json:"cancel_reason,omitempty"`

	// Message explains a non-cancellation empty result ("no query derivable").
	Message string `json:"message,omitempty"`

	CleanedQuestion string         `json:"cleaned_question"`
	Stages          []StageOutcome `json:"stages"`
}

// RetrievalNode is one scored passage returned by the retrieval service.
// Nodes live for the duration of a single run; they are retained so SQL
// cleanup can rebuild its context from exactly what the generator saw.
type RetrievalNode struct {
	Text       string            `json:"text"`
	Score      float64           `json:"score"`
	Collection string            `json:"collection"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
