package domain

import "time"

// ModelInfo records which backend produced a suggestion.
type ModelInfo struct {
	Provider      string
	Model         string
	PromptVersion string
	LatencyMs     int64
}

// Suggestion is the immutable outcome of one triage run.
type Suggestion struct {
	ID                string
	TicketID          string
	PredictedCategory TicketCategory
	ArticleIDs        []string
	DraftReply        string
	Confidence        float64
	AutoClosed        bool
	ModelInfo         ModelInfo
	CreatedAt         time.Time
}
