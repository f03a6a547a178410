package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// TriageRequest starts a synchronous triage run.
type TriageRequest struct {
	TicketID string `json:"ticket_id"`
	TraceID  string `json:"trace_id"`
}

// TriageResponse identifies a completed run.
type TriageResponse struct {
	TraceID      string `json:"trace_id"`
	SuggestionID string `json:"suggestion_id"`
}

// ModelInfoResponse describes the backend that produced a suggestion.
type ModelInfoResponse struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	PromptVersion string `json:"prompt_version"`
	LatencyMs     int64  `json:"latency_ms"`
}

// SuggestionResponse is a stored triage outcome.
type SuggestionResponse struct {
	ID                string                `json:"id"`
	TicketID          string                `json:"ticket_id"`
	PredictedCategory domain.TicketCategory `json:"predicted_category"`
	ArticleIDs        []string              `json:"article_ids"`
	DraftReply        string                `json:"draft_reply"`
	Confidence        float64               `json:"confidence"`
	AutoClosed        bool                  `json:"auto_closed"`
	ModelInfo         ModelInfoResponse     `json:"model_info"`
	CreatedAt         time.Time             `json:"created_at"`
}

// NewSuggestion maps a suggestion.
func NewSuggestion(s *domain.Suggestion) SuggestionResponse {
	ids := s.ArticleIDs
	if ids == nil {
		ids = []string{}
	}
	return SuggestionResponse{
		ID:                s.ID,
		TicketID:          s.TicketID,
		PredictedCategory: s.PredictedCategory,
		ArticleIDs:        ids,
		DraftReply:        s.DraftReply,
		Confidence:        s.Confidence,
		AutoClosed:        s.AutoClosed,
		ModelInfo: ModelInfoResponse{
			Provider:      s.ModelInfo.Provider,
			Model:         s.ModelInfo.Model,
			PromptVersion: s.ModelInfo.PromptVersion,
			LatencyMs:     s.ModelInfo.LatencyMs,
		},
		CreatedAt: s.CreatedAt,
	}
}
