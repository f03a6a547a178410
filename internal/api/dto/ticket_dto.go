package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    domain.TicketCategory `json:"category"`
	Attachments []string              `json:"attachments"`
}

// ReplyRequest payload for agent replies.
type ReplyRequest struct {
	Body string `json:"body"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// CreateTicketResponse returns the new ticket and the trace id of its triage run.
type CreateTicketResponse struct {
	Ticket  TicketSummary `json:"ticket"`
	TraceID string        `json:"trace_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Category     domain.TicketCategory `json:"category"`
	Status       domain.TicketStatus   `json:"status"`
	CreatedBy    string                `json:"created_by"`
	AssigneeID   *string               `json:"assignee_id"`
	SuggestionID *string               `json:"suggestion_id"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description string                  `json:"description"`
	Attachments []string                `json:"attachments"`
	Messages    []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID        string               `json:"id"`
	Author    domain.MessageAuthor `json:"author"`
	AuthorID  *string              `json:"author_id"`
	Body      string               `json:"body"`
	CreatedAt time.Time            `json:"created_at"`
}

// AuditEventResponse is one audit trail entry.
type AuditEventResponse struct {
	ID        string             `json:"id"`
	TraceID   string             `json:"trace_id"`
	Actor     domain.Actor       `json:"actor"`
	Action    domain.AuditAction `json:"action"`
	Meta      map[string]any     `json:"meta"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewTicketSummary maps a ticket to its list representation.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:           t.ID,
		Title:        t.Title,
		Category:     t.Category,
		Status:       t.Status,
		CreatedBy:    t.CreatedBy,
		AssigneeID:   t.AssigneeID,
		SuggestionID: t.SuggestionID,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket and its thread.
func NewTicketDetail(t *domain.Ticket, msgs []domain.TicketMessage) TicketDetailResponse {
	out := TicketDetailResponse{
		TicketSummary: NewTicketSummary(t),
		Description:   t.Description,
		Attachments:   t.Attachments,
		Messages:      make([]TicketMessageResponse, 0, len(msgs)),
	}
	if out.Attachments == nil {
		out.Attachments = []string{}
	}
	for i := range msgs {
		out.Messages = append(out.Messages, NewTicketMessage(&msgs[i]))
	}
	return out
}

// NewTicketMessage maps a thread message.
func NewTicketMessage(m *domain.TicketMessage) TicketMessageResponse {
	return TicketMessageResponse{
		ID:        m.ID,
		Author:    m.Author,
		AuthorID:  m.AuthorID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}

// NewAuditEvents maps an audit trail.
func NewAuditEvents(events []domain.AuditEvent) []AuditEventResponse {
	out := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		meta := e.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		out = append(out, AuditEventResponse{
			ID:        e.ID,
			TraceID:   e.TraceID,
			Actor:     e.Actor,
			Action:    e.Action,
			Meta:      meta,
			Timestamp: e.Timestamp,
		})
	}
	return out
}
