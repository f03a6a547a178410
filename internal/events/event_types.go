package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketReplied    EventType = "ticket_replied"
	EventTicketAssigned   EventType = "ticket_assigned"
	EventTicketAutoClosed EventType = "ticket_auto_closed"
	EventTicketEscalated  EventType = "ticket_escalated"
	EventSLABreached      EventType = "sla_breached"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.Actor `json:"type"`
	ID   *string      `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	TraceID   string    `json:"trace_id,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, ticketID, traceID string, actor Actor, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		TraceID:   traceID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Category domain.TicketCategory `json:"category"`
}

// TicketRepliedPayload payload.
type TicketRepliedPayload struct {
	MessageID   string `json:"message_id"`
	BodyPreview string `json:"body_preview"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID string `json:"assignee_id"`
}

// TriageOutcomePayload is carried by auto-close and escalation events.
type TriageOutcomePayload struct {
	SuggestionID string                `json:"suggestion_id"`
	Category     domain.TicketCategory `json:"category"`
	Confidence   float64               `json:"confidence"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	Title      string    `json:"title"`
	WaitingFor string    `json:"waiting_for"`
	Since      time.Time `json:"since"`
}
