package domain

import "time"

// Actor identifies who caused an audit event.
type Actor string

const (
	ActorSystem Actor = "system"
	ActorAgent  Actor = "agent"
	ActorUser   Actor = "user"
)

// AuditAction is the stable label of an audit event.
type AuditAction string

const (
	ActionTicketCreated   AuditAction = "TICKET_CREATED"
	ActionAgentClassified AuditAction = "AGENT_CLASSIFIED"
	ActionKBRetrieved     AuditAction = "KB_RETRIEVED"
	ActionDraftGenerated  AuditAction = "DRAFT_GENERATED"
	ActionAutoClosed      AuditAction = "AUTO_CLOSED"
	ActionAssignedToHuman AuditAction = "ASSIGNED_TO_HUMAN"
	ActionTicketReplied   AuditAction = "TICKET_REPLIED"
	ActionTicketAssigned  AuditAction = "TICKET_ASSIGNED"
	ActionSLABreached     AuditAction = "SLA_BREACHED"
)

// AuditEvent is an immutable trail entry keyed by ticket and trace.
type AuditEvent struct {
	ID        string
	TicketID  string
	TraceID   string
	Actor     Actor
	Action    AuditAction
	Meta      map[string]any
	Timestamp time.Time
}
