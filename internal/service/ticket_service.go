package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/triage"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 10000
	bodyPreviewLength    = 120
)

// Viewer is the authenticated caller of a service method.
type Viewer struct {
	ID   string
	Role domain.Role
}

// IsStaff reports whether the viewer works tickets.
func (v Viewer) IsStaff() bool {
	return v.Role.IsStaff()
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	users      repository.UserRepository
	audit      *triage.Recorder
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	UserRepo    repository.UserRepository
	Audit       *triage.Recorder
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	Attachments []string
}

// TicketListFilter narrows ticket listings.
type TicketListFilter struct {
	Status *domain.TicketStatus
	Mine   bool
	Limit  int
	Offset int
}

// TicketDetail is a ticket with its thread.
type TicketDetail struct {
	Ticket   *domain.Ticket
	Messages []domain.TicketMessage
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		users:      deps.UserRepo,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket opens a ticket for a user, records the description as the
// first message and announces it so a detached triage run can start. The
// returned trace id ties TICKET_CREATED to that run.
func (s *TicketService) CreateTicket(ctx context.Context, userID string, input TicketCreateInput) (*domain.Ticket, string, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	details := map[string]any{}
	if title == "" || len(title) > maxTitleLength {
		details["title"] = "required, at most 200 characters"
	}
	if description == "" || len(description) > maxDescriptionLength {
		details["description"] = "required, at most 10000 characters"
	}
	category := input.Category
	if category == "" {
		category = domain.CategoryOther
	}
	if !category.Valid() {
		details["category"] = "must be one of billing, tech, shipping, other"
	}
	if len(details) > 0 {
		return nil, "", apperrors.NewValidationError("invalid ticket", details)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Category:    category,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   userID,
		Attachments: input.Attachments,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, "", apperrors.MapError(err)
	}

	authorID := userID
	msg := &domain.TicketMessage{TicketID: ticket.ID, Author: domain.AuthorUser, AuthorID: &authorID, Body: description}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, "", apperrors.MapError(err)
	}

	traceID := uuid.NewString()
	s.audit.Record(ctx, ticket.ID, traceID, domain.ActorUser, domain.ActionTicketCreated, map[string]any{
		"title": ticket.Title,
	})
	s.publishEvent(ctx, events.New(events.EventTicketCreated, ticket.ID, traceID, userActor(userID), events.TicketCreatedPayload{
		Title:    ticket.Title,
		Category: ticket.Category,
	}))
	return ticket, traceID, nil
}

// ListTickets returns tickets newest-updated first. Users only ever see
// their own tickets.
func (s *TicketService) ListTickets(ctx context.Context, viewer Viewer, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Status: filter.Status,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if filter.Limit <= 0 || filter.Limit > repository.DefaultTicketListLimit {
		repoFilter.Limit = repository.DefaultTicketListLimit
	}
	if filter.Mine || !viewer.IsStaff() {
		repoFilter.CreatedBy = &viewer.ID
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket returns a ticket with its messages oldest first.
func (s *TicketService) GetTicket(ctx context.Context, viewer Viewer, ticketID string) (*TicketDetail, error) {
	ticket, err := s.visibleTicket(ctx, viewer, ticketID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketDetail{Ticket: ticket, Messages: msgs}, nil
}

// Reply posts an agent message and marks the ticket triaged.
func (s *TicketService) Reply(ctx context.Context, agentID, ticketID, body string) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("invalid reply", map[string]any{"body": "required"})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}

	authorID := agentID
	msg := &domain.TicketMessage{TicketID: ticket.ID, Author: domain.AuthorAgent, AuthorID: &authorID, Body: body}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.Status = domain.TicketStatusTriaged
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	traceID := uuid.NewString()
	s.audit.Record(ctx, ticket.ID, traceID, domain.ActorAgent, domain.ActionTicketReplied, map[string]any{
		"messageId": msg.ID,
		"agentId":   agentID,
	})
	s.publishEvent(ctx, events.New(events.EventTicketReplied, ticket.ID, traceID, agentActor(agentID), events.TicketRepliedPayload{
		MessageID:   msg.ID,
		BodyPreview: stringPreview(body, bodyPreviewLength),
	}))
	return msg, nil
}

// Assign hands the ticket to a staff member.
func (s *TicketService) Assign(ctx context.Context, actorID, ticketID, assigneeID string) (*domain.Ticket, error) {
	assigneeID = strings.TrimSpace(assigneeID)
	if assigneeID == "" {
		return nil, apperrors.NewValidationError("invalid assignment", map[string]any{"assignee_id": "required"})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.NewValidationError("invalid assignment", map[string]any{"assignee_id": "unknown user"})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Role.IsStaff() {
		return nil, apperrors.NewValidationError("invalid assignment", map[string]any{"assignee_id": "must be an agent or admin"})
	}

	ticket.AssigneeID = &assignee.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	traceID := uuid.NewString()
	s.audit.Record(ctx, ticket.ID, traceID, domain.ActorAgent, domain.ActionTicketAssigned, map[string]any{
		"assigneeId": assignee.ID,
		"actorId":    actorID,
	})
	s.publishEvent(ctx, events.New(events.EventTicketAssigned, ticket.ID, traceID, agentActor(actorID), events.TicketAssignedPayload{
		AssigneeID: assignee.ID,
	}))
	return ticket, nil
}

// ListAudit returns the ticket's audit trail ordered by timestamp.
func (s *TicketService) ListAudit(ctx context.Context, ticketID string) ([]domain.AuditEvent, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	trail, err := s.audit.List(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return trail, nil
}

func (s *TicketService) visibleTicket(ctx context.Context, viewer Viewer, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	if !viewer.IsStaff() && ticket.CreatedBy != viewer.ID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func userActor(userID string) events.Actor {
	return events.Actor{Type: domain.ActorUser, ID: &userID}
}

func agentActor(agentID string) events.Actor {
	return events.Actor{Type: domain.ActorAgent, ID: &agentID}
}

func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	}
	return apperrors.MapError(err)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
