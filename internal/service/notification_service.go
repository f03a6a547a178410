package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/notify"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// NotificationService turns triage and SLA events into staff notices.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	tickets    repository.TicketRepository
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Notifier, tickets repository.TicketRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		tickets:    tickets,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.notifier == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleTriageOutcome)
	n.dispatcher.Subscribe(events.EventTicketAutoClosed, n.handleTriageOutcome)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
}

func (n *NotificationService) handleTriageOutcome(ctx context.Context, event events.Event) error {
	kind := notify.KindEscalated
	if event.Type == events.EventTicketAutoClosed {
		kind = notify.KindAutoClosed
	}
	notice := n.notice(ctx, kind, event)
	if p, ok := event.Payload.(events.TriageOutcomePayload); ok {
		notice.Fields = append(notice.Fields,
			notify.Field{Name: "Category", Value: string(p.Category)},
			notify.Field{Name: "Confidence", Value: fmt.Sprintf("%.2f", p.Confidence)},
		)
	}
	return n.send(ctx, notice)
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	notice := n.notice(ctx, notify.KindSLABreach, event)
	if p, ok := event.Payload.(events.SLABreachedPayload); ok {
		notice.Title = p.Title
		notice.Fields = append(notice.Fields, notify.Field{Name: "Waiting", Value: p.WaitingFor})
	}
	return n.send(ctx, notice)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	notice := n.notice(ctx, notify.KindAssigned, event)
	if p, ok := event.Payload.(events.TicketAssignedPayload); ok {
		notice.Fields = append(notice.Fields, notify.Field{Name: "Assignee", Value: p.AssigneeID})
	}
	return n.send(ctx, notice)
}

func (n *NotificationService) notice(ctx context.Context, kind notify.Kind, event events.Event) notify.Notice {
	notice := notify.Notice{Kind: kind, TicketID: event.TicketID, TraceID: event.TraceID, Title: event.TicketID, At: event.Timestamp}
	if n.tickets != nil {
		if t, err := n.tickets.GetByID(ctx, event.TicketID); err == nil {
			notice.Title = t.Title
		}
	}
	return notice
}

func (n *NotificationService) send(ctx context.Context, notice notify.Notice) error {
	if err := n.notifier.Notify(ctx, notice); err != nil {
		n.logger.Warn("notification failed",
			zap.String("ticket_id", notice.TicketID),
			zap.String("kind", string(notice.Kind)),
			zap.Error(err))
		return err
	}
	return nil
}
