package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/triage"
)

// Submitter accepts detached triage jobs.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// StartTriageWorker submits a detached run for every created ticket, reusing
// the trace id recorded with TICKET_CREATED.
func StartTriageWorker(dispatcher events.Dispatcher, pool Submitter, logger *zap.Logger) {
	if dispatcher == nil || pool == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, func(ctx context.Context, event events.Event) error {
		err := pool.Submit(ctx, Job{TicketID: event.TicketID, TraceID: event.TraceID})
		if err != nil {
			logger.Warn("triage not scheduled",
				zap.String("ticket_id", event.TicketID),
				zap.String("trace_id", event.TraceID),
				zap.Error(err))
		}
		return err
	})
}

// OutcomeEvents publishes auto-close and escalation events for completed runs.
func OutcomeEvents(dispatcher events.Dispatcher, logger *zap.Logger) triage.Hooks {
	return triage.Hooks{
		OnComplete: func(o triage.Outcome) {
			if dispatcher == nil || o.Err != nil {
				return
			}
			eventType := events.EventTicketEscalated
			if o.AutoClosed {
				eventType = events.EventTicketAutoClosed
			}
			event := events.New(eventType, o.TicketID, o.TraceID, events.Actor{Type: domain.ActorSystem}, events.TriageOutcomePayload{
				SuggestionID: o.SuggestionID,
				Category:     o.Category,
				Confidence:   o.Confidence,
			})
			if err := dispatcher.Publish(context.Background(), event); err != nil {
				logger.Warn("outcome event handlers failed",
					zap.String("ticket_id", o.TicketID),
					zap.String("event_type", string(eventType)),
					zap.Error(err))
			}
		},
	}
}
