package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// Recorder appends audit events. Write failures are logged and swallowed so a
// lost audit entry never fails the caller.
type Recorder struct {
	store     AuditStore
	logger    *zap.Logger
	onFailure func(domain.AuditAction)
	now       func() time.Time
}

// NewRecorder builds a recorder on top of store.
func NewRecorder(store AuditStore, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// WithFailureHook registers fn to be called for every failed write.
func (r *Recorder) WithFailureHook(fn func(domain.AuditAction)) *Recorder {
	r.onFailure = fn
	return r
}

// Record appends one event for the ticket and trace.
func (r *Recorder) Record(ctx context.Context, ticketID, traceID string, actor domain.Actor, action domain.AuditAction, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	event := &domain.AuditEvent{
		ID:        ulid.Make().String(),
		TicketID:  ticketID,
		TraceID:   traceID,
		Actor:     actor,
		Action:    action,
		Meta:      meta,
		Timestamp: r.now().UTC(),
	}

	if err := r.append(ctx, event); err != nil {
		r.logger.Error("audit write failed",
			zap.String("ticket_id", ticketID),
			zap.String("trace_id", traceID),
			zap.String("action", string(action)),
			zap.Error(fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)))
		if r.onFailure != nil {
			r.onFailure(action)
		}
	}
}

// List returns the ticket's events ordered by timestamp.
func (r *Recorder) List(ctx context.Context, ticketID string) ([]domain.AuditEvent, error) {
	return r.store.ListByTicket(ctx, ticketID)
}

func (r *Recorder) append(ctx context.Context, event *domain.AuditEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.store.Append(ctx, event)
}
