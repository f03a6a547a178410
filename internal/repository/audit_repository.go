package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// AuditRepository stores the append-only audit trail.
type AuditRepository interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEvent, error)
	HasAction(ctx context.Context, ticketID string, action domain.AuditAction) (bool, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, event *domain.AuditEvent) error {
	const query = `
        INSERT INTO audit_events (id, ticket_id, trace_id, actor, action, meta, ts)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	meta := event.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.TicketID,
		event.TraceID,
		event.Actor,
		event.Action,
		meta,
		event.Timestamp,
	)
	return translate(err)
}

func (r *auditRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEvent, error) {
	const query = `
        SELECT id, ticket_id, trace_id, actor, action, meta, ts
        FROM audit_events WHERE ticket_id=$1 ORDER BY ts ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		if err := rows.Scan(
			&e.ID,
			&e.TicketID,
			&e.TraceID,
			&e.Actor,
			&e.Action,
			&e.Meta,
			&e.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *auditRepository) HasAction(ctx context.Context, ticketID string, action domain.AuditAction) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM audit_events WHERE ticket_id=$1 AND action=$2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, ticketID, action).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
