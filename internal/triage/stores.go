package triage

import (
	"context"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// Stores return domain.ErrNotFound for absent records.

// TicketStore loads and saves tickets.
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
}

// SuggestionStore persists suggestions. Create assigns ID and CreatedAt.
type SuggestionStore interface {
	Create(ctx context.Context, suggestion *domain.Suggestion) error
	LatestByTicket(ctx context.Context, ticketID string) (*domain.Suggestion, error)
}

// MessageStore appends messages to a ticket thread.
type MessageStore interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
}

// ArticleStore searches published knowledge base articles.
type ArticleStore interface {
	SearchPublished(ctx context.Context, query string, limit int) ([]domain.Article, error)
	KeywordFallback(ctx context.Context, terms []string, limit int) ([]domain.Article, error)
}

// ConfigProvider returns the current runtime config, creating defaults on first access.
type ConfigProvider interface {
	Get(ctx context.Context) (domain.RuntimeConfig, error)
}

// AuditStore appends and lists audit events.
type AuditStore interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEvent, error)
}
