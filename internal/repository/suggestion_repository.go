package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// SuggestionRepository stores triage suggestions. There is no update: every
// run inserts a new row.
type SuggestionRepository interface {
	Create(ctx context.Context, s *domain.Suggestion) error
	GetByID(ctx context.Context, id string) (*domain.Suggestion, error)
	LatestByTicket(ctx context.Context, ticketID string) (*domain.Suggestion, error)
}

type suggestionRepository struct {
	pool *pgxpool.Pool
}

// NewSuggestionRepository builds repository.
func NewSuggestionRepository(pool *pgxpool.Pool) SuggestionRepository {
	return &suggestionRepository{pool: pool}
}

const suggestionColumns = `id, ticket_id, predicted_category, article_ids, draft_reply, confidence,
               auto_closed, provider, model, prompt_version, latency_ms, created_at`

func (r *suggestionRepository) Create(ctx context.Context, s *domain.Suggestion) error {
	const query = `
        INSERT INTO agent_suggestions (ticket_id, predicted_category, article_ids, draft_reply, confidence,
            auto_closed, provider, model, prompt_version, latency_ms)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at`
	if s.ArticleIDs == nil {
		s.ArticleIDs = []string{}
	}
	return translate(r.pool.QueryRow(ctx, query,
		s.TicketID,
		s.PredictedCategory,
		s.ArticleIDs,
		s.DraftReply,
		s.Confidence,
		s.AutoClosed,
		s.ModelInfo.Provider,
		s.ModelInfo.Model,
		s.ModelInfo.PromptVersion,
		s.ModelInfo.LatencyMs,
	).Scan(&s.ID, &s.CreatedAt))
}

func (r *suggestionRepository) GetByID(ctx context.Context, id string) (*domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM agent_suggestions WHERE id=$1`
	return scanSuggestion(r.pool.QueryRow(ctx, query, id))
}

func (r *suggestionRepository) LatestByTicket(ctx context.Context, ticketID string) (*domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM agent_suggestions
        WHERE ticket_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`
	return scanSuggestion(r.pool.QueryRow(ctx, query, ticketID))
}

func scanSuggestion(row pgx.Row) (*domain.Suggestion, error) {
	var s domain.Suggestion
	if err := row.Scan(
		&s.ID,
		&s.TicketID,
		&s.PredictedCategory,
		&s.ArticleIDs,
		&s.DraftReply,
		&s.Confidence,
		&s.AutoClosed,
		&s.ModelInfo.Provider,
		&s.ModelInfo.Model,
		&s.ModelInfo.PromptVersion,
		&s.ModelInfo.LatencyMs,
		&s.CreatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &s, nil
}
