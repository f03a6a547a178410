package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/persistence"
)

// openTestPool connects to TEST_POSTGRES_DSN, migrates and empties the schema.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
	_, err = pool.Exec(ctx, `TRUNCATE audit_events, ticket_messages, agent_suggestions, tickets, articles, users, runtime_config CASCADE`)
	require.NoError(t, err)
	return pool
}

func TestPostgresTicketFlow(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	users := NewUserRepository(pool)
	owner := &domain.User{Name: "Owner", Email: "owner@example.com", PasswordHash: "hash", Role: domain.RoleUser}
	require.NoError(t, users.Create(ctx, owner))
	dup := &domain.User{Name: "Dup", Email: "owner@example.com", PasswordHash: "hash", Role: domain.RoleUser}
	assert.ErrorIs(t, users.Create(ctx, dup), domain.ErrAlreadyExists)

	tickets := NewTicketRepository(pool)
	ticket := &domain.Ticket{
		Title:       "Refund",
		Description: "charged twice",
		Category:    domain.CategoryOther,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   owner.ID,
		Attachments: []string{"receipt.pdf"},
	}
	require.NoError(t, tickets.Create(ctx, ticket))
	require.NotEmpty(t, ticket.ID)

	suggestions := NewSuggestionRepository(pool)
	s := &domain.Suggestion{
		TicketID:          ticket.ID,
		PredictedCategory: domain.CategoryBilling,
		ArticleIDs:        []string{},
		DraftReply:        "draft",
		Confidence:        0.8,
		AutoClosed:        true,
		ModelInfo:         domain.ModelInfo{Provider: "stub", Model: "stub-1", PromptVersion: "v1"},
	}
	require.NoError(t, suggestions.Create(ctx, s))

	ticket.SuggestionID = &s.ID
	ticket.Status = domain.TicketStatusResolved
	ticket.Category = domain.CategoryBilling
	require.NoError(t, tickets.Update(ctx, ticket))

	got, err := tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, got.Status)
	require.NotNil(t, got.SuggestionID)
	assert.Equal(t, s.ID, *got.SuggestionID)
	assert.Equal(t, []string{"receipt.pdf"}, got.Attachments)

	latest, err := suggestions.LatestByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, latest.ID)
	assert.Equal(t, "stub", latest.ModelInfo.Provider)

	resolved := domain.TicketStatusResolved
	list, err := tickets.List(ctx, TicketFilter{Status: &resolved, CreatedBy: &owner.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = tickets.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresAuditAndConfig(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	users := NewUserRepository(pool)
	owner := &domain.User{Name: "Owner", Email: "audit@example.com", PasswordHash: "hash", Role: domain.RoleUser}
	require.NoError(t, users.Create(ctx, owner))
	ticket := &domain.Ticket{Title: "t", Description: "d", Category: domain.CategoryOther, Status: domain.TicketStatusOpen, CreatedBy: owner.ID}
	require.NoError(t, NewTicketRepository(pool).Create(ctx, ticket))

	audit := NewAuditRepository(pool)
	base := time.Now().UTC()
	for i, action := range []domain.AuditAction{domain.ActionTicketCreated, domain.ActionAgentClassified} {
		require.NoError(t, audit.Append(ctx, &domain.AuditEvent{
			ID:        ulid.Make().String(),
			TicketID:  ticket.ID,
			TraceID:   "trace",
			Actor:     domain.ActorSystem,
			Action:    action,
			Meta:      map[string]any{"n": i},
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}
	trail, err := audit.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.ActionAgentClassified, trail[1].Action)
	assert.EqualValues(t, 1, trail[1].Meta["n"])

	seen, err := audit.HasAction(ctx, ticket.ID, domain.ActionSLABreached)
	require.NoError(t, err)
	assert.False(t, seen)

	cfgRepo := NewRuntimeConfigRepository(pool, domain.DefaultRuntimeConfig())
	cfg, err := cfgRepo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSLAHours, cfg.SLAHours)

	cfg.SLAHours = 4
	saved, err := cfgRepo.Put(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, saved.SLAHours)
}

func TestPostgresKeywordFallbackMatchesTags(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	articles := NewArticleRepository(pool)
	tagged := &domain.Article{Title: "Returns policy", Body: "How to send items back.", Tags: []string{"shipping"}, Status: domain.ArticleStatusPublished}
	require.NoError(t, articles.Create(ctx, tagged))
	other := &domain.Article{Title: "Invoices", Body: "Where to find them.", Tags: []string{"billing"}, Status: domain.ArticleStatusPublished}
	require.NoError(t, articles.Create(ctx, other))

	got, err := articles.KeywordFallback(ctx, []string{"Shipping"}, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tagged.ID, got[0].ID)
}
