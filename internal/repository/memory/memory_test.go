package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

func TestArticleSearchRanksByMatchingTokens(t *testing.T) {
	store := NewArticleStore()
	ctx := context.Background()
	for _, a := range []domain.Article{
		{Title: "How to update payment method", Body: "Go to billing settings.", Tags: []string{"billing", "payments"}, Status: domain.ArticleStatusPublished},
		{Title: "Tracking your shipment", Body: "Use the tracking link sent to your email to see updates.", Tags: []string{"shipping", "delivery"}, Status: domain.ArticleStatusPublished},
		{Title: "Shipment delays", Body: "draft", Status: domain.ArticleStatusDraft},
	} {
		a := a
		require.NoError(t, store.Create(ctx, &a))
	}

	got, err := store.SearchPublished(ctx, "Where is my package? Shipment delayed 5 days", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Tracking your shipment", got[0].Title)

	got, err = store.SearchPublished(ctx, "the and", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestArticleKeywordFallback(t *testing.T) {
	store := NewArticleStore()
	ctx := context.Background()
	a := domain.Article{Title: "Refunds", Body: "Money back", Status: domain.ArticleStatusPublished}
	require.NoError(t, store.Create(ctx, &a))

	got, err := store.KeywordFallback(ctx, []string{"nope", "FUND"}, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = store.KeywordFallback(ctx, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestArticleKeywordFallbackMatchesTags(t *testing.T) {
	store := NewArticleStore()
	ctx := context.Background()
	a := domain.Article{Title: "Returns policy", Body: "How to send items back.", Tags: []string{"shipping"}, Status: domain.ArticleStatusPublished}
	require.NoError(t, store.Create(ctx, &a))

	got, err := store.KeywordFallback(ctx, []string{"Shipping"}, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestTicketListFilters(t *testing.T) {
	store := NewTicketStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	owner := "u1"
	for i, status := range []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusTriaged, domain.TicketStatusOpen} {
		createdBy := "u2"
		if i == 0 {
			createdBy = owner
		}
		tk := domain.Ticket{Title: "t", Description: "d", Category: domain.CategoryOther, Status: status, CreatedBy: createdBy}
		require.NoError(t, store.Create(ctx, &tk))
	}

	open := domain.TicketStatusOpen
	got, err := store.List(ctx, repository.TicketFilter{Status: &open})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].UpdatedAt.After(got[1].UpdatedAt))

	got, err = store.List(ctx, repository.TicketFilter{CreatedBy: &owner})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	cutoff := base.Add(2*time.Hour + time.Minute)
	got, err = store.List(ctx, repository.TicketFilter{UpdatedBefore: &cutoff})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.List(ctx, repository.TicketFilter{Limit: 1, Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTicketGetReturnsCopy(t *testing.T) {
	store := NewTicketStore()
	ctx := context.Background()
	tk := domain.Ticket{Title: "t", Status: domain.TicketStatusOpen}
	require.NoError(t, store.Create(ctx, &tk))

	got, err := store.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	got.Title = "changed"

	again, err := store.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", again.Title)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, &domain.Ticket{ID: "missing"}), domain.ErrNotFound)
}

func TestSuggestionLatestByTicket(t *testing.T) {
	store := NewSuggestionStore()
	ctx := context.Background()
	first := domain.Suggestion{TicketID: "t1"}
	second := domain.Suggestion{TicketID: "t1"}
	require.NoError(t, store.Create(ctx, &first))
	require.NoError(t, store.Create(ctx, &second))
	assert.NotEqual(t, first.ID, second.ID)

	latest, err := store.LatestByTicket(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = store.LatestByTicket(ctx, "t2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfigStoreDefaultsAndValidation(t *testing.T) {
	store := NewConfigStore(domain.DefaultRuntimeConfig())
	ctx := context.Background()

	cfg, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConfidenceThreshold, cfg.ConfidenceThreshold)

	_, err = store.Put(ctx, domain.RuntimeConfig{ConfidenceThreshold: 2, SLAHours: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	store.Force(domain.RuntimeConfig{ConfidenceThreshold: -1, SLAHours: 1})
	_, err = store.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Equal(t, 2, store.Reads())
}

func TestUserStoreUniqueEmail(t *testing.T) {
	store := NewUserStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.User{Email: "a@example.com", Role: domain.RoleUser}))
	err := store.Create(ctx, &domain.User{Email: "A@example.com", Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	u, err := store.GetByEmail(ctx, "A@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
}

func TestAuditStoreOrdersByTimestamp(t *testing.T) {
	store := NewAuditStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.Append(ctx, &domain.AuditEvent{ID: "b", TicketID: "t", Action: domain.ActionKBRetrieved, Timestamp: now.Add(time.Second)}))
	require.NoError(t, store.Append(ctx, &domain.AuditEvent{ID: "a", TicketID: "t", Action: domain.ActionAgentClassified, Timestamp: now}))

	events, err := store.ListByTicket(ctx, "t")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)

	ok, err := store.HasAction(ctx, "t", domain.ActionKBRetrieved)
	require.NoError(t, err)
	assert.True(t, ok)
}
