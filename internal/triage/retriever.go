package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// DefaultRetrievalLimit caps retrieval when no limit is given.
const DefaultRetrievalLimit = 3

const fallbackTermCount = 3

// Retrieval is the result of one retrieval, including which strategy produced it.
type Retrieval struct {
	Articles []domain.Article
	Fallback bool
}

// Retriever runs ranked search and falls back to keyword matching when it finds nothing.
type Retriever struct {
	store ArticleStore
	limit int
}

// NewRetriever builds a retriever. defaultLimit <= 0 uses DefaultRetrievalLimit.
func NewRetriever(store ArticleStore, defaultLimit int) *Retriever {
	if defaultLimit <= 0 {
		defaultLimit = DefaultRetrievalLimit
	}
	return &Retriever{store: store, limit: defaultLimit}
}

// Retrieve returns at most limit published articles for query.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) (Retrieval, error) {
	if limit <= 0 {
		limit = r.limit
	}

	articles, err := r.store.SearchPublished(ctx, query, limit)
	if err != nil {
		return Retrieval{}, fmt.Errorf("search published: %w", err)
	}
	if len(articles) > 0 {
		return Retrieval{Articles: capArticles(articles, limit)}, nil
	}

	articles, err = r.store.KeywordFallback(ctx, FallbackTerms(query), limit)
	if err != nil {
		return Retrieval{}, fmt.Errorf("keyword fallback: %w", err)
	}
	return Retrieval{Articles: capArticles(articles, limit), Fallback: true}, nil
}

// FallbackTerms returns the first three whitespace-separated tokens of query.
func FallbackTerms(query string) []string {
	fields := strings.Fields(query)
	if len(fields) > fallbackTermCount {
		fields = fields[:fallbackTermCount]
	}
	return fields
}

func capArticles(articles []domain.Article, limit int) []domain.Article {
	if len(articles) > limit {
		return articles[:limit]
	}
	return articles
}
