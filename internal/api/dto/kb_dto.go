package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// ArticleRequest payload for creating an article.
type ArticleRequest struct {
	Title  string               `json:"title"`
	Body   string               `json:"body"`
	Tags   []string             `json:"tags"`
	Status domain.ArticleStatus `json:"status"`
}

// ArticlePatchRequest updates only the fields that are present.
type ArticlePatchRequest struct {
	Title  *string               `json:"title"`
	Body   *string               `json:"body"`
	Tags   *[]string             `json:"tags"`
	Status *domain.ArticleStatus `json:"status"`
}

// ArticleResponse represents a knowledge base article.
type ArticleResponse struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Body      string               `json:"body"`
	Tags      []string             `json:"tags"`
	Status    domain.ArticleStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewArticle maps an article.
func NewArticle(a *domain.Article) ArticleResponse {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return ArticleResponse{
		ID:        a.ID,
		Title:     a.Title,
		Body:      a.Body,
		Tags:      tags,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
