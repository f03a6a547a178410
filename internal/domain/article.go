package domain

import "time"

// ArticleStatus marks whether an article is visible to retrieval.
type ArticleStatus string

const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPublished ArticleStatus = "published"
)

// Valid reports whether s is a known article status.
func (s ArticleStatus) Valid() bool {
	return s == ArticleStatusDraft || s == ArticleStatusPublished
}

// Article is a knowledge base entry.
type Article struct {
	ID        string
	Title     string
	Body      string
	Tags      []string
	Status    ArticleStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
