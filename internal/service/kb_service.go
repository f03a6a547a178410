package service

import (
	"context"
	"strings"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// KBService manages knowledge base articles.
type KBService struct {
	articles repository.ArticleRepository
}

// NewKBService constructs the service.
func NewKBService(articles repository.ArticleRepository) *KBService {
	return &KBService{articles: articles}
}

// ArticleInput describes a new article.
type ArticleInput struct {
	Title  string
	Body   string
	Tags   []string
	Status domain.ArticleStatus
}

// ArticlePatch describes a partial update. Nil fields are left unchanged.
type ArticlePatch struct {
	Title  *string
	Body   *string
	Tags   *[]string
	Status *domain.ArticleStatus
}

// ArticleListInput narrows listings. An empty Status lists published articles.
type ArticleListInput struct {
	Status string
	Query  string
	Limit  int
}

// List returns articles; a query switches to ranked search.
func (s *KBService) List(ctx context.Context, input ArticleListInput) ([]domain.Article, error) {
	filter := repository.ArticleFilter{Query: strings.TrimSpace(input.Query), Limit: input.Limit}
	if filter.Limit <= 0 || filter.Limit > repository.DefaultArticleListLimit {
		filter.Limit = repository.DefaultArticleListLimit
	}
	if input.Status != "" {
		status := domain.ArticleStatus(input.Status)
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": "must be draft or published"})
		}
		filter.Status = &status
	}
	articles, err := s.articles.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return articles, nil
}

// Get returns one article.
func (s *KBService) Get(ctx context.Context, id string) (*domain.Article, error) {
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "article", id)
	}
	return article, nil
}

// Create stores a new article. Status defaults to draft.
func (s *KBService) Create(ctx context.Context, input ArticleInput) (*domain.Article, error) {
	article := &domain.Article{
		Title:  strings.TrimSpace(input.Title),
		Body:   strings.TrimSpace(input.Body),
		Tags:   normalizeTags(input.Tags),
		Status: input.Status,
	}
	if article.Status == "" {
		article.Status = domain.ArticleStatusDraft
	}
	if err := validateArticle(article); err != nil {
		return nil, err
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, apperrors.MapError(err)
	}
	return article, nil
}

// Update applies patch to an existing article.
func (s *KBService) Update(ctx context.Context, id string, patch ArticlePatch) (*domain.Article, error) {
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "article", id)
	}
	if patch.Title != nil {
		article.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Body != nil {
		article.Body = strings.TrimSpace(*patch.Body)
	}
	if patch.Tags != nil {
		article.Tags = normalizeTags(*patch.Tags)
	}
	if patch.Status != nil {
		article.Status = *patch.Status
	}
	if err := validateArticle(article); err != nil {
		return nil, err
	}
	if err := s.articles.Update(ctx, article); err != nil {
		return nil, notFoundOr(err, "article", id)
	}
	return article, nil
}

// Delete removes an article.
func (s *KBService) Delete(ctx context.Context, id string) error {
	if err := s.articles.Delete(ctx, id); err != nil {
		return notFoundOr(err, "article", id)
	}
	return nil
}

func validateArticle(a *domain.Article) error {
	details := map[string]any{}
	if a.Title == "" || len(a.Title) > maxTitleLength {
		details["title"] = "required, at most 200 characters"
	}
	if a.Body == "" {
		details["body"] = "required"
	}
	if !a.Status.Valid() {
		details["status"] = "must be draft or published"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid article", details)
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
