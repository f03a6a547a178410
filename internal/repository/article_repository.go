package repository

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// DefaultArticleListLimit caps List when no limit is given.
const DefaultArticleListLimit = 20

// ArticleFilter narrows knowledge base listings. A nil Status means published.
type ArticleFilter struct {
	Status *domain.ArticleStatus
	Query  string
	Limit  int
}

// ArticleRepository manages knowledge base articles and their search.
type ArticleRepository interface {
	Create(ctx context.Context, article *domain.Article) error
	Update(ctx context.Context, article *domain.Article) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Article, error)
	List(ctx context.Context, filter ArticleFilter) ([]domain.Article, error)
	SearchPublished(ctx context.Context, query string, limit int) ([]domain.Article, error)
	KeywordFallback(ctx context.Context, terms []string, limit int) ([]domain.Article, error)
}

type articleRepository struct {
	pool *pgxpool.Pool
}

// NewArticleRepository builds repository.
func NewArticleRepository(pool *pgxpool.Pool) ArticleRepository {
	return &articleRepository{pool: pool}
}

const (
	articleColumns  = `id, title, body, tags, status, created_at, updated_at`
	articleDocument = `to_tsvector('english', title || ' ' || body || ' ' || array_to_string(tags, ' '))`
)

func (r *articleRepository) Create(ctx context.Context, article *domain.Article) error {
	const query = `
        INSERT INTO articles (title, body, tags, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	if article.Tags == nil {
		article.Tags = []string{}
	}
	return translate(r.pool.QueryRow(ctx, query,
		article.Title,
		article.Body,
		article.Tags,
		article.Status,
	).Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt))
}

func (r *articleRepository) Update(ctx context.Context, article *domain.Article) error {
	const query = `
        UPDATE articles SET title=$1, body=$2, tags=$3, status=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	if article.Tags == nil {
		article.Tags = []string{}
	}
	return translate(r.pool.QueryRow(ctx, query,
		article.Title,
		article.Body,
		article.Tags,
		article.Status,
		article.ID,
	).Scan(&article.UpdatedAt))
}

func (r *articleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM articles WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *articleRepository) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+articleColumns+` FROM articles WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	articles, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, domain.ErrNotFound
	}
	return &articles[0], nil
}

func (r *articleRepository) List(ctx context.Context, filter ArticleFilter) ([]domain.Article, error) {
	status := domain.ArticleStatusPublished
	if filter.Status != nil {
		status = *filter.Status
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultArticleListLimit
	}

	tsq := tsQuery(filter.Query)
	if tsq == "" {
		query := fmt.Sprintf(`SELECT %s FROM articles WHERE status=$1 ORDER BY updated_at DESC LIMIT %d`,
			articleColumns, limit)
		rows, err := r.pool.Query(ctx, query, status)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanArticles(rows)
	}
	return r.search(ctx, status, tsq, limit)
}

func (r *articleRepository) SearchPublished(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	tsq := tsQuery(query)
	if tsq == "" {
		return nil, nil
	}
	return r.search(ctx, domain.ArticleStatusPublished, tsq, limit)
}

func (r *articleRepository) search(ctx context.Context, status domain.ArticleStatus, tsq string, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		limit = DefaultArticleListLimit
	}
	query := fmt.Sprintf(`
        SELECT %s FROM articles
        WHERE status=$1 AND %s @@ to_tsquery('english', $2)
        ORDER BY ts_rank(%s, to_tsquery('english', $2)) DESC, updated_at DESC
        LIMIT %d`, articleColumns, articleDocument, articleDocument, limit)
	rows, err := r.pool.Query(ctx, query, status, tsq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (r *articleRepository) KeywordFallback(ctx context.Context, terms []string, limit int) ([]domain.Article, error) {
	patterns := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		patterns = append(patterns, "%"+escapeLike(t)+"%")
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultArticleListLimit
	}
	query := fmt.Sprintf(`
        SELECT %s FROM articles
        WHERE status='published' AND (title ILIKE ANY($1) OR body ILIKE ANY($1)
            OR array_to_string(tags, ' ') ILIKE ANY($1))
        ORDER BY updated_at DESC
        LIMIT %d`, articleColumns, limit)
	rows, err := r.pool.Query(ctx, query, patterns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// tsQuery turns free text into an OR query of its word tokens. Operator
// characters never reach to_tsquery.
func tsQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}
	return strings.Join(tokens, " | ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanArticles(rows pgx.Rows) ([]domain.Article, error) {
	var result []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.Body,
			&a.Tags,
			&a.Status,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
