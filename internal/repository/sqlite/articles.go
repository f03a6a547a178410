// Package sqlite stores knowledge base articles in an embedded SQLite file
// with FTS5 ranking, for deployments without Postgres search.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// ArticleStore is a SQLite-backed repository.ArticleRepository.
type ArticleStore struct {
	db *sql.DB
}

var _ repository.ArticleRepository = (*ArticleStore)(nil)

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*ArticleStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	s := &ArticleStore{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *ArticleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *ArticleStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ArticleStore) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *ArticleStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			tag_text TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status, updated_at)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS articles_fts USING fts5(
			title,
			body,
			tag_text,
			content='articles',
			content_rowid='seq',
			tokenize='unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS articles_ai AFTER INSERT ON articles BEGIN
			INSERT INTO articles_fts(rowid, title, body, tag_text) VALUES (new.seq, new.title, new.body, new.tag_text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS articles_ad AFTER DELETE ON articles BEGIN
			INSERT INTO articles_fts(articles_fts, rowid, title, body, tag_text) VALUES('delete', old.seq, old.title, old.body, old.tag_text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS articles_au AFTER UPDATE ON articles BEGIN
			INSERT INTO articles_fts(articles_fts, rowid, title, body, tag_text) VALUES('delete', old.seq, old.title, old.body, old.tag_text);
			INSERT INTO articles_fts(rowid, title, body, tag_text) VALUES (new.seq, new.title, new.body, new.tag_text);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

const articleColumns = `a.id, a.title, a.body, a.tags, a.status, a.created_at, a.updated_at`

func (s *ArticleStore) Create(ctx context.Context, a *domain.Article) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO articles (id, title, body, tags, tag_text, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Body, string(tags), strings.Join(a.Tags, " "), string(a.Status),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert article: %w", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (s *ArticleStore) Update(ctx context.Context, a *domain.Article) error {
	if a.Tags == nil {
		a.Tags = []string{}
	}
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET title=?, body=?, tags=?, tag_text=?, status=?, updated_at=?
		WHERE id=?`,
		a.Title, a.Body, string(tags), strings.Join(a.Tags, " "), string(a.Status),
		now.Format(time.RFC3339Nano), a.ID)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	a.UpdatedAt = now
	return nil
}

func (s *ArticleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ArticleStore) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles a WHERE a.id=?`, id)
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
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

func (s *ArticleStore) List(ctx context.Context, filter repository.ArticleFilter) ([]domain.Article, error) {
	status := domain.ArticleStatusPublished
	if filter.Status != nil {
		status = *filter.Status
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultArticleListLimit
	}
	if strings.TrimSpace(filter.Query) != "" {
		return s.search(ctx, status, filter.Query, limit)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+articleColumns+` FROM articles a
		WHERE a.status=? ORDER BY a.updated_at DESC, a.seq DESC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (s *ArticleStore) SearchPublished(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		limit = repository.DefaultArticleListLimit
	}
	return s.search(ctx, domain.ArticleStatusPublished, query, limit)
}

func (s *ArticleStore) search(ctx context.Context, status domain.ArticleStatus, text string, limit int) ([]domain.Article, error) {
	match := matchQuery(text)
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles a
		JOIN articles_fts f ON a.seq = f.rowid
		WHERE articles_fts MATCH ?
		  AND a.status = ?
		ORDER BY bm25(articles_fts), a.seq
		LIMIT ?`, match, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("search fts: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (s *ArticleStore) KeywordFallback(ctx context.Context, terms []string, limit int) ([]domain.Article, error) {
	var clauses []string
	var args []any
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		pattern := "%" + escapeLike(t) + "%"
		clauses = append(clauses, `a.title LIKE ? ESCAPE '\' OR a.body LIKE ? ESCAPE '\' OR a.tag_text LIKE ? ESCAPE '\'`)
		args = append(args, pattern, pattern, pattern)
	}
	if len(clauses) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = repository.DefaultArticleListLimit
	}
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+articleColumns+` FROM articles a
		WHERE a.status='published' AND (`+strings.Join(clauses, " OR ")+`)
		ORDER BY a.updated_at DESC, a.seq DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword fallback: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// matchQuery quotes each word token and ORs them, so MATCH never sees
// operator syntax from user text.
func matchQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		switch w {
		case "and", "or", "not", "near":
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		quoted = append(quoted, `"`+w+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanArticles(rows *sql.Rows) ([]domain.Article, error) {
	var result []domain.Article
	for rows.Next() {
		var (
			a                domain.Article
			tags, status     string
			created, updated string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &tags, &status, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		a.Status = domain.ArticleStatus(status)
		var err error
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
