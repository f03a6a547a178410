package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

const minSearchToken = 3

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "you": {}, "your": {}, "are": {},
	"was": {}, "this": {}, "that": {}, "have": {}, "has": {}, "not": {}, "but": {},
	"from": {}, "how": {}, "what": {}, "where": {}, "when": {}, "who": {}, "why": {},
	"can": {}, "our": {}, "all": {}, "any": {}, "its": {}, "into": {}, "out": {},
	"see": {}, "use": {}, "will": {}, "shows": {}, "mentions": {},
}

// ArticleStore keeps knowledge base articles in memory and ranks them by
// matching word tokens.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]domain.Article
	order    []string
	// SearchErr, when set, is returned by SearchPublished.
	SearchErr error
}

// NewArticleStore returns an empty store.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{articles: make(map[string]domain.Article)}
}

var _ repository.ArticleRepository = (*ArticleStore)(nil)

func (s *ArticleStore) Create(_ context.Context, a *domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, ok := s.articles[a.ID]; ok {
		return domain.ErrAlreadyExists
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.articles[a.ID] = cloneArticle(*a)
	s.order = append(s.order, a.ID)
	return nil
}

func (s *ArticleStore) Update(_ context.Context, a *domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.articles[a.ID]
	if !ok {
		return domain.ErrNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.articles[a.ID] = cloneArticle(*a)
	return nil
}

func (s *ArticleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.articles, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *ArticleStore) GetByID(_ context.Context, id string) (*domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneArticle(a)
	return &out, nil
}

func (s *ArticleStore) List(_ context.Context, filter repository.ArticleFilter) ([]domain.Article, error) {
	status := domain.ArticleStatusPublished
	if filter.Status != nil {
		status = *filter.Status
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultArticleListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if strings.TrimSpace(filter.Query) != "" {
		return s.rank(status, filter.Query, limit), nil
	}
	var result []domain.Article
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.articles[s.order[i]]
		if a.Status == status {
			result = append(result, cloneArticle(a))
		}
	}
	return page(result, 0, limit), nil
}

func (s *ArticleStore) SearchPublished(_ context.Context, query string, limit int) ([]domain.Article, error) {
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	if limit <= 0 {
		limit = repository.DefaultArticleListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rank(domain.ArticleStatusPublished, query, limit), nil
}

// KeywordFallback matches any term as a case-insensitive substring of title,
// body or tags.
func (s *ArticleStore) KeywordFallback(_ context.Context, terms []string, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		limit = repository.DefaultArticleListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Article
	for _, id := range s.order {
		a := s.articles[id]
		if a.Status != domain.ArticleStatusPublished {
			continue
		}
		hay := strings.ToLower(a.Title + " " + a.Body + " " + strings.Join(a.Tags, " "))
		for _, t := range terms {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" && strings.Contains(hay, t) {
				result = append(result, cloneArticle(a))
				break
			}
		}
	}
	return page(result, 0, limit), nil
}

func (s *ArticleStore) rank(status domain.ArticleStatus, query string, limit int) []domain.Article {
	queryTokens := searchTokens(query)
	if len(queryTokens) == 0 {
		return []domain.Article{}
	}
	type scored struct {
		article domain.Article
		score   int
		pos     int
	}
	var hits []scored
	for pos, id := range s.order {
		a := s.articles[id]
		if a.Status != status {
			continue
		}
		doc := searchTokens(a.Title + " " + a.Body + " " + strings.Join(a.Tags, " "))
		score := 0
		for _, q := range queryTokens {
			for _, d := range doc {
				if d == q || strings.HasPrefix(d, q) || strings.HasPrefix(q, d) {
					score++
					break
				}
			}
		}
		if score > 0 {
			hits = append(hits, scored{article: cloneArticle(a), score: score, pos: pos})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})
	result := make([]domain.Article, 0, len(hits))
	for _, h := range hits {
		result = append(result, h.article)
	}
	return page(result, 0, limit)
}

func searchTokens(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < minSearchToken {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}
	return tokens
}

func cloneArticle(a domain.Article) domain.Article {
	a.Tags = append([]string(nil), a.Tags...)
	return a
}
