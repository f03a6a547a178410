package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// SuggestionStore keeps suggestions in insertion order.
type SuggestionStore struct {
	mu          sync.RWMutex
	suggestions []domain.Suggestion
}

// NewSuggestionStore returns an empty store.
func NewSuggestionStore() *SuggestionStore {
	return &SuggestionStore{}
}

var _ repository.SuggestionRepository = (*SuggestionStore)(nil)

func (s *SuggestionStore) Create(_ context.Context, sg *domain.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg.ID = uuid.NewString()
	sg.CreatedAt = time.Now().UTC()
	cp := *sg
	cp.ArticleIDs = append([]string(nil), sg.ArticleIDs...)
	s.suggestions = append(s.suggestions, cp)
	return nil
}

func (s *SuggestionStore) GetByID(_ context.Context, id string) (*domain.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sg := range s.suggestions {
		if sg.ID == id {
			out := sg
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

// LatestByTicket returns the last inserted suggestion for the ticket.
func (s *SuggestionStore) LatestByTicket(_ context.Context, ticketID string) (*domain.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.suggestions) - 1; i >= 0; i-- {
		if s.suggestions[i].TicketID == ticketID {
			out := s.suggestions[i]
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

// All returns every stored suggestion.
func (s *SuggestionStore) All() []domain.Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Suggestion(nil), s.suggestions...)
}
