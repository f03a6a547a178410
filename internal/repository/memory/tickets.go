package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// TicketStore keeps tickets in memory.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
	now     func() time.Time
}

// NewTicketStore returns an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]domain.Ticket), now: time.Now}
}

var _ repository.TicketRepository = (*TicketStore)(nil)

func (s *TicketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if _, ok := s.tickets[ticket.ID]; ok {
		return domain.ErrAlreadyExists
	}
	now := s.now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (s *TicketStore) Update(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tickets[ticket.ID]
	if !ok {
		return domain.ErrNotFound
	}
	ticket.CreatedAt = existing.CreatedAt
	ticket.UpdatedAt = s.now().UTC()
	s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (s *TicketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneTicket(t)
	return &out, nil
}

func (s *TicketStore) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s.mu.RLock()
	result := make([]domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.UpdatedBefore != nil && !t.UpdatedAt.Before(*filter.UpdatedBefore) {
			continue
		}
		result = append(result, cloneTicket(t))
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultTicketListLimit
	}
	return page(result, filter.Offset, limit), nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.AssigneeID != nil {
		v := *t.AssigneeID
		t.AssigneeID = &v
	}
	if t.SuggestionID != nil {
		v := *t.SuggestionID
		t.SuggestionID = &v
	}
	t.Attachments = append([]string(nil), t.Attachments...)
	return t
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
