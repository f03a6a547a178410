package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// AuditStore keeps audit events in memory.
type AuditStore struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
	// FailOn makes Append fail for the listed actions.
	FailOn map[domain.AuditAction]error
}

// NewAuditStore returns an empty store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

var _ repository.AuditRepository = (*AuditStore)(nil)

func (s *AuditStore) Append(_ context.Context, event *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailOn[event.Action]; ok {
		return err
	}
	s.events = append(s.events, *event)
	return nil
}

// ListByTicket returns events ordered by timestamp, then insertion.
func (s *AuditStore) ListByTicket(_ context.Context, ticketID string) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	var result []domain.AuditEvent
	for _, e := range s.events {
		if e.TicketID == ticketID {
			result = append(result, e)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (s *AuditStore) HasAction(_ context.Context, ticketID string, action domain.AuditAction) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.TicketID == ticketID && e.Action == action {
			return true, nil
		}
	}
	return false, nil
}
