package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// MessageStore keeps ticket messages in insertion order.
type MessageStore struct {
	mu       sync.RWMutex
	messages []domain.TicketMessage
}

// NewMessageStore returns an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

var _ repository.TicketMessageRepository = (*MessageStore)(nil)

func (s *MessageStore) Create(_ context.Context, msg *domain.TicketMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *MessageStore) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.TicketMessage
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			result = append(result, m)
		}
	}
	return result, nil
}
