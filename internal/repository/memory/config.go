package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// ConfigStore holds the runtime config row. A zero store lazily adopts the
// defaults given to NewConfigStore.
type ConfigStore struct {
	mu       sync.Mutex
	cfg      *domain.RuntimeConfig
	defaults domain.RuntimeConfig
	reads    int
}

// NewConfigStore returns a store that creates defaults on first access.
func NewConfigStore(defaults domain.RuntimeConfig) *ConfigStore {
	return &ConfigStore{defaults: defaults}
}

var _ repository.RuntimeConfigRepository = (*ConfigStore)(nil)

func (s *ConfigStore) Get(_ context.Context) (domain.RuntimeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.cfg == nil {
		cfg := s.defaults
		cfg.UpdatedAt = time.Now().UTC()
		s.cfg = &cfg
	}
	cfg := *s.cfg
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *ConfigStore) Put(_ context.Context, cfg domain.RuntimeConfig) (domain.RuntimeConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.RuntimeConfig{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.UpdatedAt = time.Now().UTC()
	s.cfg = &cfg
	return cfg, nil
}

// Force stores cfg without validation.
func (s *ConfigStore) Force(cfg domain.RuntimeConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = &cfg
}

// Reads reports how many times Get was called.
func (s *ConfigStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
