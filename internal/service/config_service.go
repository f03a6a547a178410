package service

import (
	"context"
	"errors"
	"math"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// ConfigService reads and updates the runtime config row.
type ConfigService struct {
	repo repository.RuntimeConfigRepository
}

// NewConfigService constructs the service.
func NewConfigService(repo repository.RuntimeConfigRepository) *ConfigService {
	return &ConfigService{repo: repo}
}

// ConfigUpdate is a partial update; nil fields keep their current value.
type ConfigUpdate struct {
	AutoCloseEnabled    *bool
	ConfidenceThreshold *float64
	SLAHours            *int
}

// Get returns the current config, creating defaults on first access.
func (s *ConfigService) Get(ctx context.Context) (domain.RuntimeConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return domain.RuntimeConfig{}, apperrors.MapError(err)
	}
	return cfg, nil
}

// Update merges update over the current config and stores it. Out-of-range
// values are rejected before anything is written.
func (s *ConfigService) Update(ctx context.Context, update ConfigUpdate) (domain.RuntimeConfig, error) {
	details := map[string]any{}
	if t := update.ConfidenceThreshold; t != nil && (math.IsNaN(*t) || *t < 0 || *t > 1) {
		details["confidence_threshold"] = "must be within [0,1]"
	}
	if h := update.SLAHours; h != nil && *h <= 0 {
		details["sla_hours"] = "must be a positive integer"
	}
	if len(details) > 0 {
		return domain.RuntimeConfig{}, apperrors.NewValidationError("invalid config", details)
	}

	// a broken stored row can still be overwritten
	current, err := s.repo.Get(ctx)
	if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
		return domain.RuntimeConfig{}, apperrors.MapError(err)
	}
	if update.AutoCloseEnabled != nil {
		current.AutoCloseEnabled = *update.AutoCloseEnabled
	}
	if update.ConfidenceThreshold != nil {
		current.ConfidenceThreshold = *update.ConfidenceThreshold
	}
	if update.SLAHours != nil {
		current.SLAHours = *update.SLAHours
	}
	if err := current.Validate(); err != nil {
		return domain.RuntimeConfig{}, apperrors.NewValidationError(err.Error(), nil)
	}

	saved, err := s.repo.Put(ctx, current)
	if err != nil {
		return domain.RuntimeConfig{}, apperrors.MapError(err)
	}
	return saved, nil
}
