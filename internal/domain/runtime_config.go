package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfig is returned when a runtime config violates its domain.
var ErrInvalidConfig = errors.New("invalid runtime config")

const (
	DefaultAutoCloseEnabled    = true
	DefaultConfidenceThreshold = 0.78
	DefaultSLAHours            = 24
)

// RuntimeConfig holds the operator-tunable triage settings.
type RuntimeConfig struct {
	AutoCloseEnabled    bool
	ConfidenceThreshold float64
	SLAHours            int
	UpdatedAt           time.Time
}

// DefaultRuntimeConfig returns the settings used when none are stored yet.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		AutoCloseEnabled:    DefaultAutoCloseEnabled,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		SLAHours:            DefaultSLAHours,
	}
}

// Validate checks threshold and SLA bounds.
func (c RuntimeConfig) Validate() error {
	if math.IsNaN(c.ConfidenceThreshold) || c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold %v outside [0,1]", ErrInvalidConfig, c.ConfidenceThreshold)
	}
	if c.SLAHours <= 0 {
		return fmt.Errorf("%w: sla hours must be positive, got %d", ErrInvalidConfig, c.SLAHours)
	}
	return nil
}

// SLA returns the configured SLA window.
func (c RuntimeConfig) SLA() time.Duration {
	return time.Duration(c.SLAHours) * time.Hour
}
