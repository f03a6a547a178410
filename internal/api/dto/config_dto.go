package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// ConfigUpdateRequest changes only the fields that are present.
type ConfigUpdateRequest struct {
	AutoCloseEnabled    *bool    `json:"auto_close_enabled"`
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
	SLAHours            *int     `json:"sla_hours"`
}

// ConfigResponse is the runtime triage configuration.
type ConfigResponse struct {
	AutoCloseEnabled    bool      `json:"auto_close_enabled"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	SLAHours            int       `json:"sla_hours"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NewConfig maps the runtime config.
func NewConfig(c domain.RuntimeConfig) ConfigResponse {
	return ConfigResponse{
		AutoCloseEnabled:    c.AutoCloseEnabled,
		ConfidenceThreshold: c.ConfidenceThreshold,
		SLAHours:            c.SLAHours,
		UpdatedAt:           c.UpdatedAt,
	}
}
