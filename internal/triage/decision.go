package triage

import "github.com/spec-kit/ticket-triage/internal/domain"

// Decision is the auto-close verdict for one run.
type Decision struct {
	AutoClose bool
	Status    domain.TicketStatus
}

// Decide auto-closes when the feature is enabled and confidence reaches the threshold.
func Decide(confidence float64, cfg domain.RuntimeConfig) Decision {
	if cfg.AutoCloseEnabled && confidence >= cfg.ConfidenceThreshold {
		return Decision{AutoClose: true, Status: domain.TicketStatusResolved}
	}
	return Decision{AutoClose: false, Status: domain.TicketStatusWaitingHuman}
}
