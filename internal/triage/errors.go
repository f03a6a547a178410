package triage

import (
	"errors"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

var (
	// ErrTicketNotFound aborts a run whose ticket does not exist.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrBackendUnavailable is returned when the classifier or drafter fails.
	ErrBackendUnavailable = errors.New("triage backend unavailable")
	// ErrBackendTimeout is returned when a backend call exceeds its deadline.
	ErrBackendTimeout = errors.New("triage backend timed out")
	// ErrAuditWriteFailed is logged by the Recorder and never returned from a run.
	ErrAuditWriteFailed = errors.New("audit write failed")
	// ErrInvalidConfig is returned when the stored runtime config is out of range.
	ErrInvalidConfig = domain.ErrInvalidConfig
	// ErrTriageInProgress is returned by a Guard when the ticket is already being triaged.
	ErrTriageInProgress = errors.New("triage already in progress")
)

// ErrorKind returns a short stable label for err, used in metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTicketNotFound):
		return "ticket_not_found"
	case errors.Is(err, ErrBackendTimeout):
		return "backend_timeout"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrTriageInProgress):
		return "in_progress"
	default:
		return "error"
	}
}
