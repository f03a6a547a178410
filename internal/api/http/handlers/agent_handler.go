package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/triage"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// Triager runs and reads triage outcomes.
type Triager interface {
	Triage(ctx context.Context, ticketID, traceID string) (*triage.Result, error)
	LatestSuggestion(ctx context.Context, ticketID string) (*domain.Suggestion, bool, error)
}

// AgentHandler exposes synchronous triage for staff.
type AgentHandler struct {
	triager Triager
}

// NewAgentHandler constructs handler.
func NewAgentHandler(triager Triager) *AgentHandler {
	return &AgentHandler{triager: triager}
}

// Triage POST /agent/triage.
func (h *AgentHandler) Triage(c *fiber.Ctx) error {
	var req dto.TriageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticketID := strings.TrimSpace(req.TicketID)
	if ticketID == "" {
		return apperrors.NewValidationError("ticket_id required", nil)
	}

	result, err := h.triager.Triage(c.UserContext(), ticketID, strings.TrimSpace(req.TraceID))
	if err != nil {
		return triageError(err, ticketID)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TriageResponse{
		TraceID:      result.TraceID,
		SuggestionID: result.SuggestionID,
	}})
}

// LatestSuggestion GET /agent/suggestion/:ticketId.
func (h *AgentHandler) LatestSuggestion(c *fiber.Ctx) error {
	ticketID := c.Params("ticketId")
	suggestion, ok, err := h.triager.LatestSuggestion(c.UserContext(), ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !ok {
		return apperrors.NewNotFound("suggestion", map[string]any{"ticket_id": ticketID})
	}
	return c.JSON(fiber.Map{"data": dto.NewSuggestion(suggestion)})
}

func triageError(err error, ticketID string) error {
	switch {
	case errors.Is(err, triage.ErrTicketNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, triage.ErrTriageInProgress):
		return apperrors.NewConflict("triage already in progress", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, triage.ErrBackendTimeout):
		return apperrors.NewUpstreamError("BACKEND_TIMEOUT", "triage backend timed out", http.StatusGatewayTimeout, err)
	case errors.Is(err, triage.ErrBackendUnavailable):
		return apperrors.NewUpstreamError("BACKEND_UNAVAILABLE", "triage backend unavailable", http.StatusBadGateway, err)
	default:
		return apperrors.MapError(err)
	}
}
