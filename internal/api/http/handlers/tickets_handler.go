package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/auth"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/service"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints for users and staff.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, traceID, err := h.service.CreateTicket(c.UserContext(), viewer.ID, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreateTicketResponse{
		Ticket:  dto.NewTicketSummary(ticket),
		TraceID: traceID,
	}})
}

// ListTickets GET /tickets?status=&mine=&limit=&offset=.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	filter := service.TicketListFilter{
		Mine:   c.QueryBool("mine", false),
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.TicketStatus(raw)
		if !status.Valid() {
			return apperrors.NewValidationError("invalid status", map[string]any{"status": raw})
		}
		filter.Status = &status
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	tickets, err := h.service.ListTickets(c.UserContext(), viewer, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), viewer, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(detail.Ticket, detail.Messages)})
}

// Reply POST /tickets/:id/reply.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.Reply(c.UserContext(), viewer.ID, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketMessage(msg)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Assign(c.UserContext(), viewer.ID, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// Audit GET /tickets/:id/audit.
func (h *TicketsHandler) Audit(c *fiber.Ctx) error {
	trail, err := h.service.ListAudit(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuditEvents(trail)})
}

func viewerFrom(c *fiber.Ctx) (service.Viewer, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return service.Viewer{}, apperrors.NewUnauthorized("user required")
	}
	return service.Viewer{ID: principal.User.ID, Role: principal.Role}, nil
}
