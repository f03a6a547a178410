package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/service"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// ConfigHandler exposes the runtime triage configuration.
type ConfigHandler struct {
	service *service.ConfigService
}

// NewConfigHandler constructs handler.
func NewConfigHandler(cfg *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{service: cfg}
}

// Get GET /config.
func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	cfg, err := h.service.Get(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewConfig(cfg)})
}

// Update PUT /config.
func (h *ConfigHandler) Update(c *fiber.Ctx) error {
	var req dto.ConfigUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	cfg, err := h.service.Update(c.UserContext(), service.ConfigUpdate{
		AutoCloseEnabled:    req.AutoCloseEnabled,
		ConfidenceThreshold: req.ConfidenceThreshold,
		SLAHours:            req.SLAHours,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewConfig(cfg)})
}
